package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testRules() PricingRules {
	return PricingRules{
		ShippingFlat:     dec("10"),
		FreeShippingOver: dec("1000"),
		TaxRate:          dec("0.025"),
	}
}

func TestTotals_SumInvariant(t *testing.T) {
	c := &Cart{
		UserID: "123",
		Items: []CartItem{
			{ProductID: 1, UnitPrice: dec("89.99"), Quantity: 2},
			{ProductID: 2, UnitPrice: dec("599.99"), Quantity: 1},
		},
	}

	totals := c.Totals(testRules())
	assert.True(t, totals.TotalPrice.Equal(
		totals.ItemsPrice.Add(totals.ShippingPrice).Add(totals.TaxPrice)),
		"total must equal items + shipping + tax")
	assert.True(t, totals.ItemsPrice.Equal(dec("779.97")))
}

func TestTotals_Scenario(t *testing.T) {
	// Two lines worth 200 with flat shipping 10 and 2.5% tax.
	c := &Cart{
		UserID: "123",
		Items: []CartItem{
			{ProductID: 1, UnitPrice: dec("50"), Quantity: 2},
			{ProductID: 2, UnitPrice: dec("100"), Quantity: 1},
		},
	}

	totals := c.Totals(testRules())
	assert.True(t, totals.ItemsPrice.Equal(dec("200")), "items: %s", totals.ItemsPrice)
	assert.True(t, totals.ShippingPrice.Equal(dec("10")), "shipping: %s", totals.ShippingPrice)
	assert.True(t, totals.TaxPrice.Equal(dec("5")), "tax: %s", totals.TaxPrice)
	assert.True(t, totals.TotalPrice.Equal(dec("215")), "total: %s", totals.TotalPrice)
}

func TestTotals_FreeShippingThreshold(t *testing.T) {
	c := &Cart{
		UserID: "123",
		Items:  []CartItem{{ProductID: 1, UnitPrice: dec("1000"), Quantity: 1}},
	}

	totals := c.Totals(testRules())
	assert.True(t, totals.ShippingPrice.IsZero(), "shipping should be free at the threshold")
}

func TestTotals_ZeroThresholdDisablesFreeShipping(t *testing.T) {
	rules := PricingRules{ShippingFlat: dec("10"), TaxRate: dec("0.025")}
	c := &Cart{
		UserID: "123",
		Items:  []CartItem{{ProductID: 1, UnitPrice: dec("5000"), Quantity: 1}},
	}

	totals := c.Totals(rules)
	assert.True(t, totals.ShippingPrice.Equal(dec("10")))
}

func TestTotals_EmptyCart(t *testing.T) {
	c := &Cart{UserID: "123"}

	totals := c.Totals(testRules())
	assert.True(t, totals.ItemsPrice.IsZero())
	assert.True(t, totals.ShippingPrice.IsZero(), "empty cart never pays shipping")
	assert.True(t, totals.TaxPrice.IsZero())
	assert.True(t, totals.TotalPrice.IsZero())
}

func TestUpsert_ReplacesQuantity(t *testing.T) {
	c := &Cart{UserID: "123"}
	c.upsert(CartItem{ProductID: 1, UnitPrice: dec("10"), Quantity: 2})
	c.upsert(CartItem{ProductID: 2, UnitPrice: dec("20"), Quantity: 1})
	c.upsert(CartItem{ProductID: 1, UnitPrice: dec("10"), Quantity: 5})

	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(1), c.Items[0].ProductID, "insertion order is preserved")
	assert.Equal(t, 5, c.Items[0].Quantity, "quantity is replaced, not accumulated")
}

func TestRemove_AbsentProductIsNoOp(t *testing.T) {
	c := &Cart{UserID: "123"}
	c.upsert(CartItem{ProductID: 1, UnitPrice: dec("10"), Quantity: 2})

	c.remove(99)
	assert.Len(t, c.Items, 1)

	c.remove(1)
	assert.Empty(t, c.Items)
}
