package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is the shipping destination collected during checkout. All
// four fields must be non-empty before checkout may proceed past the
// shipping step.
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) Complete() bool {
	return a.Address != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// CartItem carries the product snapshot taken when the item was added.
// Unique by ProductID within a cart.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

type Cart struct {
	ID              string     `json:"-"`
	UserID          string     `json:"user_id"`
	Items           []CartItem `json:"items"`
	ShippingAddress *Address   `json:"shipping_address,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the item for productID, preserving insertion order
// semantics for callers that iterate Items directly.
func (c *Cart) Find(productID int64) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// ItemsPrice is the sum of unit price times quantity over current
// items. Always derived, never stored.
func (c *Cart) ItemsPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// PricingRules configures how shipping and tax are derived from the
// items price. The order-of-record applies its own copy of these rules
// when it recomputes authoritative totals.
type PricingRules struct {
	ShippingFlat     decimal.Decimal
	FreeShippingOver decimal.Decimal // zero disables free shipping
	TaxRate          decimal.Decimal
}

// Totals is the derived pricing of a cart. TotalPrice is always
// ItemsPrice + ShippingPrice + TaxPrice.
type Totals struct {
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// Totals computes derived pricing for the current items. Pure, no side
// effects; consistent with Items at the time of the call.
func (c *Cart) Totals(rules PricingRules) Totals {
	items := c.ItemsPrice()

	shipping := rules.ShippingFlat
	if rules.FreeShippingOver.IsPositive() && items.GreaterThanOrEqual(rules.FreeShippingOver) {
		shipping = decimal.Zero
	}
	if c.IsEmpty() {
		shipping = decimal.Zero
	}

	tax := items.Mul(rules.TaxRate).Round(2)

	return Totals{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    items.Add(shipping).Add(tax),
	}
}

// upsert replaces the quantity for an existing product or appends a new
// item, keeping insertion order.
func (c *Cart) upsert(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

// remove drops the item for productID. Removing an absent product is a
// no-op.
func (c *Cart) remove(productID int64) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}
