package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranjal1404/easyshopin/internal/cart"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules() cart.PricingRules {
	return cart.PricingRules{
		ShippingFlat:     dec("10"),
		FreeShippingOver: dec("1000"),
		TaxRate:          dec("0.025"),
	}
}

func testSnapshot(userID, token string) *Snapshot {
	return &Snapshot{
		ClientToken: token,
		UserID:      userID,
		Items: []OrderItem{
			{ProductID: 1, Name: "Airpods", UnitPrice: dec("50"), Quantity: 2},
			{ProductID: 2, Name: "Mouse", UnitPrice: dec("100"), Quantity: 1},
		},
		ShippingAddress: cart.Address{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "USA"},
		PaymentMethod:   "PayPal",
		PlacedAt:        time.Now().UTC(),
	}
}

func testPaymentRecord() PaymentRecord {
	return PaymentRecord{
		Provider:        "simulated",
		ProviderOrderID: "SIM-1",
		Amount:          dec("215"),
		Currency:        "USD",
		CapturedAt:      time.Now().UTC(),
	}
}

func TestCreateOrder_RecomputesTotals(t *testing.T) {
	sut := NewMemoryRecords(testRules())

	snap := testSnapshot("123", "tok-1")
	// Advisory totals from the client are deliberately wrong.
	snap.Advisory = cart.Totals{TotalPrice: dec("1")}

	ord, err := sut.CreateOrder(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, ord.ItemsPrice.Equal(dec("200")))
	assert.True(t, ord.ShippingPrice.Equal(dec("10")))
	assert.True(t, ord.TaxPrice.Equal(dec("5")))
	assert.True(t, ord.TotalPrice.Equal(dec("215")))
	assert.False(t, ord.IsPaid)
	assert.False(t, ord.IsDelivered)
}

func TestCreateOrder_DuplicateToken(t *testing.T) {
	sut := NewMemoryRecords(testRules())

	_, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)

	_, err = sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.ErrorIs(t, err, ErrDuplicateToken)

	// A different user may reuse the token string.
	_, err = sut.CreateOrder(context.Background(), testSnapshot("456", "tok-1"))
	require.NoError(t, err)
}

func TestFindByClientToken(t *testing.T) {
	sut := NewMemoryRecords(testRules())

	created, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)

	found, err := sut.FindByClientToken(context.Background(), "123", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = sut.FindByClientToken(context.Background(), "123", "tok-unknown")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRecordPayment_SetsPaid(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	ord, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)

	paid, err := sut.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.Payment)
	assert.Equal(t, "SIM-1", paid.Payment.ProviderOrderID)
}

func TestRecordPayment_SecondReportRejected(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	ord, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)

	first, err := sut.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)

	second := testPaymentRecord()
	second.ProviderOrderID = "SIM-2"
	ret, err := sut.RecordPayment(context.Background(), ord.ID, second)
	require.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, "SIM-1", ret.Payment.ProviderOrderID, "first capture report wins")
	assert.Equal(t, first.PaidAt.Unix(), ret.PaidAt.Unix())
}

func TestRecordPayment_UnknownOrder(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	_, err := sut.RecordPayment(context.Background(), uuid.New(), testPaymentRecord())
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarkDelivered_RequiresPayment(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	ord, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)

	_, err = sut.MarkDelivered(context.Background(), ord.ID)
	require.ErrorIs(t, err, ErrNotPaid)

	_, err = sut.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)

	delivered, err := sut.MarkDelivered(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	require.NotNil(t, delivered.DeliveredAt)
}

func TestMarkDelivered_Idempotent(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	ord, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)
	_, err = sut.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)

	first, err := sut.MarkDelivered(context.Background(), ord.ID)
	require.NoError(t, err)
	second, err := sut.MarkDelivered(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DeliveredAt.Unix(), second.DeliveredAt.Unix())
}

func TestOutbox_EventsPerMutation(t *testing.T) {
	sut := NewMemoryRecords(testRules())
	ord, err := sut.CreateOrder(context.Background(), testSnapshot("123", "tok-1"))
	require.NoError(t, err)
	_, err = sut.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)
	_, err = sut.MarkDelivered(context.Background(), ord.ID)
	require.NoError(t, err)

	events, err := sut.GetUnpublishedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventOrderCreated, events[0].EventType)
	assert.Equal(t, EventOrderPaid, events[1].EventType)
	assert.Equal(t, EventOrderDelivered, events[2].EventType)

	require.NoError(t, sut.MarkEventPublished(context.Background(), events[0].ID))
	events, err = sut.GetUnpublishedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderPaid, events[0].EventType)
}
