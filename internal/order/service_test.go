package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/catalog"
	"github.com/pranjal1404/easyshopin/internal/checkout"
	"github.com/pranjal1404/easyshopin/internal/identity"
)

// countingRecords wraps Records to observe and fail CreateOrder calls.
type countingRecords struct {
	Records
	createCalls int
	createErr   error
}

func (c *countingRecords) CreateOrder(ctx context.Context, snap *Snapshot) (*Order, error) {
	c.createCalls++
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.Records.CreateOrder(ctx, snap)
}

type fixture struct {
	catalog *catalog.MemoryStore
	carts   *cart.Service
	records *countingRecords
	sut     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewMemoryStore()
	require.NoError(t, cat.Save(context.Background(), &catalog.Product{
		ID: 1, Name: "Airpods", Brand: "Apple", Price: decimal.NewFromInt(50), CountInStock: 10,
	}))
	require.NoError(t, cat.Save(context.Background(), &catalog.Product{
		ID: 2, Name: "Mouse", Brand: "Logitech", Price: decimal.NewFromInt(100), CountInStock: 3,
	}))

	carts := cart.NewService(cart.NewMemoryRepository(), cart.NoopCache{}, cat, cart.PricingRules{
		ShippingFlat:     decimal.NewFromInt(10),
		FreeShippingOver: decimal.NewFromInt(1000),
		TaxRate:          decimal.RequireFromString("0.025"),
	}, zerolog.Nop())
	ctrl := checkout.NewController(carts, nil)
	records := &countingRecords{Records: NewMemoryRecords(testRules())}

	return &fixture{
		catalog: cat,
		carts:   carts,
		records: records,
		sut:     NewService(records, carts, ctrl, cat, zerolog.Nop()),
	}
}

func (f *fixture) readyCart(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, userID, 1, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, userID, 2, 1)
	require.NoError(t, err)
	require.NoError(t, f.carts.SaveShippingAddress(ctx, userID, cart.Address{
		Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "USA",
	}))
	require.NoError(t, f.carts.SavePaymentMethod(ctx, userID, "PayPal"))
}

func user(id string) identity.Session  { return identity.Session{UserID: id} }
func admin(id string) identity.Session { return identity.Session{UserID: id, IsAdmin: true} }

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")

	ord, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.NoError(t, err)
	assert.Equal(t, "123", ord.UserID)
	assert.Len(t, ord.Items, 2)
	assert.True(t, ord.TotalPrice.Equal(decimal.RequireFromString("215")), "total: %s", ord.TotalPrice)
	assert.Equal(t, "PayPal", ord.PaymentMethod)

	// The cart is emptied exactly once, after the order exists.
	crt, err := f.carts.Get(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, crt.Items)
}

func TestPlaceOrder_EmptyCartNeverReachesRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.SaveShippingAddress(ctx, "123", cart.Address{
		Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "USA",
	}))
	require.NoError(t, f.carts.SavePaymentMethod(ctx, "123", "PayPal"))

	_, err := f.sut.PlaceOrder(ctx, user("123"))
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Zero(t, f.records.createCalls, "order of record must not be contacted")
}

func TestPlaceOrder_IncompleteCheckout(t *testing.T) {
	f := newFixture(t)
	_, err := f.carts.AddItem(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	_, err = f.sut.PlaceOrder(context.Background(), user("123"))
	require.ErrorIs(t, err, checkout.ErrIncompleteShipping)
	assert.Zero(t, f.records.createCalls)
}

func TestPlaceOrder_StockConflict(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")

	// Stock drops between add-to-cart and placement.
	require.NoError(t, f.catalog.Save(context.Background(), &catalog.Product{
		ID: 1, Name: "Airpods", Brand: "Apple", Price: decimal.NewFromInt(50), CountInStock: 1,
	}))

	_, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.ErrorIs(t, err, ErrStockConflict)
	assert.Zero(t, f.records.createCalls)

	crt, err := f.carts.Get(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, crt.Items, 2, "failed placement must not clear the cart")
}

func TestPlaceOrder_TransportErrorIsAmbiguous(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")
	f.records.createErr = fmt.Errorf("write tcp: broken pipe")

	_, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.ErrorIs(t, err, ErrSubmissionAmbiguous)

	var ambiguous *AmbiguousOutcomeError
	require.True(t, errors.As(err, &ambiguous))
	assert.NotEmpty(t, ambiguous.ClientToken)

	crt, getErr := f.carts.Get(context.Background(), "123")
	require.NoError(t, getErr)
	assert.Len(t, crt.Items, 2, "ambiguous placement must not clear the cart")
}

func TestReconcile_NoOrderMeansRetrySafe(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")
	f.records.createErr = fmt.Errorf("connection reset")

	_, err := f.sut.PlaceOrder(context.Background(), user("123"))
	var ambiguous *AmbiguousOutcomeError
	require.True(t, errors.As(err, &ambiguous))

	_, err = f.sut.Reconcile(context.Background(), user("123"), ambiguous.ClientToken)
	require.ErrorIs(t, err, ErrOrderNotFound)

	// The store never saw the order, so the retry goes through.
	f.records.createErr = nil
	ord, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.NoError(t, err)
	assert.True(t, ord.TotalPrice.Equal(decimal.RequireFromString("215")))
}

func TestReconcile_FindsLandedOrder(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")

	ord, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.NoError(t, err)

	found, err := f.sut.Reconcile(context.Background(), user("123"), ord.ClientToken)
	require.NoError(t, err)
	assert.Equal(t, ord.ID, found.ID)
}

func TestReconcile_LeavesCurrentCartAlone(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")
	ctx := context.Background()

	ord, err := f.sut.PlaceOrder(ctx, user("123"))
	require.NoError(t, err)

	// The user starts a fresh cart after the placement settled.
	_, err = f.carts.AddItem(ctx, "123", 1, 1)
	require.NoError(t, err)

	// Looking up the old token must not wipe the new cart.
	_, err = f.sut.Reconcile(ctx, user("123"), ord.ClientToken)
	require.NoError(t, err)

	crt, err := f.carts.Get(ctx, "123")
	require.NoError(t, err)
	require.Len(t, crt.Items, 1)
	assert.Equal(t, int64(1), crt.Items[0].ProductID)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")
	ord, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.NoError(t, err)

	_, err = f.sut.Get(context.Background(), user("456"), ord.ID)
	require.ErrorIs(t, err, ErrOrderNotFound, "foreign orders read as missing")

	got, err := f.sut.Get(context.Background(), admin("admin"), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, ord.ID, got.ID)
}

func TestListAll_AdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.sut.ListAll(context.Background(), user("123"))
	require.ErrorIs(t, err, ErrNotAdmin)

	_, err = f.sut.ListAll(context.Background(), admin("admin"))
	require.NoError(t, err)
}

func TestMarkDelivered_AdminGate(t *testing.T) {
	f := newFixture(t)
	f.readyCart(t, "123")
	ord, err := f.sut.PlaceOrder(context.Background(), user("123"))
	require.NoError(t, err)

	_, err = f.sut.MarkDelivered(context.Background(), user("123"), ord.ID)
	require.ErrorIs(t, err, ErrNotAdmin)

	_, err = f.sut.MarkDelivered(context.Background(), admin("admin"), ord.ID)
	require.ErrorIs(t, err, ErrNotPaid, "unpaid orders cannot be delivered")

	_, err = f.records.RecordPayment(context.Background(), ord.ID, testPaymentRecord())
	require.NoError(t, err)

	delivered, err := f.sut.MarkDelivered(context.Background(), admin("admin"), ord.ID)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
}

func TestMarkDelivered_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.sut.MarkDelivered(context.Background(), admin("admin"), uuid.New())
	require.ErrorIs(t, err, ErrOrderNotFound)
}
