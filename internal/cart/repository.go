package cart

import (
	"context"
	"errors"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// Repository defines the interface for cart data operations. Consumers
// define this interface, not the MongoDB implementation.
type Repository interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	UpsertCart(ctx context.Context, cart *Cart) error
	// AddItem upserts the item; an existing product's quantity is
	// replaced, not added to.
	AddItem(ctx context.Context, userID string, item CartItem) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	SaveShippingAddress(ctx context.Context, userID string, addr Address) error
	SavePaymentMethod(ctx context.Context, userID string, method string) error
	DeleteCart(ctx context.Context, userID string) error
}
