package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateToken = errors.New("an order with this client token already exists")
	ErrAlreadyPaid    = errors.New("order is already paid")
	ErrNotPaid        = errors.New("order has not been paid")
)

// Records is the order-of-record store. Mutations append an outbox
// event in the same transaction so downstream consumers observe every
// state change exactly once.
type Records interface {
	// CreateOrder persists a new order from the snapshot, recomputing
	// authoritative totals from the item lines. A reused client token
	// yields ErrDuplicateToken.
	CreateOrder(ctx context.Context, snap *Snapshot) (*Order, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByClientToken reports whether a placement with the given
	// token reached the store. ErrOrderNotFound means it did not.
	FindByClientToken(ctx context.Context, userID, token string) (*Order, error)

	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)

	// RecordPayment flips the order to paid and attaches the capture
	// result. A second report for an already paid order returns the
	// unchanged order together with ErrAlreadyPaid.
	RecordPayment(ctx context.Context, id uuid.UUID, rec PaymentRecord) (*Order, error)

	// MarkDelivered flips the order to delivered. Unpaid orders return
	// ErrNotPaid; repeating the call on a delivered order is a no-op.
	MarkDelivered(ctx context.Context, id uuid.UUID) (*Order, error)

	GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, eventID int64) error

	Close() error
}

// OutboxEvent is a pending domain event row awaiting publication.
type OutboxEvent struct {
	ID          int64
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderDelivered = "order.delivered"
)
