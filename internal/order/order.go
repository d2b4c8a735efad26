package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pranjal1404/easyshopin/internal/cart"
)

// OrderItem is an immutable copy of a cart line captured at placement
// time. Later catalog price changes never affect a placed order.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is the order of record. The four price components stored here
// are authoritative: they are recomputed by the records store at
// creation time, not copied from client input.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	ClientToken     string          `json:"-"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress cart.Address    `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	TaxPrice        decimal.Decimal `json:"tax_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Payment         *PaymentRecord  `json:"payment,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PaymentRecord captures the provider-side result of a settled capture.
type PaymentRecord struct {
	Provider        string          `json:"provider"`
	ProviderOrderID string          `json:"provider_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Reference       string          `json:"reference,omitempty"`
	CapturedAt      time.Time       `json:"captured_at"`
}

// Snapshot is the input to order creation: the frozen cart contents
// plus a client token that deduplicates retried placements. Advisory
// totals travel with the snapshot for cross-checking but the store
// recomputes them before persisting.
type Snapshot struct {
	ClientToken     string
	UserID          string
	Items           []OrderItem
	ShippingAddress cart.Address
	PaymentMethod   string
	Advisory        cart.Totals
	PlacedAt        time.Time
}

// ItemsFromCart converts cart lines into order line snapshots.
func ItemsFromCart(items []cart.CartItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Brand:     it.Brand,
			Image:     it.Image,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}
