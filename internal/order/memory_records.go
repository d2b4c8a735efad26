package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pranjal1404/easyshopin/internal/cart"
)

// MemoryRecords is an in-memory Records implementation used in tests
// and single-node deployments without Postgres.
type MemoryRecords struct {
	mu          sync.RWMutex
	rules       cart.PricingRules
	orders      map[uuid.UUID]*Order
	byToken     map[string]uuid.UUID
	events      []*OutboxEvent
	nextEventID int64
}

func NewMemoryRecords(rules cart.PricingRules) *MemoryRecords {
	return &MemoryRecords{
		rules:       rules,
		orders:      make(map[uuid.UUID]*Order),
		byToken:     make(map[string]uuid.UUID),
		nextEventID: 1,
	}
}

func tokenKey(userID, token string) string {
	return userID + ":" + token
}

// computeTotals derives the authoritative price components from the
// item lines, independent of whatever the client thinks they are.
func computeTotals(items []OrderItem, rules cart.PricingRules) cart.Totals {
	itemsPrice := decimal.Zero
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	shipping := rules.ShippingFlat
	if rules.FreeShippingOver.IsPositive() && itemsPrice.GreaterThanOrEqual(rules.FreeShippingOver) {
		shipping = decimal.Zero
	}
	if len(items) == 0 {
		shipping = decimal.Zero
	}
	tax := itemsPrice.Mul(rules.TaxRate).Round(2)

	return cart.Totals{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    itemsPrice.Add(shipping).Add(tax),
	}
}

func (m *MemoryRecords) CreateOrder(_ context.Context, snap *Snapshot) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tokenKey(snap.UserID, snap.ClientToken)
	if id, ok := m.byToken[key]; ok {
		return nil, fmt.Errorf("%w: order %s", ErrDuplicateToken, id)
	}

	totals := computeTotals(snap.Items, m.rules)
	now := time.Now().UTC()
	ord := &Order{
		ID:              uuid.New(),
		ClientToken:     snap.ClientToken,
		UserID:          snap.UserID,
		Items:           append([]OrderItem(nil), snap.Items...),
		ShippingAddress: snap.ShippingAddress,
		PaymentMethod:   snap.PaymentMethod,
		ItemsPrice:      totals.ItemsPrice,
		ShippingPrice:   totals.ShippingPrice,
		TaxPrice:        totals.TaxPrice,
		TotalPrice:      totals.TotalPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.orders[ord.ID] = ord
	m.byToken[key] = ord.ID
	m.appendEventLocked(EventOrderCreated, ord)

	return cloneOrder(ord), nil
}

func (m *MemoryRecords) GetOrder(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ord, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(ord), nil
}

func (m *MemoryRecords) FindByClientToken(_ context.Context, userID, token string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byToken[tokenKey(userID, token)]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(m.orders[id]), nil
}

func (m *MemoryRecords) ListByUser(_ context.Context, userID string) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Order
	for _, ord := range m.orders {
		if ord.UserID == userID {
			out = append(out, cloneOrder(ord))
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryRecords) ListAll(_ context.Context) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Order, 0, len(m.orders))
	for _, ord := range m.orders {
		out = append(out, cloneOrder(ord))
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryRecords) RecordPayment(_ context.Context, id uuid.UUID, rec PaymentRecord) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ord, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if ord.IsPaid {
		return cloneOrder(ord), ErrAlreadyPaid
	}

	now := time.Now().UTC()
	ord.IsPaid = true
	ord.PaidAt = &now
	recCopy := rec
	ord.Payment = &recCopy
	ord.UpdatedAt = now
	m.appendEventLocked(EventOrderPaid, ord)

	return cloneOrder(ord), nil
}

func (m *MemoryRecords) MarkDelivered(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ord, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !ord.IsPaid {
		return nil, ErrNotPaid
	}
	if ord.IsDelivered {
		return cloneOrder(ord), nil
	}

	now := time.Now().UTC()
	ord.IsDelivered = true
	ord.DeliveredAt = &now
	ord.UpdatedAt = now
	m.appendEventLocked(EventOrderDelivered, ord)

	return cloneOrder(ord), nil
}

func (m *MemoryRecords) GetUnpublishedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*OutboxEvent
	for _, ev := range m.events {
		if ev.PublishedAt != nil {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRecords) MarkEventPublished(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range m.events {
		if ev.ID == eventID {
			now := time.Now().UTC()
			ev.PublishedAt = &now
			return nil
		}
	}
	return fmt.Errorf("outbox event %d not found", eventID)
}

func (m *MemoryRecords) Close() error { return nil }

func (m *MemoryRecords) appendEventLocked(eventType string, ord *Order) {
	payload, err := json.Marshal(ord)
	if err != nil {
		payload = []byte(`{}`)
	}
	m.events = append(m.events, &OutboxEvent{
		ID:          m.nextEventID,
		EventType:   eventType,
		AggregateID: ord.ID.String(),
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
	m.nextEventID++
}

func cloneOrder(ord *Order) *Order {
	cp := *ord
	cp.Items = append([]OrderItem(nil), ord.Items...)
	if ord.PaidAt != nil {
		t := *ord.PaidAt
		cp.PaidAt = &t
	}
	if ord.DeliveredAt != nil {
		t := *ord.DeliveredAt
		cp.DeliveredAt = &t
	}
	if ord.Payment != nil {
		p := *ord.Payment
		cp.Payment = &p
	}
	return &cp
}

func sortOrders(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.String() < orders[j].ID.String()
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
