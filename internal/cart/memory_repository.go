package cart

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository implements Repository with in-memory storage, for
// dev mode and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*Cart),
	}
}

func (m *MemoryRepository) GetCart(_ context.Context, userID string) (*Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.carts[userID]
	if !exists {
		return nil, ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *MemoryRepository) UpsertCart(_ context.Context, cart *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	m.carts[cart.UserID] = cloneCart(cart)
	return nil
}

func (m *MemoryRepository) AddItem(_ context.Context, userID string, item CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	item.AddedAt = now

	c, exists := m.carts[userID]
	if !exists {
		m.carts[userID] = &Cart{
			UserID:    userID,
			Items:     []CartItem{item},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	}

	c.upsert(item)
	c.UpdatedAt = now
	return nil
}

func (m *MemoryRepository) RemoveItem(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.carts[userID]
	if !exists {
		return ErrCartNotFound
	}
	c.remove(productID)
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) SaveShippingAddress(_ context.Context, userID string, addr Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.getOrCreateLocked(userID)
	c.ShippingAddress = &addr
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) SavePaymentMethod(_ context.Context, userID string, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.getOrCreateLocked(userID)
	c.PaymentMethod = method
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.carts[userID]; !exists {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *MemoryRepository) getOrCreateLocked(userID string) *Cart {
	c, exists := m.carts[userID]
	if !exists {
		now := time.Now()
		c = &Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}
		m.carts[userID] = c
	}
	return c
}

func cloneCart(c *Cart) *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		cp.ShippingAddress = &addr
	}
	return &cp
}
