package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/catalog"
	"github.com/pranjal1404/easyshopin/internal/checkout"
	"github.com/pranjal1404/easyshopin/internal/identity"
)

var (
	ErrPlacementInFlight   = errors.New("an order placement is already in progress for this user")
	ErrStockConflict       = errors.New("insufficient stock for a cart item")
	ErrNotAdmin            = errors.New("operation requires admin privileges")
	ErrSubmissionAmbiguous = errors.New("order submission outcome unknown")
)

// AmbiguousOutcomeError reports that a placement attempt failed in a
// way that does not reveal whether the order of record was created.
// The client token lets the caller find out via Reconcile before
// retrying.
type AmbiguousOutcomeError struct {
	ClientToken string
	Err         error
}

func (e *AmbiguousOutcomeError) Error() string {
	return fmt.Sprintf("order submission outcome unknown (client token %s): %v", e.ClientToken, e.Err)
}

func (e *AmbiguousOutcomeError) Unwrap() error { return e.Err }

func (e *AmbiguousOutcomeError) Is(target error) bool {
	return target == ErrSubmissionAmbiguous
}

// Service turns a ready cart into an order of record and answers
// order queries with ownership checks applied.
type Service struct {
	records  Records
	carts    *cart.Service
	ctrl     *checkout.Controller
	catalog  catalog.Lookup
	log      zerolog.Logger
	newToken func() string

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(records Records, carts *cart.Service, ctrl *checkout.Controller, cat catalog.Lookup, log zerolog.Logger) *Service {
	return &Service{
		records:  records,
		carts:    carts,
		ctrl:     ctrl,
		catalog:  cat,
		log:      log.With().Str("component", "order-service").Logger(),
		newToken: uuid.NewString,
		inflight: make(map[string]struct{}),
	}
}

// PlaceOrder freezes the user's cart into an order of record. The
// store is never contacted for a cart that fails readiness checks, so
// a failed placement leaves no partial order behind. When the store's
// answer is lost in transit the error is an *AmbiguousOutcomeError
// rather than a plain failure.
func (s *Service) PlaceOrder(ctx context.Context, sess identity.Session) (*Order, error) {
	if err := s.acquire(sess.UserID); err != nil {
		return nil, err
	}
	defer s.release(sess.UserID)

	crt, err := s.carts.Get(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if err := s.ctrl.EnsureReady(crt); err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, crt); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ClientToken:     s.newToken(),
		UserID:          sess.UserID,
		Items:           ItemsFromCart(crt.Items),
		ShippingAddress: *crt.ShippingAddress,
		PaymentMethod:   crt.PaymentMethod,
		Advisory:        crt.Totals(s.carts.Rules()),
		PlacedAt:        time.Now().UTC(),
	}

	ord, err := s.records.CreateOrder(ctx, snap)
	if err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			// A fresh token collided, so a previous send of this
			// exact request must have landed. Reconcile resolves it.
			if found, findErr := s.records.FindByClientToken(ctx, sess.UserID, snap.ClientToken); findErr == nil {
				s.clearCart(ctx, sess.UserID)
				return found, nil
			}
		}
		// The store may or may not have persisted the order; only a
		// lookup by token can tell.
		return nil, &AmbiguousOutcomeError{ClientToken: snap.ClientToken, Err: err}
	}

	s.clearCart(ctx, sess.UserID)

	s.log.Info().
		Str("order_id", ord.ID.String()).
		Str("user_id", sess.UserID).
		Str("total", ord.TotalPrice.String()).
		Msg("order placed")
	return ord, nil
}

// Reconcile resolves an ambiguous placement: it reports the order the
// token produced, or ErrOrderNotFound when the placement never landed
// and a retry is safe. It is a pure lookup; the cart is only ever
// cleared on the placement path, so reconciling an old token cannot
// touch a cart the user has since rebuilt.
func (s *Service) Reconcile(ctx context.Context, sess identity.Session, clientToken string) (*Order, error) {
	return s.records.FindByClientToken(ctx, sess.UserID, clientToken)
}

// Get returns the order when the caller owns it or is an admin.
// Foreign orders are indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, sess identity.Session, id uuid.UUID) (*Order, error) {
	ord, err := s.records.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord.UserID != sess.UserID && !sess.IsAdmin {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

func (s *Service) ListMine(ctx context.Context, sess identity.Session) ([]*Order, error) {
	return s.records.ListByUser(ctx, sess.UserID)
}

func (s *Service) ListAll(ctx context.Context, sess identity.Session) ([]*Order, error) {
	if !sess.IsAdmin {
		return nil, ErrNotAdmin
	}
	return s.records.ListAll(ctx)
}

// MarkDelivered flips the fulfilment flag. Only admins may call it,
// and only paid orders accept it.
func (s *Service) MarkDelivered(ctx context.Context, sess identity.Session, id uuid.UUID) (*Order, error) {
	if !sess.IsAdmin {
		return nil, ErrNotAdmin
	}
	ord, err := s.records.MarkDelivered(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("order_id", ord.ID.String()).
		Msg("order marked delivered")
	return ord, nil
}

// checkStock re-validates every cart line against current catalog
// stock so the order of record is never created for quantities the
// shop cannot fulfil.
func (s *Service) checkStock(ctx context.Context, crt *cart.Cart) error {
	for _, it := range crt.Items {
		p, err := s.catalog.Product(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return fmt.Errorf("%w: product %d is no longer available", ErrStockConflict, it.ProductID)
			}
			return fmt.Errorf("check stock for product %d: %w", it.ProductID, err)
		}
		if it.Quantity > p.CountInStock {
			return fmt.Errorf("%w: product %d has %d in stock, cart wants %d",
				ErrStockConflict, it.ProductID, p.CountInStock, it.Quantity)
		}
	}
	return nil
}

// clearCart empties the cart after a confirmed placement. Failure here
// is logged, not surfaced: the order exists and the user must see it.
func (s *Service) clearCart(ctx context.Context, userID string) {
	if err := s.carts.Clear(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to clear cart after placement")
	}
}

func (s *Service) acquire(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[userID]; busy {
		return ErrPlacementInFlight
	}
	s.inflight[userID] = struct{}{}
	return nil
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, userID)
}
