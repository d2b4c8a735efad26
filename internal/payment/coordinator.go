package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pranjal1404/easyshopin/internal/order"
)

// State is the position of a capture attempt in its lifecycle.
type State string

const (
	StateUnpaid          State = "UNPAID"
	StateCaptureCreated  State = "CAPTURE_CREATED"
	StateCaptureApproved State = "CAPTURE_APPROVED"
	StateCaptureCaptured State = "CAPTURE_CAPTURED"
	StateSettledPaid     State = "SETTLED_PAID"
	StateCaptureFailed   State = "CAPTURE_FAILED"
)

var validTransitions = map[State][]State{
	StateUnpaid:          {StateCaptureCreated, StateCaptureFailed},
	StateCaptureCreated:  {StateCaptureApproved, StateCaptureFailed},
	StateCaptureApproved: {StateCaptureCaptured, StateCaptureFailed},
	StateCaptureCaptured: {StateSettledPaid},
	StateSettledPaid:     {},
	StateCaptureFailed:   {},
}

// CanTransition reports whether from may move directly to to.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	ErrIllegalTransition = errors.New("illegal capture state transition")
	ErrCaptureInFlight   = errors.New("a capture attempt is already running for this order")
	ErrNoAttempt         = errors.New("no capture attempt for this order")
)

// Attempt tracks one capture run against one order. Once an attempt
// reaches CAPTURE_CAPTURED only settlement remains, and settlement is
// retriable on its own: funds are never pulled twice.
type Attempt struct {
	OrderID         uuid.UUID
	ProviderOrderID string
	State           State
	Details         *CaptureDetails
}

func (a *Attempt) clone() *Attempt {
	cp := *a
	return &cp
}

// Coordinator drives the capture handshake against the provider and
// settles the result into the order of record.
//
// A running flow owns a private working copy of its attempt and
// publishes a snapshot into the map after every step, so readers never
// share memory with a writer. The inflight set serializes runs per
// order, covering Pay and RetrySettlement alike.
type Coordinator struct {
	provider Provider
	records  order.Records
	currency string
	log      zerolog.Logger

	mu       sync.Mutex
	attempts map[uuid.UUID]*Attempt
	inflight map[uuid.UUID]struct{}
}

func NewCoordinator(provider Provider, records order.Records, currency string, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		records:  records,
		currency: currency,
		log:      log.With().Str("component", "payment-coordinator").Logger(),
		attempts: make(map[uuid.UUID]*Attempt),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Pay runs the whole flow for an order: create, approve, capture,
// settle. An order that is already paid returns its settled attempt
// without touching the provider. Settlement failure leaves the
// attempt at CAPTURE_CAPTURED for RetrySettlement.
func (c *Coordinator) Pay(ctx context.Context, orderID uuid.UUID) (*Attempt, error) {
	ord, err := c.records.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if ord.IsPaid {
		return &Attempt{OrderID: orderID, State: StateSettledPaid}, nil
	}

	att, started, err := c.begin(orderID)
	if err != nil || !started {
		return att, err
	}
	defer c.release(orderID)

	if err := c.createTransaction(ctx, att, ord); err != nil {
		return att, err
	}
	if err := c.approve(ctx, att); err != nil {
		return att, err
	}
	if err := c.capture(ctx, att); err != nil {
		return att, err
	}
	return att, c.settle(ctx, att)
}

// RetrySettlement re-runs only the settlement step of an attempt that
// captured funds but could not record them. The provider is not
// contacted again. A retry racing another run of the same order waits
// its turn behind ErrCaptureInFlight instead of reporting an illegal
// transition for work that succeeded.
func (c *Coordinator) RetrySettlement(ctx context.Context, orderID uuid.UUID) (*Attempt, error) {
	c.mu.Lock()
	published, ok := c.attempts[orderID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoAttempt
	}
	if _, running := c.inflight[orderID]; running {
		att := published.clone()
		c.mu.Unlock()
		return att, ErrCaptureInFlight
	}
	att := published.clone()
	if att.State == StateSettledPaid {
		c.mu.Unlock()
		return att, nil
	}
	if att.State != StateCaptureCaptured {
		c.mu.Unlock()
		return att, fmt.Errorf("%w: settlement requires captured funds, attempt is %s", ErrIllegalTransition, att.State)
	}
	c.inflight[orderID] = struct{}{}
	c.mu.Unlock()
	defer c.release(orderID)

	return att, c.settle(ctx, att)
}

// Attempt returns a snapshot of the tracked attempt for an order, if
// any.
func (c *Coordinator) Attempt(orderID uuid.UUID) (*Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	att, ok := c.attempts[orderID]
	if !ok {
		return nil, false
	}
	return att.clone(), true
}

// begin claims the order for a fresh capture run. It returns a working
// copy private to the caller when started is true; otherwise the
// snapshot explains why no run began.
func (c *Coordinator) begin(orderID uuid.UUID) (att *Attempt, started bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.inflight[orderID]; running {
		return c.attempts[orderID].clone(), false, ErrCaptureInFlight
	}
	if existing, ok := c.attempts[orderID]; ok {
		switch existing.State {
		case StateSettledPaid:
			return existing.clone(), false, nil
		case StateCaptureFailed:
			// A failed attempt is terminal; a new one replaces it.
		case StateCaptureCaptured:
			// Funds are captured; only settlement may be retried.
			return existing.clone(), false, ErrCaptureInFlight
		default:
			return existing.clone(), false, ErrCaptureInFlight
		}
	}

	att = &Attempt{OrderID: orderID, State: StateUnpaid}
	c.attempts[orderID] = att.clone()
	c.inflight[orderID] = struct{}{}
	return att, true, nil
}

func (c *Coordinator) release(orderID uuid.UUID) {
	c.mu.Lock()
	delete(c.inflight, orderID)
	c.mu.Unlock()
}

// publish stores a snapshot of the working copy for readers.
func (c *Coordinator) publish(att *Attempt) {
	c.mu.Lock()
	c.attempts[att.OrderID] = att.clone()
	c.mu.Unlock()
}

func (c *Coordinator) createTransaction(ctx context.Context, att *Attempt, ord *order.Order) error {
	providerOrderID, err := c.provider.CreateTransaction(ctx, ord.TotalPrice, c.currency)
	if err != nil {
		c.fail(att, "create")
		return fmt.Errorf("create transaction: %w", err)
	}
	att.ProviderOrderID = providerOrderID
	return c.transition(att, StateCaptureCreated)
}

func (c *Coordinator) approve(ctx context.Context, att *Attempt) error {
	if err := c.provider.Approve(ctx, att.ProviderOrderID); err != nil {
		c.fail(att, "approve")
		return fmt.Errorf("approve transaction: %w", err)
	}
	return c.transition(att, StateCaptureApproved)
}

func (c *Coordinator) capture(ctx context.Context, att *Attempt) error {
	details, err := c.provider.Capture(ctx, att.ProviderOrderID)
	if err != nil {
		c.fail(att, "capture")
		return fmt.Errorf("capture transaction: %w", err)
	}
	att.Details = details
	return c.transition(att, StateCaptureCaptured)
}

func (c *Coordinator) settle(ctx context.Context, att *Attempt) error {
	rec := order.PaymentRecord{
		Provider:        att.Details.Provider,
		ProviderOrderID: att.Details.ProviderOrderID,
		Amount:          att.Details.Amount,
		Currency:        att.Details.Currency,
		Reference:       att.Details.Reference,
		CapturedAt:      att.Details.CapturedAt,
	}

	_, err := c.records.RecordPayment(ctx, att.OrderID, rec)
	if err != nil && !errors.Is(err, order.ErrAlreadyPaid) {
		// Funds are captured but not recorded. The attempt stays at
		// CAPTURE_CAPTURED so settlement alone can be retried.
		c.log.Error().Err(err).
			Str("order_id", att.OrderID.String()).
			Str("provider_order_id", att.ProviderOrderID).
			Msg("settlement failed, funds captured but not recorded")
		return fmt.Errorf("settle payment: %w", err)
	}

	if terr := c.transition(att, StateSettledPaid); terr != nil {
		return terr
	}
	c.log.Info().
		Str("order_id", att.OrderID.String()).
		Str("provider_order_id", att.ProviderOrderID).
		Msg("payment settled")
	return nil
}

func (c *Coordinator) transition(att *Attempt, to State) error {
	if !CanTransition(att.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, att.State, to)
	}
	att.State = to
	c.publish(att)
	return nil
}

func (c *Coordinator) fail(att *Attempt, step string) {
	att.State = StateCaptureFailed
	c.publish(att)
	c.log.Warn().
		Str("order_id", att.OrderID.String()).
		Str("step", step).
		Msg("capture attempt failed")
}
