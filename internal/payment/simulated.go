package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeOutcome decides whether a simulated capture step goes through.
type ChargeOutcome interface {
	Outcome() error
}

// RandomOutcome declines a small share of charges, mimicking a real
// processor in a development environment.
type RandomOutcome struct {
	FailurePercent int
}

func (r RandomOutcome) Outcome() error {
	if rand.Intn(100) < r.FailurePercent {
		return fmt.Errorf("%w: card declined", ErrProviderDeclined)
	}
	return nil
}

// AlwaysApprove accepts every charge.
type AlwaysApprove struct{}

func (AlwaysApprove) Outcome() error { return nil }

type simulatedTxn struct {
	amount   decimal.Decimal
	currency string
	approved bool
	captured bool
}

// SimulatedProvider is an in-memory Provider for development and
// tests. It enforces the create/approve/capture ordering a real
// processor would.
type SimulatedProvider struct {
	outcome ChargeOutcome

	mu   sync.Mutex
	seq  int64
	txns map[string]*simulatedTxn
}

func NewSimulatedProvider(outcome ChargeOutcome) *SimulatedProvider {
	if outcome == nil {
		outcome = AlwaysApprove{}
	}
	return &SimulatedProvider{
		outcome: outcome,
		txns:    make(map[string]*simulatedTxn),
	}
}

func (p *SimulatedProvider) CreateTransaction(_ context.Context, amount decimal.Decimal, currency string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	id := fmt.Sprintf("SIM-%d", p.seq)
	p.txns[id] = &simulatedTxn{amount: amount, currency: currency}
	return id, nil
}

func (p *SimulatedProvider) Approve(_ context.Context, providerOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txn, ok := p.txns[providerOrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, providerOrderID)
	}
	if err := p.outcome.Outcome(); err != nil {
		return err
	}
	txn.approved = true
	return nil
}

func (p *SimulatedProvider) Capture(_ context.Context, providerOrderID string) (*CaptureDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txn, ok := p.txns[providerOrderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, providerOrderID)
	}
	if !txn.approved {
		return nil, fmt.Errorf("transaction %s is not approved", providerOrderID)
	}
	if txn.captured {
		return nil, fmt.Errorf("transaction %s is already captured", providerOrderID)
	}
	if err := p.outcome.Outcome(); err != nil {
		return nil, err
	}

	txn.captured = true
	return &CaptureDetails{
		Provider:        "simulated",
		ProviderOrderID: providerOrderID,
		Amount:          txn.amount,
		Currency:        txn.currency,
		Reference:       fmt.Sprintf("TXN-%d", time.Now().UnixNano()),
		CapturedAt:      time.Now().UTC(),
	}, nil
}
