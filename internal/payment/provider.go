package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrProviderDeclined    = errors.New("payment provider declined the transaction")
)

// CaptureDetails is the provider-side proof that funds were captured.
type CaptureDetails struct {
	Provider        string
	ProviderOrderID string
	Amount          decimal.Decimal
	Currency        string
	Reference       string
	CapturedAt      time.Time
}

// Provider is the external payment processor. A transaction moves
// through create, approve and capture; each step can fail or decline
// independently.
type Provider interface {
	// CreateTransaction opens a provider-side transaction scoped to
	// the given amount and returns its provider order id.
	CreateTransaction(ctx context.Context, amount decimal.Decimal, currency string) (string, error)

	// Approve authorizes the transaction for capture.
	Approve(ctx context.Context, providerOrderID string) error

	// Capture pulls the authorized funds.
	Capture(ctx context.Context, providerOrderID string) (*CaptureDetails, error)
}
