package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// BreakerProvider wraps a Provider with a circuit breaker so a
// misbehaving processor sheds load fast instead of tying up capture
// attempts.
type BreakerProvider struct {
	inner  Provider
	create *gobreaker.CircuitBreaker[string]
	act    *gobreaker.CircuitBreaker[*CaptureDetails]
}

func NewBreakerProvider(inner Provider) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A decline is the processor answering, not the processor
		// being down.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProviderDeclined)
		},
	}
	return &BreakerProvider{
		inner:  inner,
		create: gobreaker.NewCircuitBreaker[string](settings),
		act:    gobreaker.NewCircuitBreaker[*CaptureDetails](settings),
	}
}

func (b *BreakerProvider) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	return b.create.Execute(func() (string, error) {
		return b.inner.CreateTransaction(ctx, amount, currency)
	})
}

func (b *BreakerProvider) Approve(ctx context.Context, providerOrderID string) error {
	_, err := b.act.Execute(func() (*CaptureDetails, error) {
		return nil, b.inner.Approve(ctx, providerOrderID)
	})
	return err
}

func (b *BreakerProvider) Capture(ctx context.Context, providerOrderID string) (*CaptureDetails, error) {
	return b.act.Execute(func() (*CaptureDetails, error) {
		return b.inner.Capture(ctx, providerOrderID)
	})
}
