package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

// StripeProvider implements Provider on Stripe payment intents with
// manual capture, mapping the create/approve/capture handshake onto
// intent create/confirm/capture.
type StripeProvider struct {
	intents stripeIntentAPI
	clock   func() time.Time
}

func NewStripeProvider(apiKey string) (*StripeProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, nil)
	return &StripeProvider{
		intents: sc.PaymentIntents,
		clock:   time.Now,
	}, nil
}

// Currencies that Stripe denominates in whole units rather than cents.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "VND": true, "CLP": true,
}

func minorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (p *StripeProvider) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minorUnits(amount, currency)),
		Currency:      stripe.String(strings.ToLower(currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx

	intent, err := p.intents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return intent.ID, nil
}

func (p *StripeProvider) Approve(ctx context.Context, providerOrderID string) error {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx

	intent, err := p.intents.Confirm(providerOrderID, params)
	if err != nil {
		return fmt.Errorf("stripe: confirm payment intent: %w", err)
	}
	if intent.Status == stripe.PaymentIntentStatusCanceled {
		return fmt.Errorf("%w: intent %s canceled", ErrProviderDeclined, providerOrderID)
	}
	return nil
}

func (p *StripeProvider) Capture(ctx context.Context, providerOrderID string) (*CaptureDetails, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	intent, err := p.intents.Capture(providerOrderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: capture payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent %s status %s", ErrProviderDeclined, providerOrderID, intent.Status)
	}

	currency := strings.ToUpper(string(intent.Currency))
	amount := decimal.NewFromInt(intent.AmountReceived)
	if !zeroDecimalCurrencies[currency] {
		amount = amount.Div(decimal.NewFromInt(100))
	}

	reference := ""
	capturedAt := p.clock().UTC()
	if charge := intent.LatestCharge; charge != nil {
		reference = charge.ID
		if charge.Created != 0 {
			capturedAt = time.Unix(charge.Created, 0).UTC()
		}
	}

	return &CaptureDetails{
		Provider:        "stripe",
		ProviderOrderID: intent.ID,
		Amount:          amount,
		Currency:        currency,
		Reference:       reference,
		CapturedAt:      capturedAt,
	}, nil
}
