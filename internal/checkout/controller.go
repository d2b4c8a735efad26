package checkout

import (
	"context"
	"slices"

	"github.com/pranjal1404/easyshopin/internal/cart"
)

// DefaultMethods is the payment method allow-list used when none is
// configured.
var DefaultMethods = []string{"PayPal", "Stripe"}

// Controller sequences the checkout steps: capture a complete shipping
// address, select a payment method from the allow-list, then review.
// Step data lives on the cart so navigating back and forth keeps what
// was already entered.
type Controller struct {
	carts   *cart.Service
	methods []string
}

func NewController(carts *cart.Service, methods []string) *Controller {
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	return &Controller{carts: carts, methods: methods}
}

func (c *Controller) Methods() []string {
	return slices.Clone(c.methods)
}

// Stage reports the step the user's checkout is currently in.
func (c *Controller) Stage(ctx context.Context, userID string) (Stage, error) {
	crt, err := c.carts.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return StageOf(crt), nil
}

// SubmitAddress records the shipping address. An incomplete address is
// rejected and the checkout stays in the shipping step.
func (c *Controller) SubmitAddress(ctx context.Context, userID string, addr cart.Address) error {
	if !addr.Complete() {
		return ErrIncompleteShipping
	}
	return c.carts.SaveShippingAddress(ctx, userID, addr)
}

// SelectPaymentMethod records the payment method. The shipping step
// must be complete first; the method must be on the allow-list.
func (c *Controller) SelectPaymentMethod(ctx context.Context, userID string, method string) error {
	crt, err := c.carts.Get(ctx, userID)
	if err != nil {
		return err
	}
	if StageOf(crt) == StageAwaitingAddress {
		return ErrIncompleteShipping
	}
	if !slices.Contains(c.methods, method) {
		return ErrUnsupportedMethod
	}
	return c.carts.SavePaymentMethod(ctx, userID, method)
}

// EnsureReady checks that the cart may be placed as an order: the
// checkout must have reached the review step and the cart must hold at
// least one item.
func (c *Controller) EnsureReady(crt *cart.Cart) error {
	switch StageOf(crt) {
	case StageAwaitingAddress:
		return ErrIncompleteShipping
	case StageAwaitingPaymentMethod:
		return ErrNoPaymentMethod
	}
	if crt.IsEmpty() {
		return ErrEmptyCart
	}
	return nil
}
