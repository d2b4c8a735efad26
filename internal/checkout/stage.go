package checkout

import "github.com/pranjal1404/easyshopin/internal/cart"

// Stage is the checkout step a cart is in. The stage is derived from
// the data already captured on the cart, which makes the flow
// re-entrant: going back to an earlier step never discards data.
type Stage string

const (
	StageAwaitingAddress       Stage = "AWAITING_ADDRESS"
	StageAwaitingPaymentMethod Stage = "AWAITING_PAYMENT_METHOD"
	StageReadyToPlace          Stage = "READY_TO_PLACE"
)

func (s Stage) String() string {
	return string(s)
}

// StageOf derives the checkout stage from the captured cart data.
func StageOf(c *cart.Cart) Stage {
	if c.ShippingAddress == nil || !c.ShippingAddress.Complete() {
		return StageAwaitingAddress
	}
	if c.PaymentMethod == "" {
		return StageAwaitingPaymentMethod
	}
	return StageReadyToPlace
}
