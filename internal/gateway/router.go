package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/catalog"
	"github.com/pranjal1404/easyshopin/internal/checkout"
	"github.com/pranjal1404/easyshopin/internal/identity"
	"github.com/pranjal1404/easyshopin/internal/order"
	"github.com/pranjal1404/easyshopin/internal/payment"
)

// Deps bundles the services the router exposes.
type Deps struct {
	Catalog  catalog.Lookup
	Carts    *cart.Service
	Checkout *checkout.Controller
	Orders   *order.Service
	Payments *payment.Coordinator
	Timeout  time.Duration
}

// NewRouter builds the HTTP surface of the storefront.
func NewRouter(deps Deps) http.Handler {
	productHandler := NewProductHandler(deps.Catalog, deps.Timeout)
	cartHandler := NewCartHandler(deps.Carts, deps.Timeout)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Timeout)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.Timeout)
	paymentHandler := NewPaymentHandler(deps.Payments, deps.Orders, deps.Timeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Compress(5))
	r.Use(identity.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{product_id}", productHandler.GetProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Get("/totals", cartHandler.GetTotals)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/stage", checkoutHandler.GetStage)
			r.Put("/shipping-address", checkoutHandler.SubmitAddress)
			r.Put("/payment-method", checkoutHandler.SelectPaymentMethod)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordersHandler.PlaceOrder)
			r.Get("/mine", ordersHandler.ListMine)
			r.Get("/reconcile/{client_token}", ordersHandler.Reconcile)
			r.Get("/{order_id}", ordersHandler.GetOrder)
			r.Post("/{order_id}/pay", paymentHandler.Pay)
			r.Post("/{order_id}/settle", paymentHandler.RetrySettlement)
			r.Get("/{order_id}/attempt", paymentHandler.GetAttempt)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/orders", ordersHandler.ListAll)
			r.Put("/orders/{order_id}/deliver", ordersHandler.MarkDelivered)
		})
	})

	return otelhttp.NewHandler(r, "easyshopin-gateway")
}
