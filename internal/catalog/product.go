package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
}

// Lookup is the read side of the catalog: current price and available
// stock for a product. The cart validates quantities against it and the
// order submission re-checks stock at placement time.
type Lookup interface {
	Product(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
}

// Store extends Lookup with the write operations used by seeding and
// admin tooling.
type Store interface {
	Lookup
	Save(ctx context.Context, p *Product) error
	Close() error
}
