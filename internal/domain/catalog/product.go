package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item that can be sold on an order.
// Products are created once by catalog seeding and are read-only afterwards;
// an unavailable product stays referencable by historical order lines.
type Product struct {
	ID        string
	Name      string
	Category  string
	Price     decimal.Decimal
	Available bool
}

// InvalidProductError indicates a registration request with bad attributes.
type InvalidProductError struct {
	Reason string
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("invalid product: %s", e.Reason)
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
