package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service encapsulates catalog registration logic.
type Service struct {
	products Repository
}

// NewService creates a catalog Service backed by the given repository.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// Register validates the product attributes, assigns a fresh identity, and
// persists the product as available. There are no update or delete
// operations: a registered product is immutable.
func (s *Service) Register(ctx context.Context, name, category string, price decimal.Decimal) (*Product, error) {
	if name == "" {
		return nil, &InvalidProductError{Reason: "name must not be empty"}
	}
	if price.IsNegative() {
		return nil, &InvalidProductError{Reason: "price must not be negative"}
	}

	p := &Product{
		ID:        uuid.New().String(),
		Name:      name,
		Category:  category,
		Price:     price,
		Available: true,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	return p, nil
}
