package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
	"github.com/xenking/sales-ledger/internal/domain/valuation"
)

// UnavailablePolicy controls whether lines may reference products whose
// availability flag is off. The historical ledger permits it (re-ordering a
// delisted product is legal), so Permit is the default; Reject is available
// for deployments that want strict catalogs.
type UnavailablePolicy int

const (
	PermitUnavailable UnavailablePolicy = iota
	RejectUnavailable
)

// PolicyFor maps the reject-unavailable toggle the CLI tools expose onto a
// policy value.
func PolicyFor(reject bool) UnavailablePolicy {
	if reject {
		return RejectUnavailable
	}
	return PermitUnavailable
}

// InvalidOrderError indicates an order creation request with bad attributes.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// UnavailableProductError indicates a line rejected by the RejectUnavailable
// policy.
type UnavailableProductError struct {
	ProductID string
}

func (e *UnavailableProductError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// ProductNotFoundError indicates a line references a product that no longer
// exists in the catalog at recompute time.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Service encapsulates the order lifecycle: creation, line attachment, total
// recomputation, and discount application. One logical writer per order is
// assumed; the store serializes concurrent sessions.
type Service struct {
	products catalog.Repository
	orders   Repository
	policy   UnavailablePolicy
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(products catalog.Repository, orders Repository, policy UnavailablePolicy) *Service {
	return &Service{
		products: products,
		orders:   orders,
		policy:   policy,
		now:      time.Now,
	}
}

// Create opens a new order for the given client with a zero total. The
// creation timestamp is set once and never mutated.
func (s *Service) Create(ctx context.Context, clientID string) (*Order, error) {
	if clientID == "" {
		return nil, &InvalidOrderError{Reason: "client id must not be empty"}
	}

	o := &Order{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Total:     decimal.Zero,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// AddLine attaches a product at a quantity to the order. The total is NOT
// recomputed as a side effect; callers issue an explicit RecomputeTotal.
// On a validation failure the order's line collection is untouched.
func (s *Service) AddLine(ctx context.Context, o *Order, p *catalog.Product, quantity int) (*OrderLine, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{ProductID: p.ID}
	}
	if s.policy == RejectUnavailable && !p.Available {
		return nil, &UnavailableProductError{ProductID: p.ID}
	}

	line := OrderLine{
		ID:        uuid.New().String(),
		OrderID:   o.ID,
		ProductID: p.ID,
		Quantity:  quantity,
		Position:  len(o.Lines),
	}
	if err := s.orders.AddLine(ctx, &line); err != nil {
		return nil, errors.Wrap(err, "add order line")
	}

	o.Lines = append(o.Lines, line)
	return &line, nil
}

// RecomputeTotal derives the order total fresh from its current lines and the
// products' current prices (late binding: a price change after attachment is
// picked up here). Idempotent absent intervening mutation; an order with no
// lines totals zero.
func (s *Service) RecomputeTotal(ctx context.Context, o *Order) (decimal.Decimal, error) {
	snapshot, err := s.snapshotLines(ctx, o)
	if err != nil {
		return decimal.Zero, err
	}

	total := valuation.Total(snapshot)
	if err := s.orders.UpdateTotal(ctx, o.ID, total); err != nil {
		return decimal.Zero, errors.Wrap(err, "update total")
	}

	o.Total = total
	return total, nil
}

// ApplyDiscount reduces the current total by the given percentage. The
// pre-discount value is not retained: a repeated call discounts the already
// discounted total, compounding multiplicatively. Applying a discount before
// any recompute discounts the initial zero, a degenerate but valid transition.
func (s *Service) ApplyDiscount(ctx context.Context, o *Order, percentage decimal.Decimal) (decimal.Decimal, error) {
	total, err := valuation.ApplyDiscount(o.Total, percentage)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.orders.UpdateTotal(ctx, o.ID, total); err != nil {
		return decimal.Zero, errors.Wrap(err, "update total")
	}

	o.Total = total
	return total, nil
}

// snapshotLines resolves the order's lines against the catalog in a single
// batch query and returns storage-independent (price, quantity) pairs for the
// valuation engine.
func (s *Service) snapshotLines(ctx context.Context, o *Order) ([]valuation.Line, error) {
	if len(o.Lines) == 0 {
		return nil, nil
	}

	ids := make([]string, len(o.Lines))
	for i, line := range o.Lines {
		ids[i] = line.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	prices := make(map[string]decimal.Decimal, len(fetched))
	for _, p := range fetched {
		prices[p.ID] = p.Price
	}

	snapshot := make([]valuation.Line, len(o.Lines))
	for i, line := range o.Lines {
		price, ok := prices[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		snapshot[i] = valuation.Line{UnitPrice: price, Quantity: line.Quantity}
	}
	return snapshot, nil
}
