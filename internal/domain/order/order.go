package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no order exists for a queried client.
var ErrNotFound = errors.New("order not found")

// Order is a client transaction aggregating priced lines into a total.
//
// Total is a cached value: it always reflects the line data as of the last
// RecomputeTotal call and is never updated as a side effect of attaching
// lines. Callers set it only through the service operations.
type Order struct {
	ID        string
	ClientID  string
	Total     decimal.Decimal
	Lines     []OrderLine
	CreatedAt time.Time
}

// OrderLine binds one order to one product at a given quantity. A line is
// owned by its order and never outlives it. Position records insertion order
// for display; it does not affect the total.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Position  int
}

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	AddLine(ctx context.Context, line *OrderLine) error
	UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error
	// LatestByClient returns the most recent order for the client with its
	// lines loaded, or ErrNotFound.
	LatestByClient(ctx context.Context, clientID string) (*Order, error)
	// List returns all orders with their lines loaded, oldest first.
	List(ctx context.Context) ([]Order, error)
}
