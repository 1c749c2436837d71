package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-ledger/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// WithTx returns a copy of the repository that issues every statement on tx,
// so multi-statement writes commit or roll back as a unit.
func (r *OrderRepository) WithTx(tx pgx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create persists a new order header. Lines are attached separately.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (id, client_id, total, created_at)
		 VALUES ($1, $2, $3, $4)`,
		o.ID, o.ClientID, o.Total, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// AddLine persists a single order line.
func (r *OrderRepository) AddLine(ctx context.Context, line *order.OrderLine) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_lines (id, order_id, product_id, quantity, position)
		 VALUES ($1, $2, $3, $4, $5)`,
		line.ID, line.OrderID, line.ProductID, line.Quantity, line.Position,
	)
	if err != nil {
		return fmt.Errorf("adding line to order %q: %w", line.OrderID, err)
	}
	return nil
}

// UpdateTotal stores a freshly computed (or discounted) total.
func (r *OrderRepository) UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET total = $2 WHERE id = $1`,
		orderID, total,
	)
	if err != nil {
		return fmt.Errorf("updating total of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// LatestByClient returns the most recent order for the client with its lines
// loaded, or order.ErrNotFound.
func (r *OrderRepository) LatestByClient(ctx context.Context, clientID string) (*order.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, total, created_at
		 FROM orders WHERE client_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting latest order for client %q: %w", clientID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order for client %q: %w", clientID, err)
	}

	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns all orders with their lines loaded, oldest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, total, created_at
		 FROM orders ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}

	for i := range orders {
		if err := r.loadLines(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, o *order.Order) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, product_id, quantity, position
		 FROM order_lines WHERE order_id = $1 ORDER BY position`,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("loading lines of order %q: %w", o.ID, err)
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.OrderLine, error) {
		var line order.OrderLine
		err := row.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Position)
		return line, err
	})
	if err != nil {
		return fmt.Errorf("scanning lines of order %q: %w", o.ID, err)
	}

	o.Lines = lines
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.ClientID, &o.Total, &o.CreatedAt)
	return o, err
}
