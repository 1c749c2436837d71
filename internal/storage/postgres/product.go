package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new catalog product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, category, price, available)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Category, p.Price, p.Available,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, price, available
		 FROM products ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

// GetByID returns a single product or catalog.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, price, available
		 FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("scanning product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products matching the given ids in a single query.
// Missing ids are simply absent from the result; callers decide whether that
// is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, price, available
		 FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Available)
	return p, err
}
