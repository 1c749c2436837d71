// Command seed-db populates the catalog from a products JSON file and
// optionally replays the demo transaction: one order with two lines, a
// recomputed total, and a 10% discount.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
	"github.com/xenking/sales-ledger/internal/domain/order"
	"github.com/xenking/sales-ledger/internal/storage/postgres"
)

type productJSON struct {
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

func main() {
	var (
		databaseURL       string
		productsFile      string
		demoOrder         bool
		rejectUnavailable bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.BoolVar(&demoOrder, "demo-order", false, "create a demo order with a recomputed, discounted total")
	flag.BoolVar(&rejectUnavailable, "reject-unavailable", false, "fail demo-order lines that reference delisted products")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, demoOrder, order.PolicyFor(rejectUnavailable)); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, demoOrder bool, policy order.UnavailablePolicy) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	catalogSvc := catalog.NewService(productRepo)

	registered, err := seedProducts(ctx, catalogSvc, productRepo, productsFile)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}

	if demoOrder {
		orderSvc := order.NewService(productRepo, orderRepo, policy)
		if err := seedDemoOrder(ctx, orderSvc, registered); err != nil {
			return errors.Wrap(err, "seed demo order")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, svc *catalog.Service, repo catalog.Repository, productsFile string) ([]*catalog.Product, error) {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	slog.Info("registering products", slog.Int("count", len(products)))

	registered := make([]*catalog.Product, 0, len(products))
	for _, p := range products {
		var created *catalog.Product
		var err error
		if p.Available {
			created, err = svc.Register(ctx, p.Name, p.Category, p.Price)
		} else {
			// Registration always produces an available product; delisted
			// seed entries are written directly so historical orders can
			// still reference them.
			created = &catalog.Product{
				ID:       uuid.New().String(),
				Name:     p.Name,
				Category: p.Category,
				Price:    p.Price,
			}
			err = repo.Create(ctx, created)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "register product %q", p.Name)
		}
		registered = append(registered, created)

		slog.Info("registered product",
			slog.String("id", created.ID),
			slog.String("name", created.Name),
			slog.String("price", created.Price.String()),
			slog.Bool("available", created.Available),
		)
	}

	return registered, nil
}

// seedDemoOrder replays the canonical ledger scenario: two lines on a fresh
// order, an explicit recompute, then a 10% discount on the computed total.
func seedDemoOrder(ctx context.Context, svc *order.Service, products []*catalog.Product) error {
	if len(products) < 2 {
		return errors.New("demo order needs at least 2 seeded products")
	}

	o, err := svc.Create(ctx, "Raquel Martinez")
	if err != nil {
		return errors.Wrap(err, "create order")
	}

	if _, err := svc.AddLine(ctx, o, products[0], 1); err != nil {
		return errors.Wrap(err, "add first line")
	}
	if _, err := svc.AddLine(ctx, o, products[1], 2); err != nil {
		return errors.Wrap(err, "add second line")
	}

	total, err := svc.RecomputeTotal(ctx, o)
	if err != nil {
		return errors.Wrap(err, "recompute total")
	}
	slog.Info("order total computed", slog.String("order_id", o.ID), slog.String("total", total.String()))

	discounted, err := svc.ApplyDiscount(ctx, o, decimal.NewFromInt(10))
	if err != nil {
		return errors.Wrap(err, "apply discount")
	}
	slog.Info("discount applied", slog.String("order_id", o.ID), slog.String("total", discounted.String()))

	return nil
}
