// Command order-ingest imports historical ledger exports into the store.
// Each input file is a gzipped CSV with one row per order line:
//
//	order_id,client_id,created_at(RFC3339),product_id,quantity
//
// Exports from different regions can overlap. An order id appearing in more
// than one file is ambiguous and is skipped entirely; cross-file duplicates
// are detected with per-file bloom filters so the files never have to be
// held in memory at once.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
	"github.com/xenking/sales-ledger/internal/domain/order"
	"github.com/xenking/sales-ledger/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one export file is required")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL); err != nil {
		slog.Error("order ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter of order ids per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect order ids whose bloom bits are set in another file.
	// Bloom hits are only candidates (false positives are possible), but a
	// skipped false positive just means one importable order is left out,
	// which is acceptable for a dedupe pass.
	slog.Info("pass 2: detecting cross-file duplicates")

	duplicates, err := findCrossFileIDs(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "detect duplicates")
	}

	slog.Info("duplicate order ids skipped", slog.Int("count", len(duplicates)))

	// Pass 3: insert the remaining orders and recompute their totals.
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)

	total := 0
	for _, f := range files {
		n, err := importFile(ctx, f, duplicates, pool, productRepo)
		if err != nil {
			return errors.Wrapf(err, "import %s", f)
		}
		total += n
		slog.Info("imported file", slog.String("file", f), slog.Int("orders", n))
	}

	slog.Info("orders imported", slog.Int("count", total))
	return nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			err := scanRows(gctx, file, func(row ingestRow) error {
				filter.AddString(row.orderID)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", file)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func findCrossFileIDs(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	duplicates := make(map[string]struct{})
	for i, file := range files {
		err := scanRows(ctx, file, func(row ingestRow) error {
			for j, filter := range filters {
				if j != i && filter.TestString(row.orderID) {
					duplicates[row.orderID] = struct{}{}
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", file)
		}
	}
	return duplicates, nil
}

// ingestRow is one parsed CSV line of an export file.
type ingestRow struct {
	orderID   string
	clientID  string
	createdAt time.Time
	productID string
	quantity  int
}

// scanRows streams the gzipped CSV file, invoking fn per valid row. Rows
// that fail to parse are logged and skipped rather than aborting the file.
func scanRows(ctx context.Context, file string, fn func(ingestRow) error) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = 5

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			slog.Warn("skipping malformed row",
				slog.String("file", file), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		row, err := parseRow(record)
		if err != nil {
			slog.Warn("skipping invalid row",
				slog.String("file", file), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		if err := fn(row); err != nil {
			return err
		}
	}
}

func parseRow(record []string) (ingestRow, error) {
	createdAt, err := time.Parse(time.RFC3339, record[2])
	if err != nil {
		return ingestRow{}, errors.Wrap(err, "created_at")
	}

	quantity, err := strconv.Atoi(record[4])
	if err != nil {
		return ingestRow{}, errors.Wrap(err, "quantity")
	}
	if quantity < 1 {
		return ingestRow{}, errors.Errorf("quantity %d below 1", quantity)
	}
	if record[0] == "" || record[1] == "" || record[3] == "" {
		return ingestRow{}, errors.New("empty id field")
	}

	return ingestRow{
		orderID:   record[0],
		clientID:  record[1],
		createdAt: createdAt,
		productID: record[3],
		quantity:  quantity,
	}, nil
}

// importFile groups rows by order id, creates each order with its lines, and
// recomputes the total once all lines are attached.
func importFile(ctx context.Context, file string, skip map[string]struct{}, pool *pgxpool.Pool, products catalog.Repository) (int, error) {
	grouped := make(map[string]*order.Order)
	var ids []string // preserve first-seen order

	err := scanRows(ctx, file, func(row ingestRow) error {
		if _, dup := skip[row.orderID]; dup {
			return nil
		}

		o, ok := grouped[row.orderID]
		if !ok {
			o = &order.Order{
				ID:        row.orderID,
				ClientID:  row.clientID,
				CreatedAt: row.createdAt,
			}
			grouped[row.orderID] = o
			ids = append(ids, row.orderID)
		}

		o.Lines = append(o.Lines, order.OrderLine{
			OrderID:   o.ID,
			ProductID: row.productID,
			Quantity:  row.quantity,
			Position:  len(o.Lines),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, id := range ids {
		o := grouped[id]
		if err := insertOrder(ctx, pool, products, o); err != nil {
			return imported, errors.Wrapf(err, "order %s", id)
		}
		imported++
	}
	return imported, nil
}

// insertOrder writes one order inside a single transaction: the header, its
// lines, and the recomputed total commit together, so a bad row (unknown
// product, constraint violation) leaves nothing behind and a rerun can retry
// the order cleanly. The service here only recomputes totals; lines are
// replayed verbatim from the export, so the availability policy never gates
// anything and Permit is used.
func insertOrder(ctx context.Context, pool *pgxpool.Pool, products catalog.Repository, o *order.Order) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		repo := postgres.NewOrderRepository(pool).WithTx(tx)
		svc := order.NewService(products, repo, order.PermitUnavailable)

		if err := repo.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create")
		}
		for i := range o.Lines {
			o.Lines[i].ID = uuid.New().String()
			if err := repo.AddLine(ctx, &o.Lines[i]); err != nil {
				return errors.Wrapf(err, "line %d", i)
			}
		}
		if _, err := svc.RecomputeTotal(ctx, o); err != nil {
			return errors.Wrap(err, "recompute total")
		}
		return nil
	})
}
