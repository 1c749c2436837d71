// Command invoice-report writes the full ledger as a printable invoice
// document, one section per order. With --compress the artifact is gzip
// compressed.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/sales-ledger/internal/report"
	"github.com/xenking/sales-ledger/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		outFile     string
		compress    bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outFile, "out", "order_report.txt", "output file path")
	flag.BoolVar(&compress, "compress", false, "gzip-compress the output (appends .gz)")
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

	if err := run(ctx, databaseURL, outFile, compress); err != nil {
		slog.Error("report generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, outFile string, compress bool) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if compress {
		outFile += ".gz"
	}

	f, err := os.Create(outFile)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	defer f.Close()

	var w io.Writer = f
	var gz *pgzip.Writer
	if compress {
		gz = pgzip.NewWriter(f)
		w = gz
	}

	renderer := report.NewRenderer(
		postgres.NewProductRepository(pool),
		postgres.NewOrderRepository(pool),
	)

	if _, err := io.WriteString(w, report.Title("invoice-report")); err != nil {
		return errors.Wrap(err, "write title")
	}
	if err := renderer.Render(ctx, w); err != nil {
		return errors.Wrap(err, "render report")
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "close gzip writer")
		}
	}

	slog.Info("report generated", slog.String("path", outFile))
	return nil
}
