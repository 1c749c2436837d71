// Package report renders the ledger as a printable invoice document: one
// section per order with a header, a line-item table, and a settlement
// footer. Layout is purely cosmetic; totals are read as stored.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
	"github.com/xenking/sales-ledger/internal/domain/order"
)

const separator = "----------------------------------------------------------------------"

// Renderer produces the invoice document from the order ledger and catalog.
type Renderer struct {
	products catalog.Repository
	orders   order.Repository
}

// NewRenderer constructs a Renderer with the required repositories.
func NewRenderer(products catalog.Repository, orders order.Repository) *Renderer {
	return &Renderer{
		products: products,
		orders:   orders,
	}
}

// Render fetches all orders and the catalog concurrently and writes one
// invoice section per order to w, oldest order first.
func (r *Renderer) Render(ctx context.Context, w io.Writer) error {
	var (
		orders   []order.Order
		products []catalog.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = r.orders.List(gctx)
		return errors.Wrap(err, "list orders")
	})
	g.Go(func() error {
		var err error
		products, err = r.products.List(gctx)
		return errors.Wrap(err, "list products")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for i := range orders {
		if err := writeSection(w, &orders[i], byID); err != nil {
			return errors.Wrapf(err, "render order %s", orders[i].ID)
		}
	}
	return nil
}

// writeSection renders a single invoice: header, aligned line table, and the
// total-settlement footer. Line subtotals use the product's current price;
// the footer shows the stored (possibly discounted) order total.
func writeSection(w io.Writer, o *order.Order, products map[string]catalog.Product) error {
	fmt.Fprintf(w, "INVOICE - Transaction #%s\n", o.ID)
	fmt.Fprintf(w, "Client:    %s\n", o.ClientID)
	fmt.Fprintf(w, "Timestamp: %s\n\n", o.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Item\tQty\tUnit Price\tSubtotal")

	for _, line := range o.Lines {
		name := line.ProductID
		price := decimal.Zero
		if p, ok := products[line.ProductID]; ok {
			name = p.Name
			price = p.Price
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		fmt.Fprintf(tw, "%s\t%d\t$%s\t$%s\n",
			name, line.Quantity, price.StringFixed(2), subtotal.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTOTAL SETTLEMENT: $%s\n", o.Total.StringFixed(2))
	_, err := io.WriteString(w, "\n"+separator+"\n\n")
	return err
}

// Title returns the document heading written once at the top of the report.
func Title(generatedBy string) string {
	var b strings.Builder
	b.WriteString("SALES LEDGER - ORDER AUDIT REPORT\n")
	if generatedBy != "" {
		fmt.Fprintf(&b, "Generated by: %s\n", generatedBy)
	}
	b.WriteString(separator + "\n\n")
	return b.String()
}
