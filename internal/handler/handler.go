// Package handler exposes the read-only query projection of the ledger over
// HTTP. Responses are encoded with go-faster/jx; all write paths stay in the
// CLI tools, so no endpoint here mutates state.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
	"github.com/xenking/sales-ledger/internal/domain/order"
)

// Handler serves the query projection endpoints, delegating lookups to the
// injected repositories.
type Handler struct {
	products catalog.Repository
	orders   order.Repository
}

// New constructs a Handler with the required repositories.
func New(products catalog.Repository, orders order.Repository) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
	}
}

// Register attaches the projection routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/orders/lookup", h.LookupOrder)
}

// writeJSON sends the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError sends an {"error": ...} payload. A not-found lookup is a valid
// empty result in the ledger's vocabulary, so it goes through here as a
// payload rather than a bare status.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// internalError logs the error and responds with a generic 500 payload.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
