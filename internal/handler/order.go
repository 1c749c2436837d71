package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/sales-ledger/internal/domain/order"
)

// LookupOrder returns the most recent order for the client named in the
// `client` query parameter, projected as the client id, the ordered product
// names, and the stored total. A client with no orders gets an explicit
// not-found payload, never a 5xx.
func (h *Handler) LookupOrder(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client query parameter is required")
		return
	}

	o, err := h.orders.LatestByClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no order found for the specified client")
			return
		}
		internalError(w, r, errors.Wrap(err, "latest order"))
		return
	}

	names, err := h.resolveProductNames(r.Context(), o)
	if err != nil {
		internalError(w, r, errors.Wrap(err, "resolve product names"))
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("clientId")
	e.Str(o.ClientID)
	e.FieldStart("productNames")
	e.ArrStart()
	for _, name := range names {
		e.Str(name)
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Raw([]byte(o.Total.String()))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// resolveProductNames maps the order's lines to product names in line order.
// A line whose product has left the catalog keeps its slot with the raw id,
// so the projection never fails on historical data.
func (h *Handler) resolveProductNames(ctx context.Context, o *order.Order) ([]string, error) {
	if len(o.Lines) == 0 {
		return nil, nil
	}

	ids := make([]string, len(o.Lines))
	for i, line := range o.Lines {
		ids[i] = line.ProductID
	}

	fetched, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p.Name
	}

	names := make([]string, len(o.Lines))
	for i, line := range o.Lines {
		if name, ok := byID[line.ProductID]; ok {
			names[i] = name
		} else {
			names[i] = line.ProductID
		}
	}
	return names, nil
}
