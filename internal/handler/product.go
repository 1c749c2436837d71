package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/sales-ledger/internal/domain/catalog"
)

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(w, r, errors.Wrap(err, "list products"))
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Raw([]byte(p.Price.String()))
	e.FieldStart("available")
	e.Bool(p.Available)
	e.ObjEnd()
}
