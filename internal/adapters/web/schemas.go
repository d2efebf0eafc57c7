package web

import (
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"

	"accounting-engine/internal/core"
)

// requestSchemas lists every request body the API accepts, by URL name.
var requestSchemas = map[string]any{
	"purchase":         core.PurchaseInput{},
	"sale":             core.SaleInput{},
	"purchase-return":  core.PurchaseReturnInput{},
	"sale-return":      core.SaleReturnInput{},
	"payment":          core.PaymentInput{},
	"inventory-method": inventoryMethodRequest{},
	"profit-margin":    profitMarginRequest{},
}

// schema serves the JSON Schema of a request body so clients can validate before posting.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))
	v, ok := requestSchemas[name]
	if !ok {
		names := slices.Sorted(maps.Keys(requestSchemas))
		writeError(w, r, "unknown schema "+name+"; known: "+strings.Join(names, ", "),
			string(core.KindNotFound), http.StatusNotFound)
		return
	}
	reflector := &jsonschema.Reflector{DoNotReference: true}
	writeJSON(w, http.StatusOK, reflector.Reflect(v))
}
