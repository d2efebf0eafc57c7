package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	logger *logrus.Logger
	router chi.Router
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins   string
	RequestBodyLimit int64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *logrus.Logger, opts Options) http.Handler {
	if opts.RequestBodyLimit <= 0 {
		opts.RequestBodyLimit = 1 << 20
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(Actor)
	r.Use(RequestBodyLimit(opts.RequestBodyLimit))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/schemas/{name}", h.schema)

		// ── Purchases and sales ───────────────────────────────────────────────
		r.Post("/purchases", h.createPurchase)
		r.Get("/purchases/{id}", h.getPurchase)
		r.Put("/purchases/{id}", h.updatePurchase)
		r.Delete("/purchases/{id}", h.deletePurchase)

		r.Post("/sales", h.createSale)
		r.Get("/sales/{id}", h.getSale)
		r.Put("/sales/{id}", h.updateSale)
		r.Delete("/sales/{id}", h.deleteSale)

		// ── Returns ───────────────────────────────────────────────────────────
		r.Post("/purchase-returns", h.createPurchaseReturn)
		r.Get("/purchase-returns/{id}", h.getPurchaseReturn)
		r.Delete("/purchase-returns/{id}", h.deletePurchaseReturn)

		r.Post("/sale-returns", h.createSaleReturn)
		r.Get("/sale-returns/{id}", h.getSaleReturn)
		r.Delete("/sale-returns/{id}", h.deleteSaleReturn)

		// ── Payables and receivables ──────────────────────────────────────────
		for prefix, kind := range map[string]core.ObligationKind{
			"/payables":    core.Payable,
			"/receivables": core.Receivable,
		} {
			r.Route(prefix, func(r chi.Router) {
				r.Get("/", h.listObligations(kind))
				r.Get("/{id}", h.getObligation(kind))
				r.Post("/{id}/payments", h.recordPayment(kind))
				r.Put("/{id}/payments/{paymentID}", h.updatePayment(kind))
				r.Delete("/{id}/payments/{paymentID}", h.deletePayment(kind))
			})
		}

		// ── Settings ──────────────────────────────────────────────────────────
		r.Get("/settings", h.getSettings)
		r.Put("/settings/inventory-method", h.updateInventoryMethod)
		r.Put("/products/{id}/margin", h.updateProfitMargin)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/reconciliation", h.reconcile)
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/stock", h.stockLevels)
		r.Get("/journals/{id}", h.getJournal)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status          string `json:"status"`
		InventoryMethod string `json:"inventory_method,omitempty"`
	}
	setting, err := h.svc.GetSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", InventoryMethod: string(setting.InventoryMethod)})
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": "+chi.URLParam(r, name), string(core.KindValidation), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), string(core.KindValidation), http.StatusBadRequest)
		return false
	}
	return true
}
