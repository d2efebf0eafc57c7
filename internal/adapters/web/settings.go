package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

type inventoryMethodRequest struct {
	InventoryMethod core.InventoryMethod `json:"inventory_method" validate:"required"`
}

type profitMarginRequest struct {
	ProfitMargin decimal.Decimal `json:"profit_margin" jsonschema:"type=string"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateInventoryMethod(w http.ResponseWriter, r *http.Request) {
	var req inventoryMethodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.svc.UpdateInventoryMethod(r.Context(), req.InventoryMethod)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateProfitMargin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req profitMarginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProfitMargin(r.Context(), id, req.ProfitMargin)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
