package web

import (
	"net/http"

	"accounting-engine/internal/core"
)

func (h *Handler) createPurchaseReturn(w http.ResponseWriter, r *http.Request) {
	var in core.PurchaseReturnInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ret, err := h.svc.CreatePurchaseReturn(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (h *Handler) getPurchaseReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ret, err := h.svc.GetPurchaseReturn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (h *Handler) deletePurchaseReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePurchaseReturn(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createSaleReturn(w http.ResponseWriter, r *http.Request) {
	var in core.SaleReturnInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ret, err := h.svc.CreateSaleReturn(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (h *Handler) getSaleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ret, err := h.svc.GetSaleReturn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (h *Handler) deleteSaleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSaleReturn(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
