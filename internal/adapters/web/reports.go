package web

import (
	"net/http"

	"accounting-engine/internal/core"
)

// reconcile returns 200 with the report when the books agree and 409 when they do not.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
		h.logger.WithField("mismatches", len(report.Mismatches)).Warn("reconciliation found mismatches")
	}
	writeJSON(w, status, report)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.svc.GetTrialBalance(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if levels == nil {
		levels = []core.StockLevel{}
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	j, err := h.svc.GetJournal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
