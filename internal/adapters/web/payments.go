package web

import (
	"net/http"

	"accounting-engine/internal/core"
)

// Payment routes are built per obligation kind so payables and receivables share handlers.

func (h *Handler) listObligations(kind core.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.svc.ListObligations(r.Context(), kind)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if list == nil {
			list = []core.Obligation{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (h *Handler) getObligation(kind core.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		o, err := h.svc.GetObligation(r.Context(), kind, id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *Handler) recordPayment(kind core.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in core.PaymentInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := h.svc.RecordPayment(r.Context(), kind, id, in)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// paymentPath resolves {id} and {paymentID}, requiring the payment to belong to the obligation.
func (h *Handler) paymentPath(w http.ResponseWriter, r *http.Request, kind core.ObligationKind) (int, bool) {
	obligationID, ok := pathID(w, r, "id")
	if !ok {
		return 0, false
	}
	paymentID, ok := pathID(w, r, "paymentID")
	if !ok {
		return 0, false
	}
	o, err := h.svc.GetObligation(r.Context(), kind, obligationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return 0, false
	}
	for _, p := range o.Payments {
		if p.ID == paymentID {
			return paymentID, true
		}
	}
	h.writeServiceError(w, r, core.NotFoundf("payment %d not found on %s %d", paymentID, kind, obligationID))
	return 0, false
}

func (h *Handler) updatePayment(kind core.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, ok := h.paymentPath(w, r, kind)
		if !ok {
			return
		}
		var in core.PaymentInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := h.svc.UpdatePayment(r.Context(), kind, paymentID, in)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) deletePayment(kind core.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, ok := h.paymentPath(w, r, kind)
		if !ok {
			return
		}
		if err := h.svc.DeletePayment(r.Context(), kind, paymentID); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
