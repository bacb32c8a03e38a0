package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-shop-api/internal/application/confirmation"
	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/transport/http/middleware"
)

// ConfirmHandler serves the trigger and the callback for one purpose.
type ConfirmHandler struct {
	svc     confirmation.Service
	purpose domain.Purpose
}

func NewConfirmHandler(svc confirmation.Service, purpose domain.Purpose) *ConfirmHandler {
	return &ConfirmHandler{svc: svc, purpose: purpose}
}

// Confirm issues a key when none is supplied and redeems it otherwise.
// The key may come as ?key=K or as the {key} path segment.
func (h *ConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	key, supplied := q.Get("key"), q.Has("key")
	if !supplied {
		key = chi.URLParam(r, "key")
		supplied = key != ""
	}

	if !supplied {
		if err := h.svc.Issue(r.Context(), h.purpose, claims.UserID); err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: h.sentMessage()})
		return
	}

	if err := h.svc.Verify(r.Context(), h.purpose, claims.UserID, key); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{string(h.purpose): "confirmed"})
}

// Resend issues a key on behalf of the user named in the {id} path segment.
func (h *ConfirmHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Issue(r.Context(), h.purpose, chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: h.sentMessage()})
}

func (h *ConfirmHandler) sentMessage() string {
	if h.purpose == domain.PurposePhone {
		return "confirmation sms sent"
	}
	return "confirmation email sent"
}
