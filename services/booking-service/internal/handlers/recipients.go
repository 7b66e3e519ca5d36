package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

type RecipientStore interface {
	List(ctx context.Context) ([]model.Recipient, error)
	Upsert(ctx context.Context, rc *model.Recipient) error
	Delete(ctx context.Context, id string) error
}

type RecipientHandler struct {
	store     RecipientStore
	validator *validation.Validator
	logger    *slog.Logger
}

func NewRecipientHandler(store RecipientStore, v *validation.Validator, logger *slog.Logger) *RecipientHandler {
	return &RecipientHandler{store: store, validator: v, logger: logger}
}

type recipientRequest struct {
	Name               string `json:"name" validate:"max=255"`
	Email              string `json:"email" validate:"required,email,max=255"`
	NotifyAppointments *bool  `json:"notify_appointments"`
}

func (h *RecipientHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list recipients failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list recipients")
		return
	}
	out := make([]recipientView, 0, len(items))
	for _, rc := range items {
		out = append(out, newRecipientView(rc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipients": out})
}

// Put adds a receiver or updates the one with the same email.
func (h *RecipientHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validator.Struct(req); err != nil {
		if !writeValidation(w, err) {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	rc := model.Recipient{Name: req.Name, Email: req.Email, NotifyAppointments: true}
	if req.NotifyAppointments != nil {
		rc.NotifyAppointments = *req.NotifyAppointments
	}
	if err := h.store.Upsert(r.Context(), &rc); err != nil {
		h.logger.Error("upsert recipient failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save recipient")
		return
	}
	writeJSON(w, http.StatusOK, newRecipientView(rc))
}

func (h *RecipientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "recipient not found")
	case err != nil:
		h.logger.Error("delete recipient failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recipient")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
