package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

type SlotService interface {
	Create(ctx context.Context, spec slots.Spec) (model.Slot, error)
	BulkCreate(ctx context.Context, spec slots.BulkSpec) (slots.BulkResult, error)
	Update(ctx context.Context, id string, w slots.Window) (model.Slot, error)
	SetAvailability(ctx context.Context, id string, available bool) (model.Slot, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.Slot, error)
	List(ctx context.Context, from, to time.Time) ([]model.Slot, error)
}

type SlotAdminHandler struct {
	svc    SlotService
	loc    *time.Location
	logger *slog.Logger
}

func NewSlotAdminHandler(svc SlotService, loc *time.Location, logger *slog.Logger) *SlotAdminHandler {
	return &SlotAdminHandler{svc: svc, loc: loc, logger: logger}
}

func (h *SlotAdminHandler) writeErr(w http.ResponseWriter, err error) {
	if writeValidation(w, err) {
		return
	}
	switch {
	case errors.Is(err, slots.ErrNotFound):
		writeError(w, http.StatusNotFound, "slot not found")
	case errors.Is(err, slots.ErrDeletionConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("slot request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to process slot")
	}
}

// List returns the slots dated in [from, to]; both default to today.
func (h *SlotAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	today := model.DateOnly(time.Now().In(h.loc))
	from, to := today, today
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			writeValidation(w, validation.Field("from", "from must be a date as YYYY-MM-DD"))
			return
		}
		from = d
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			writeValidation(w, validation.Field("to", "to must be a date as YYYY-MM-DD"))
			return
		}
		to = d
	}
	if to.Before(from) {
		writeValidation(w, validation.Field("to", "to must not be before from"))
		return
	}
	items, err := h.svc.List(r.Context(), from, to)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": newSlotViews(items)})
}

func (h *SlotAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	slot, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSlotView(slot))
}

func (h *SlotAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec slots.Spec
	if !decodeJSON(w, r, &spec) {
		return
	}
	slot, err := h.svc.Create(r.Context(), spec)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSlotView(slot))
}

// Bulk creates one slot per matching weekday in the range. Re-sending the
// same request reports the existing slots as skipped.
func (h *SlotAdminHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var spec slots.BulkSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	res, err := h.svc.BulkCreate(r.Context(), spec)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created": newSlotViews(res.Created),
		"skipped": res.Skipped,
	})
}

func (h *SlotAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var win slots.Window
	if !decodeJSON(w, r, &win) {
		return
	}
	slot, err := h.svc.Update(r.Context(), r.PathValue("id"), win)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSlotView(slot))
}

func (h *SlotAdminHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsAvailable *bool `json:"is_available"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.IsAvailable == nil {
		writeValidation(w, validation.Field("is_available", "is_available is required"))
		return
	}
	slot, err := h.svc.SetAvailability(r.Context(), r.PathValue("id"), *body.IsAvailable)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSlotView(slot))
}

func (h *SlotAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
