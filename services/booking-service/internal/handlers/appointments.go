package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

type AppointmentService interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	ListMine(ctx context.Context, userID string) ([]model.Appointment, error)
	List(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
}

type AppointmentHandler struct {
	svc    AppointmentService
	logger *slog.Logger
}

func NewAppointmentHandler(svc AppointmentService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

func (h *AppointmentHandler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, appointments.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("appointment request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to process appointment")
	}
}

func (h *AppointmentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListMine(r.Context(), id.UserID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": newAppointmentViews(items)})
}

// Get returns one appointment to staff or to the user who booked it.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if !id.IsStaff() && appt.UserID != id.UserID {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentView(appt))
}

func parseListFilter(r *http.Request) (storage.ListFilter, error) {
	q := r.URL.Query()
	var f storage.ListFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			return f, validation.Field("status", "status must be one of: pending confirmed cancelled completed")
		}
		f.Status = status
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, validation.Field("from", "from must be an RFC3339 timestamp")
		}
		f.From = from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, validation.Field("to", "to must be an RFC3339 timestamp")
		}
		f.To = to
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return f, validation.Field("limit", "limit must be a positive number")
		}
		f.Limit = limit
	}
	return f, nil
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		writeValidation(w, err)
		return
	}
	items, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": newAppointmentViews(items)})
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	status, err := model.ParseStatus(body.Status)
	if err != nil {
		writeValidation(w, validation.Field("status", "status must be one of: pending confirmed cancelled completed"))
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentView(appt))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
