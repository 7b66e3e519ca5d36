package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

type OfferLister interface {
	Available(ctx context.Context, date time.Time, intent model.Intent) ([]availability.Offer, error)
}

type Booker interface {
	Book(ctx context.Context, req booking.Request) (model.Appointment, error)
}

// Wizard is the session-backed booking flow.
type Wizard interface {
	Start(ctx context.Context, userID string) (booking.Session, error)
	Get(ctx context.Context, userID, id string) (booking.Session, error)
	ChooseIntent(ctx context.Context, userID, id string, intent model.Intent) (booking.Session, error)
	Slots(ctx context.Context, userID, id string, date time.Time) (booking.Session, []availability.Offer, error)
	Select(ctx context.Context, userID, id, slotID string) (booking.Session, error)
	Back(ctx context.Context, userID, id string) (booking.Session, error)
	Submit(ctx context.Context, id string, req booking.Request) (booking.Session, model.Appointment, error)
}

type BookingHandler struct {
	offers OfferLister
	booker Booker
	wizard Wizard
	logger *slog.Logger
}

func NewBookingHandler(offers OfferLister, booker Booker, wizard Wizard, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{offers: offers, booker: booker, wizard: wizard, logger: logger}
}

type offersResponse struct {
	Date   string               `json:"date"`
	Intent model.Intent         `json:"intent"`
	Slots  []availability.Offer `json:"slots"`
}

func parseDateParam(raw string) (time.Time, error) {
	date, err := model.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, validation.Field("date", "date must be a date as YYYY-MM-DD")
	}
	return date, nil
}

// Slots lists the bookable offers for ?date= under ?intent=.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeValidation(w, err)
		return
	}
	intent, err := model.ParseIntent(r.URL.Query().Get("intent"))
	if err != nil || intent == model.IntentUndecided {
		writeValidation(w, validation.Field("intent", "intent must be orientation or ready_to_invest"))
		return
	}

	offers, err := h.offers.Available(r.Context(), date, intent)
	if err != nil {
		h.logger.Error("availability failed", "err", err, "date", date.Format(time.DateOnly))
		writeError(w, http.StatusInternalServerError, "failed to load slots")
		return
	}
	writeJSON(w, http.StatusOK, offersResponse{Date: date.Format(time.DateOnly), Intent: intent, Slots: offers})
}

type bookRequest struct {
	SlotID string       `json:"slot_id"`
	Notes  string       `json:"notes"`
	Venue  string       `json:"venue"`
	Intent model.Intent `json:"intent"`
}

func requestFor(id httpx.Identity) booking.Request {
	return booking.Request{UserID: id.UserID, Name: id.Name, Email: id.Email}
}

// Book creates a pending appointment for the caller.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body bookRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req := requestFor(id)
	req.SlotID = body.SlotID
	req.Notes = body.Notes
	req.Venue = body.Venue
	req.Intent = body.Intent

	appt, err := h.booker.Book(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAppointmentView(appt))
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, err error) {
	if writeValidation(w, err) {
		return
	}
	var persistErr *booking.PersistenceError
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "booking session not found")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &persistErr):
		h.logger.Error("booking persistence failed", "err", err, "op", persistErr.Op)
		writeError(w, http.StatusInternalServerError, "failed to save appointment")
	default:
		h.logger.Error("booking failed", "err", err)
		writeError(w, http.StatusInternalServerError, "booking failed")
	}
}

type sessionResponse struct {
	Session     booking.Session      `json:"session"`
	Slots       []availability.Offer `json:"slots,omitempty"`
	Appointment *appointmentView     `json:"appointment,omitempty"`
}

func (h *BookingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.Start(r.Context(), id.UserID)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess})
}

func (h *BookingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.Get(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

func (h *BookingHandler) ChooseIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		Intent model.Intent `json:"intent"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Intent == model.IntentUndecided {
		writeValidation(w, validation.Field("intent", "intent must be orientation or ready_to_invest"))
		return
	}
	sess, err := h.wizard.ChooseIntent(r.Context(), id.UserID, r.PathValue("id"), body.Intent)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

func (h *BookingHandler) SessionSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeValidation(w, err)
		return
	}
	sess, offers, err := h.wizard.Slots(r.Context(), id.UserID, r.PathValue("id"), date)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	if offers == nil {
		offers = []availability.Offer{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Slots: offers})
}

func (h *BookingHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		SlotID string `json:"slot_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	sess, err := h.wizard.Select(r.Context(), id.UserID, r.PathValue("id"), strings.TrimSpace(body.SlotID))
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	sess, err := h.wizard.Back(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

// SubmitSession books the slot selected in the session. Venue and notes
// are collected on this last step.
func (h *BookingHandler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
		Venue string `json:"venue"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	req := requestFor(id)
	req.Notes = body.Notes
	req.Venue = body.Venue

	sess, appt, err := h.wizard.Submit(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	view := newAppointmentView(appt)
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess, Appointment: &view})
}
