package handlers

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type slotView struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

func newSlotView(s model.Slot) slotView {
	return slotView{
		ID:          s.ID,
		Date:        s.Date.Format(time.DateOnly),
		StartTime:   model.FormatClock(s.StartMinute),
		EndTime:     model.FormatClock(s.EndMinute),
		IsAvailable: s.IsAvailable,
	}
}

func newSlotViews(in []model.Slot) []slotView {
	out := make([]slotView, 0, len(in))
	for _, s := range in {
		out = append(out, newSlotView(s))
	}
	return out
}

type appointmentView struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	SlotID         string `json:"slot_id,omitempty"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	IsSureInvestor bool   `json:"is_sure_investor"`
	Notes          string `json:"notes,omitempty"`
	Venue          string `json:"venue"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newAppointmentView(a model.Appointment) appointmentView {
	return appointmentView{
		ID:             a.ID,
		UserID:         a.UserID,
		SlotID:         a.SlotID,
		StartTime:      formatTime(a.StartTime),
		EndTime:        formatTime(a.EndTime),
		Status:         string(a.Status),
		IsSureInvestor: a.IsSureInvestor,
		Notes:          a.Notes,
		Venue:          a.Venue,
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

func newAppointmentViews(in []model.Appointment) []appointmentView {
	out := make([]appointmentView, 0, len(in))
	for _, a := range in {
		out = append(out, newAppointmentView(a))
	}
	return out
}

type recipientView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	NotifyAppointments bool   `json:"notify_appointments"`
}

func newRecipientView(r model.Recipient) recipientView {
	return recipientView{ID: r.ID, Name: r.Name, Email: r.Email, NotifyAppointments: r.NotifyAppointments}
}
