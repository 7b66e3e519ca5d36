package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// EventAppointmentBooked is published once per committed booking. The Kafka
// topic name equals the event type.
const EventAppointmentBooked = "booking.appointment.booked.v1"

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentBooked is the payload of EventAppointmentBooked.
type AppointmentBooked struct {
	AppointmentID  string `json:"appointment_id"`
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

func NewAppointmentBooked(appt model.Appointment) (Event, error) {
	payload := AppointmentBooked{
		AppointmentID:  appt.ID,
		UserID:         appt.UserID,
		SlotID:         appt.SlotID,
		StartTime:      appt.StartTime.Format(time.RFC3339),
		EndTime:        appt.EndTime.Format(time.RFC3339),
		Status:         string(appt.Status),
		IsSureInvestor: appt.IsSureInvestor,
		Notes:          appt.Notes,
		Venue:          appt.Venue,
	}
	if !appt.CreatedAt.IsZero() {
		payload.CreatedAt = appt.CreatedAt.Format(time.RFC3339)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventAppointmentBooked,
		Payload:       raw,
	}, nil
}

// Appointment rebuilds the booked appointment from the event payload.
func (p AppointmentBooked) Appointment() (model.Appointment, error) {
	start, err := time.Parse(time.RFC3339, p.StartTime)
	if err != nil {
		return model.Appointment{}, err
	}
	end, err := time.Parse(time.RFC3339, p.EndTime)
	if err != nil {
		return model.Appointment{}, err
	}
	status, err := model.ParseStatus(p.Status)
	if err != nil {
		return model.Appointment{}, err
	}
	appt := model.Appointment{
		ID:             p.AppointmentID,
		UserID:         p.UserID,
		SlotID:         p.SlotID,
		StartTime:      start,
		EndTime:        end,
		Status:         status,
		IsSureInvestor: p.IsSureInvestor,
		Notes:          p.Notes,
		Venue:          p.Venue,
	}
	if p.CreatedAt != "" {
		if created, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			appt.CreatedAt = created
		}
	}
	return appt, nil
}
