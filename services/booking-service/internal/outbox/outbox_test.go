package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func TestAppointmentBookedRoundTrip(t *testing.T) {
	appt := model.Appointment{
		ID:             "appt-1",
		UserID:         "user-1",
		SlotID:         "slot-1",
		StartTime:      time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2030, 1, 10, 10, 0, 0, 0, time.UTC),
		Status:         model.StatusPending,
		IsSureInvestor: true,
		Venue:          "Head office",
	}
	evt, err := NewAppointmentBooked(appt)
	if err != nil {
		t.Fatalf("NewAppointmentBooked: %v", err)
	}
	if evt.EventType != EventAppointmentBooked || evt.AggregateID != "appt-1" {
		t.Fatalf("unexpected envelope: %+v", evt)
	}

	var payload AppointmentBooked
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := payload.Appointment()
	if err != nil {
		t.Fatalf("Appointment: %v", err)
	}
	if got.ID != appt.ID || !got.StartTime.Equal(appt.StartTime) || got.Status != model.StatusPending || !got.IsSureInvestor {
		t.Fatalf("appointment mismatch: %+v", got)
	}
}

func TestMessageCarriesEventMeta(t *testing.T) {
	msg := Message(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   EventAppointmentBooked,
		Payload:     []byte(`{}`),
	})
	if msg.Topic != EventAppointmentBooked || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != EventAppointmentBooked {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}
