package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var newID = uuid.NewString

type SlotFinder interface {
	FindByID(ctx context.Context, id string) (model.Slot, error)
}

// AppointmentWriter inserts an appointment only if nothing overlaps it.
type AppointmentWriter interface {
	CreateExclusive(ctx context.Context, appt *model.Appointment, events ...outbox.Event) error
}

// Availability is the calendar the booking is checked against.
type Availability interface {
	Location() *time.Location
	Today() time.Time
	Invalidate(ctx context.Context, date time.Time)
}

// Notifier is told about committed bookings when events are not shipped
// through Kafka.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt model.Appointment) error
}

type ContactStore interface {
	UpsertContact(ctx context.Context, c model.Contact) error
}

type Request struct {
	UserID string       `json:"user_id" validate:"required,max=128"`
	SlotID string       `json:"slot_id" validate:"required,uuid"`
	Notes  string       `json:"notes" validate:"max=2000"`
	Venue  string       `json:"venue" validate:"required,max=255"`
	Intent model.Intent `json:"intent" validate:"intent_decided"`

	// Contact details of the booking user, if known.
	Name  string `json:"-"`
	Email string `json:"-"`
}

func (r *Request) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.Notes = strings.TrimSpace(r.Notes)
	r.Venue = strings.TrimSpace(r.Venue)
}

type Service struct {
	slots         SlotFinder
	appointments  AppointmentWriter
	calendar      Availability
	validator     *validation.Validator
	logger        *slog.Logger
	notifier      Notifier
	contacts      ContactStore
	notifyTimeout time.Duration
}

type Option func(*Service)

// WithNotifier makes Book call n after commit. Failures are logged only.
func WithNotifier(n Notifier, timeout time.Duration) Option {
	return func(s *Service) {
		s.notifier = n
		if timeout > 0 {
			s.notifyTimeout = timeout
		}
	}
}

func WithContacts(c ContactStore) Option {
	return func(s *Service) { s.contacts = c }
}

func NewService(slots SlotFinder, appointments AppointmentWriter, calendar Availability, v *validation.Validator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		slots:         slots,
		appointments:  appointments,
		calendar:      calendar,
		validator:     v,
		logger:        logger,
		notifyTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book validates req, re-checks the slot against live data and stores a
// pending appointment for it. It returns validation.ValidationErrors,
// ErrSlotUnavailable or *PersistenceError on failure.
func (s *Service) Book(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.book")
	defer span.End()

	appt, err := s.book(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("appointment.id", appt.ID),
		attribute.String("slot.id", appt.SlotID),
	)
	return appt, nil
}

func (s *Service) book(ctx context.Context, req Request) (model.Appointment, error) {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return model.Appointment{}, err
	}

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, validation.Field("slot_id", "slot_id does not match an existing slot")
	}
	if err != nil {
		return model.Appointment{}, &PersistenceError{Op: "load slot", Err: err}
	}
	if err := availability.Bookable(slot, req.Intent, s.calendar.Today()); err != nil {
		return model.Appointment{}, unavailable(err)
	}

	loc := s.calendar.Location()
	appt := model.Appointment{
		UserID:         req.UserID,
		SlotID:         slot.ID,
		StartTime:      slot.Start(loc),
		EndTime:        slot.End(loc),
		Status:         model.StatusPending,
		IsSureInvestor: req.Intent.IsSureInvestor(),
		Notes:          req.Notes,
		Venue:          req.Venue,
	}

	if s.contacts != nil && (req.Name != "" || req.Email != "") {
		if err := s.contacts.UpsertContact(ctx, model.Contact{UserID: req.UserID, Name: req.Name, Email: req.Email}); err != nil {
			s.logger.Warn("contact upsert failed", "err", err, "user_id", req.UserID)
		}
	}

	// The appointment id has to exist before the event payload is built.
	appt.ID = newID()
	evt, err := outbox.NewAppointmentBooked(appt)
	if err != nil {
		return model.Appointment{}, &PersistenceError{Op: "build event", Err: err}
	}
	if err := s.appointments.CreateExclusive(ctx, &appt, evt); err != nil {
		if errors.Is(err, storage.ErrOverlap) {
			return model.Appointment{}, unavailable(availability.ErrOverlap)
		}
		return model.Appointment{}, &PersistenceError{Op: "create appointment", Err: err}
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"slot_id", appt.SlotID,
		"user_id", appt.UserID,
		"start_time", appt.StartTime.Format(time.RFC3339),
	)
	s.calendar.Invalidate(ctx, slot.Date)
	s.notify(ctx, appt)
	return appt, nil
}

func (s *Service) notify(ctx context.Context, appt model.Appointment) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.AppointmentBooked(notifyCtx, appt); err != nil {
		s.logger.Error("booking notification failed", "err", err, "appointment_id", appt.ID)
	}
}
