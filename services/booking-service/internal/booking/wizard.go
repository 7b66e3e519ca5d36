package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type SessionStore interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, sess Session) error
}

type OfferLister interface {
	Available(ctx context.Context, date time.Time, intent model.Intent) ([]availability.Offer, error)
}

type Booker interface {
	Book(ctx context.Context, req Request) (model.Appointment, error)
}

// Wizard drives a stored Flow through the booking steps.
type Wizard struct {
	sessions SessionStore
	offers   OfferLister
	booker   Booker
	logger   *slog.Logger
}

func NewWizard(sessions SessionStore, offers OfferLister, booker Booker, logger *slog.Logger) *Wizard {
	return &Wizard{sessions: sessions, offers: offers, booker: booker, logger: logger}
}

func (w *Wizard) Start(ctx context.Context, userID string) (Session, error) {
	sess := Session{ID: newID(), UserID: userID, Flow: Flow{Step: StepInitial}}
	if err := w.sessions.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get returns the session only to its owner.
func (w *Wizard) Get(ctx context.Context, userID, id string) (Session, error) {
	sess, err := w.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != userID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (w *Wizard) update(ctx context.Context, userID, id string, step func(Flow) (Flow, error)) (Session, error) {
	sess, err := w.Get(ctx, userID, id)
	if err != nil {
		return Session{}, err
	}
	next, err := step(sess.Flow)
	if err != nil {
		return sess, err
	}
	sess.Flow = next
	if err := w.sessions.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (w *Wizard) ChooseIntent(ctx context.Context, userID, id string, intent model.Intent) (Session, error) {
	return w.update(ctx, userID, id, func(f Flow) (Flow, error) { return f.ChooseIntent(intent) })
}

// Slots lists the offers for date under the chosen intent and moves the
// flow to SlotsShown.
func (w *Wizard) Slots(ctx context.Context, userID, id string, date time.Time) (Session, []availability.Offer, error) {
	sess, err := w.Get(ctx, userID, id)
	if err != nil {
		return Session{}, nil, err
	}
	next, err := sess.Flow.ShowSlots(date)
	if err != nil {
		return sess, nil, err
	}
	offers, err := w.offers.Available(ctx, date, next.Intent)
	if err != nil {
		return sess, nil, err
	}
	sess.Flow = next
	if err := w.sessions.Save(ctx, sess); err != nil {
		return Session{}, nil, err
	}
	return sess, offers, nil
}

func (w *Wizard) Select(ctx context.Context, userID, id, slotID string) (Session, error) {
	return w.update(ctx, userID, id, func(f Flow) (Flow, error) { return f.SelectSlot(slotID) })
}

func (w *Wizard) Back(ctx context.Context, userID, id string) (Session, error) {
	return w.update(ctx, userID, id, Flow.Back)
}

// Submit books the selected slot. The flow only advances when the booking
// succeeds, so the visitor can pick another slot after ErrSlotUnavailable.
func (w *Wizard) Submit(ctx context.Context, id string, req Request) (Session, model.Appointment, error) {
	sess, err := w.Get(ctx, req.UserID, id)
	if err != nil {
		return Session{}, model.Appointment{}, err
	}
	if !sess.Flow.CanSubmit() {
		return sess, model.Appointment{}, transition(sess.Flow.Step, "submit")
	}
	req.SlotID = sess.Flow.SlotID
	req.Intent = sess.Flow.Intent

	appt, err := w.booker.Book(ctx, req)
	if err != nil {
		return sess, model.Appointment{}, err
	}
	next, err := sess.Flow.Submit(appt.ID)
	if err != nil {
		return sess, appt, err
	}
	sess.Flow = next
	// The appointment is committed; a stale session only costs the visitor a restart.
	if err := w.sessions.Save(ctx, sess); err != nil {
		w.logger.Warn("booking session save failed", "err", err, "session_id", id, "appointment_id", appt.ID)
	}
	return sess, appt, nil
}
