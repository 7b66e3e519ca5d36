package booking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

func TestFlowHappyPath(t *testing.T) {
	date := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	f := Flow{}

	f, err := f.ChooseIntent(model.IntentOrientation)
	if err != nil || f.Step != StepIntentChosen {
		t.Fatalf("ChooseIntent: %v %+v", err, f)
	}
	if f, err = f.ShowSlots(date); err != nil || f.Date != "2030-06-10" {
		t.Fatalf("ShowSlots: %v %+v", err, f)
	}
	if f, err = f.SelectSlot("slot-1"); err != nil || !f.CanSubmit() {
		t.Fatalf("SelectSlot: %v %+v", err, f)
	}
	if f, err = f.Submit("appt-1"); err != nil || f.Step != StepSubmitted || f.AppointmentID != "appt-1" {
		t.Fatalf("Submit: %v %+v", err, f)
	}
	if _, err := f.ChooseIntent(model.IntentReadyToInvest); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("submitted flow must be final, got %v", err)
	}
}

func TestFlowRejectsSkippingSteps(t *testing.T) {
	f := Flow{}
	if _, err := f.ShowSlots(time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.SelectSlot("slot-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.Submit("appt-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.ChooseIntent(model.IntentUndecided); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("undecided intent must be rejected, got %v", err)
	}
}

func TestFlowRechoosingIntentResetsSelection(t *testing.T) {
	f, _ := Flow{}.ChooseIntent(model.IntentReadyToInvest)
	f, _ = f.ShowSlots(time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC))
	f, _ = f.SelectSlot("slot-1")

	f, err := f.ChooseIntent(model.IntentOrientation)
	if err != nil {
		t.Fatalf("ChooseIntent: %v", err)
	}
	if f.Step != StepIntentChosen || f.SlotID != "" || f.Date != "" || f.Intent != model.IntentOrientation {
		t.Fatalf("expected reset flow, got %+v", f)
	}
}

func TestFlowJSON(t *testing.T) {
	f := Flow{Step: StepSlotSelected, Intent: model.IntentReadyToInvest, SlotID: "slot-1"}
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Flow
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if back != f {
		t.Fatalf("got %+v want %+v", back, f)
	}
}

type stubOffers struct{ offers []availability.Offer }

func (s stubOffers) Available(_ context.Context, _ time.Time, intent model.Intent) ([]availability.Offer, error) {
	if intent == model.IntentUndecided {
		return nil, availability.ErrIntentUndecided
	}
	return s.offers, nil
}

func TestWizardWithRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fx := newFixture()
	store := NewRedisSessionStore(rdb, time.Minute, "test:session")
	offers := stubOffers{offers: []availability.Offer{{SlotID: morningSlotID, Label: "9:00 AM - 10:00 AM"}}}
	wiz := NewWizard(store, offers, fx.svc, testLogger())
	ctx := context.Background()

	sess, err := wiz.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := wiz.Get(ctx, "someone-else", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign session must be hidden, got %v", err)
	}
	if _, err := wiz.Select(ctx, "user-1", sess.ID, morningSlotID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := wiz.ChooseIntent(ctx, "user-1", sess.ID, model.IntentReadyToInvest); err != nil {
		t.Fatalf("ChooseIntent: %v", err)
	}
	_, listed, err := wiz.Slots(ctx, "user-1", sess.ID, time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC))
	if err != nil || len(listed) != 1 {
		t.Fatalf("Slots: %v %+v", err, listed)
	}
	if _, err := wiz.Select(ctx, "user-1", sess.ID, morningSlotID); err != nil {
		t.Fatalf("Select: %v", err)
	}

	sess, appt, err := wiz.Submit(ctx, sess.ID, Request{UserID: "user-1", Venue: "Head office"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sess.Flow.Step != StepSubmitted || sess.Flow.AppointmentID != appt.ID {
		t.Fatalf("unexpected session: %+v", sess)
	}

	stored, err := store.Get(ctx, sess.ID)
	if err != nil || stored.Flow.Step != StepSubmitted {
		t.Fatalf("stored session: %v %+v", err, stored)
	}
	if ttl := mr.TTL("test:session:" + sess.ID); ttl <= 0 {
		t.Fatalf("expected session TTL, got %s", ttl)
	}
}

func TestWizardSubmitFailureKeepsSelection(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fx := newFixture()
	fx.appts.appts = append(fx.appts.appts, model.Appointment{
		StartTime: time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 6, 10, 10, 0, 0, 0, time.UTC),
		Status:    model.StatusPending,
	})
	wiz := NewWizard(NewRedisSessionStore(rdb, time.Minute, ""), stubOffers{}, fx.svc, testLogger())
	ctx := context.Background()

	sess, _ := wiz.Start(ctx, "user-1")
	_, _ = wiz.ChooseIntent(ctx, "user-1", sess.ID, model.IntentReadyToInvest)
	_, _, _ = wiz.Slots(ctx, "user-1", sess.ID, time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC))
	_, _ = wiz.Select(ctx, "user-1", sess.ID, morningSlotID)

	if _, _, err := wiz.Submit(ctx, sess.ID, Request{UserID: "user-1", Venue: "Head office"}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	back, err := wiz.Back(ctx, "user-1", sess.ID)
	if err != nil || back.Flow.Step != StepSlotsShown {
		t.Fatalf("Back: %v %+v", err, back)
	}
}

func TestMemorySessionStoreExpires(t *testing.T) {
	now := time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if err := store.Save(ctx, Session{ID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if sess, err := store.Get(ctx, "s1"); err != nil || sess.UserID != "u1" {
		t.Fatalf("Get: %v %+v", err, sess)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
