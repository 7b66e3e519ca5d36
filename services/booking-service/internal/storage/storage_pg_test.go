package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/migrations"
)

// openTestPool connects to SLOTBOOK_TEST_DATABASE_URL and applies the schema.
// Each test gets its own far-future date so reruns and parallel packages
// do not collide; rows on that date are removed afterwards.
func openTestPool(t *testing.T) (*db.Pool, time.Time) {
	t.Helper()
	dsn := os.Getenv("SLOTBOOK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SLOTBOOK_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, dsn, db.Options{MaxConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(ctx, pool, migrations.FS, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}

	date := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(time.Now().UnixNano()%36500))
	cleanup := func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM appointments WHERE start_time >= $1 AND start_time < $2`, date, date.AddDate(0, 0, 1))
		_, _ = pool.Exec(ctx, `DELETE FROM slots WHERE slot_date = $1`, date)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		pool.Close()
	})
	return pool, date
}

func at(date time.Time, hour, minute int) time.Time {
	return date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestPostgresExclusiveBookingAndSlotContainment(t *testing.T) {
	pool, date := openTestPool(t)
	ctx := context.Background()
	slots := NewSlotRepository(pool)
	appts := NewAppointmentRepository(pool, outbox.NewRepository())

	slot := model.Slot{Date: date, StartMinute: 9 * 60, EndMinute: 10 * 60, IsAvailable: true}
	if err := slots.Create(ctx, &slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	inner := model.Appointment{
		UserID: "user-1", SlotID: slot.ID, Venue: "HQ", Status: model.StatusPending,
		StartTime: at(date, 9, 15), EndTime: at(date, 9, 45),
	}
	if err := appts.CreateExclusive(ctx, &inner); err != nil {
		t.Fatalf("create inner appointment: %v", err)
	}

	overlapping := model.Appointment{
		UserID: "user-2", Venue: "HQ", Status: model.StatusPending,
		StartTime: at(date, 9, 30), EndTime: at(date, 10, 30),
	}
	if err := appts.CreateExclusive(ctx, &overlapping); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	touching := model.Appointment{
		UserID: "user-2", Venue: "HQ", Status: model.StatusPending,
		StartTime: at(date, 9, 45), EndTime: at(date, 10, 0),
	}
	if err := appts.CreateExclusive(ctx, &touching); err != nil {
		t.Fatalf("touching interval must be bookable: %v", err)
	}

	if _, err := slots.Delete(ctx, slot.ID, time.UTC); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}

	// Cancelled appointments release the interval but still pin the slot.
	if _, err := appts.UpdateStatus(ctx, inner.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := appts.UpdateStatus(ctx, touching.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	overlapping.ID = ""
	if err := appts.CreateExclusive(ctx, &overlapping); err != nil {
		t.Fatalf("cancelled appointments must not block: %v", err)
	}
	if _, err := slots.Delete(ctx, slot.ID, time.UTC); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("cancelled appointment inside the slot must still block deletion, got %v", err)
	}
	if _, err := appts.UpdateStatus(ctx, inner.ID, model.StatusConfirmed); !errors.Is(err, ErrOverlap) {
		t.Fatalf("re-activating into a taken interval: expected ErrOverlap, got %v", err)
	}

	for _, id := range []string{inner.ID, touching.ID} {
		if _, err := appts.Delete(ctx, id); err != nil {
			t.Fatalf("delete appointment: %v", err)
		}
	}
	// 09:30-10:30 only overlaps the slot, it does not lie within it.
	if _, err := slots.Delete(ctx, slot.ID, time.UTC); err != nil {
		t.Fatalf("delete slot: %v", err)
	}
	if _, err := slots.FindByID(ctx, slot.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected slot gone, got %v", err)
	}
}

func TestPostgresCreateMissingSkipsExisting(t *testing.T) {
	pool, date := openTestPool(t)
	ctx := context.Background()
	slots := NewSlotRepository(pool)

	batch := []model.Slot{
		{Date: date, StartMinute: 9 * 60, EndMinute: 10 * 60, IsAvailable: true},
		{Date: date, StartMinute: 18 * 60, EndMinute: 19 * 60, IsAvailable: true},
	}
	created, err := slots.CreateMissing(ctx, batch)
	if err != nil {
		t.Fatalf("first bulk: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}

	created, err = slots.CreateMissing(ctx, batch)
	if err != nil {
		t.Fatalf("second bulk: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("repeated bulk must create nothing, got %+v", created)
	}

	all, err := slots.ListRange(ctx, date, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 slots on %s, got %d", date.Format(time.DateOnly), len(all))
	}
}
