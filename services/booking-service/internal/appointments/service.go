package appointments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrConflict means the interval was taken while the appointment was cancelled.
	ErrConflict = errors.New("appointment time is no longer free")
)

type Store interface {
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	FindByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	ListAll(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	Delete(ctx context.Context, id string) (model.Appointment, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, date time.Time)
}

type Service struct {
	store  Store
	cache  Invalidator
	loc    *time.Location
	logger *slog.Logger
}

func NewService(store Store, cache Invalidator, loc *time.Location, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, loc: loc, logger: logger}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrOverlap):
		return ErrConflict
	default:
		return err
	}
}

// invalidate drops cached availability for the local day the appointment starts on.
func (s *Service) invalidate(ctx context.Context, appt model.Appointment) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, model.DateOnly(appt.StartTime.In(s.loc)))
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.FindByID(ctx, id)
	return appt, mapStoreErr(err)
}

// ListMine returns the appointments booked by userID, latest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.store.FindByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error) {
	return s.store.ListAll(ctx, f)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	appt, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return model.Appointment{}, mapStoreErr(err)
	}
	s.invalidate(ctx, appt)
	s.logger.Info("appointment status changed", "appointment_id", appt.ID, "status", appt.Status)
	return appt, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	appt, err := s.store.Delete(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	s.invalidate(ctx, appt)
	s.logger.Info("appointment deleted", "appointment_id", appt.ID)
	return nil
}
