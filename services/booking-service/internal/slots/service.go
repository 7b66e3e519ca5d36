package slots

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

var (
	ErrNotFound = errors.New("slot not found")
	// ErrDeletionConflict means an appointment lies within the slot.
	ErrDeletionConflict = errors.New("slot has an appointment within its time range")
)

type Store interface {
	FindByID(ctx context.Context, id string) (model.Slot, error)
	ListRange(ctx context.Context, from, to time.Time) ([]model.Slot, error)
	Create(ctx context.Context, s *model.Slot) error
	CreateMissing(ctx context.Context, slots []model.Slot) ([]model.Slot, error)
	UpdateTimes(ctx context.Context, id string, startMinute, endMinute int) (model.Slot, error)
	SetAvailability(ctx context.Context, id string, available bool) (model.Slot, error)
	Delete(ctx context.Context, id string, loc *time.Location) (model.Slot, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, date time.Time)
}

type Service struct {
	store     Store
	cache     Invalidator
	loc       *time.Location
	validator *validation.Validator
	logger    *slog.Logger
}

func NewService(store Store, cache Invalidator, loc *time.Location, v *validation.Validator, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, loc: loc, validator: v, logger: logger}
}

// Spec is one slot as entered by staff.
type Spec struct {
	Date        string `json:"date" validate:"required,date"`
	StartTime   string `json:"start_time" validate:"required,clock"`
	EndTime     string `json:"end_time" validate:"required,clock"`
	IsAvailable *bool  `json:"is_available"`
}

// Window is a replacement time-of-day range.
type Window struct {
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

func parseWindow(startRaw, endRaw string) (int, int, error) {
	start, _ := model.ParseClock(startRaw)
	end, _ := model.ParseClock(endRaw)
	if !model.ValidWindow(start, end) {
		return 0, 0, validation.Field("end_time", "end_time must be after start_time")
	}
	return start, end, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrSlotOccupied):
		return ErrDeletionConflict
	default:
		return err
	}
}

func (s *Service) invalidate(ctx context.Context, dates ...time.Time) {
	if s.cache == nil {
		return
	}
	seen := map[time.Time]bool{}
	for _, d := range dates {
		d = model.DateOnly(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		s.cache.Invalidate(ctx, d)
	}
}

func (s *Service) Create(ctx context.Context, spec Spec) (model.Slot, error) {
	if err := s.validator.Struct(spec); err != nil {
		return model.Slot{}, err
	}
	start, end, err := parseWindow(spec.StartTime, spec.EndTime)
	if err != nil {
		return model.Slot{}, err
	}
	date, _ := model.ParseDate(spec.Date)
	slot := model.Slot{Date: date, StartMinute: start, EndMinute: end, IsAvailable: true}
	if spec.IsAvailable != nil {
		slot.IsAvailable = *spec.IsAvailable
	}
	if err := s.store.Create(ctx, &slot); err != nil {
		return model.Slot{}, err
	}
	s.invalidate(ctx, slot.Date)
	return slot, nil
}

type BulkResult struct {
	Created []model.Slot `json:"created"`
	Skipped int          `json:"skipped"`
}

// BulkCreate expands spec and inserts the slots not already present with the
// same (date, start, end). Repeating a request creates nothing new.
func (s *Service) BulkCreate(ctx context.Context, spec BulkSpec) (BulkResult, error) {
	candidates, err := Expand(s.validator, spec)
	if err != nil {
		return BulkResult{}, err
	}
	if len(candidates) == 0 {
		return BulkResult{Created: []model.Slot{}}, nil
	}
	created, err := s.store.CreateMissing(ctx, candidates)
	if err != nil {
		return BulkResult{}, err
	}
	dates := make([]time.Time, 0, len(created))
	for _, c := range created {
		dates = append(dates, c.Date)
	}
	s.invalidate(ctx, dates...)
	s.logger.Info("bulk slots created", "created", len(created), "skipped", len(candidates)-len(created))
	if created == nil {
		created = []model.Slot{}
	}
	return BulkResult{Created: created, Skipped: len(candidates) - len(created)}, nil
}

func (s *Service) Update(ctx context.Context, id string, w Window) (model.Slot, error) {
	if err := s.validator.Struct(w); err != nil {
		return model.Slot{}, err
	}
	start, end, err := parseWindow(w.StartTime, w.EndTime)
	if err != nil {
		return model.Slot{}, err
	}
	slot, err := s.store.UpdateTimes(ctx, id, start, end)
	if err != nil {
		return model.Slot{}, mapStoreErr(err)
	}
	s.invalidate(ctx, slot.Date)
	return slot, nil
}

func (s *Service) SetAvailability(ctx context.Context, id string, available bool) (model.Slot, error) {
	slot, err := s.store.SetAvailability(ctx, id, available)
	if err != nil {
		return model.Slot{}, mapStoreErr(err)
	}
	s.invalidate(ctx, slot.Date)
	return slot, nil
}

// Delete removes a slot unless an appointment of any status lies entirely
// within it, in which case ErrDeletionConflict is returned and nothing changes.
func (s *Service) Delete(ctx context.Context, id string) error {
	slot, err := s.store.Delete(ctx, id, s.loc)
	if err != nil {
		return mapStoreErr(err)
	}
	s.logger.Info("slot deleted", "slot_id", id, "date", slot.Date.Format(time.DateOnly))
	s.invalidate(ctx, slot.Date)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Slot, error) {
	slot, err := s.store.FindByID(ctx, id)
	return slot, mapStoreErr(err)
}

// List returns every slot dated within [from, to].
func (s *Service) List(ctx context.Context, from, to time.Time) ([]model.Slot, error) {
	if to.Before(from) {
		return nil, validation.Field("to", "to must not be before from")
	}
	if to.Sub(from) > MaxBulkDays*24*time.Hour {
		return nil, validation.Field("to", "range must not exceed 366 days")
	}
	return s.store.ListRange(ctx, from, to)
}
