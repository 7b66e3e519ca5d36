package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// SlotSource lists slots flagged available on a date, ordered by start time.
type SlotSource interface {
	FindAvailableByDate(ctx context.Context, date time.Time) ([]model.Slot, error)
}

// BusySource lists the intervals of non-cancelled appointments overlapping [start, end).
type BusySource interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]Interval, error)
}

// Cache stores computed offers per date and intent. Generation changes on
// every Invalidate of a date; Set must discard offers computed under an
// older generation.
type Cache interface {
	Get(ctx context.Context, date time.Time, intent model.Intent) ([]Offer, bool, error)
	Generation(ctx context.Context, date time.Time) (int64, error)
	Set(ctx context.Context, date time.Time, intent model.Intent, gen int64, offers []Offer) error
	Invalidate(ctx context.Context, date time.Time) error
}

type Calculator struct {
	slots  SlotSource
	busy   BusySource
	cache  Cache
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Calculator)

func WithCache(c Cache) Option {
	return func(calc *Calculator) { calc.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(calc *Calculator) { calc.now = now }
}

func NewCalculator(slots SlotSource, busy BusySource, loc *time.Location, logger *slog.Logger, opts ...Option) *Calculator {
	c := &Calculator{slots: slots, busy: busy, loc: loc, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Location() *time.Location { return c.loc }

// Today is the current calendar date in the booking location.
func (c *Calculator) Today() time.Time { return Today(c.now(), c.loc) }

// Available returns the bookable offers for date. Dates before today yield
// no offers; cache failures degrade to a direct computation.
func (c *Calculator) Available(ctx context.Context, date time.Time, intent model.Intent) ([]Offer, error) {
	if intent == model.IntentUndecided {
		return nil, ErrIntentUndecided
	}
	date = model.DateOnly(date)
	if date.Before(c.Today()) {
		return []Offer{}, nil
	}

	// gen is read before the store so an invalidation racing the
	// computation below keeps its result out of the cache.
	cacheable := false
	var gen int64
	if c.cache != nil {
		offers, ok, err := c.cache.Get(ctx, date, intent)
		if err != nil {
			c.logger.Warn("availability cache read failed", "err", err, "date", date.Format(time.DateOnly))
		} else if ok {
			return offers, nil
		} else if gen, err = c.cache.Generation(ctx, date); err != nil {
			c.logger.Warn("availability cache generation read failed", "err", err, "date", date.Format(time.DateOnly))
		} else {
			cacheable = true
		}
	}

	slots, err := c.slots.FindAvailableByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	var offers []Offer
	if len(slots) == 0 {
		offers = []Offer{}
	} else {
		day := DayInterval(date, c.loc)
		busy, err := c.busy.ListBusy(ctx, day.Start, day.End)
		if err != nil {
			return nil, err
		}
		offers = Filter(slots, busy, intent, c.Today(), c.loc)
	}

	if cacheable {
		if err := c.cache.Set(ctx, date, intent, gen, offers); err != nil {
			c.logger.Warn("availability cache write failed", "err", err, "date", date.Format(time.DateOnly))
		}
	}
	return offers, nil
}

// Invalidate drops cached offers for date; errors are logged only.
func (c *Calculator) Invalidate(ctx context.Context, date time.Time) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, model.DateOnly(date)); err != nil {
		c.logger.Warn("availability cache invalidate failed", "err", err, "date", date.Format(time.DateOnly))
	}
}
