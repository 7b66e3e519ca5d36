package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// OrientationEarliestMinute is the first start time (17:00) offered to
// visitors who only want an orientation session.
const OrientationEarliestMinute = 17 * 60

var (
	ErrIntentUndecided  = errors.New("intent must be chosen before slots are listed")
	ErrPastDate         = errors.New("slot date is in the past")
	ErrNotAvailable     = errors.New("slot is not open for booking")
	ErrIntentRestricted = errors.New("slot is not offered for this intent")
	ErrOverlap          = errors.New("slot overlaps an existing appointment")
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open intervals: [a,b) overlaps [c,d) iff a < d && c < b.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// SlotInterval is the absolute range a slot covers in loc.
func SlotInterval(s model.Slot, loc *time.Location) Interval {
	return Interval{Start: s.Start(loc), End: s.End(loc)}
}

// DayInterval covers the whole calendar day in loc.
func DayInterval(day time.Time, loc *time.Location) Interval {
	start := model.AtMinute(day, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// Today is the current calendar date in loc, as a date-only value.
func Today(now time.Time, loc *time.Location) time.Time {
	return model.DateOnly(now.In(loc))
}

// Offer is a bookable slot as shown to the visitor.
type Offer struct {
	SlotID      string    `json:"slot_id"`
	Date        string    `json:"date"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	Start       time.Time `json:"start_time"`
	End         time.Time `json:"end_time"`
	Label       string    `json:"label"`
}

func NewOffer(s model.Slot, loc *time.Location) Offer {
	iv := SlotInterval(s, loc)
	return Offer{
		SlotID:      s.ID,
		Date:        s.Date.Format(time.DateOnly),
		StartMinute: s.StartMinute,
		EndMinute:   s.EndMinute,
		Start:       iv.Start,
		End:         iv.End,
		Label:       Label(iv.Start, iv.End),
	}
}

// Label renders a range as "9:00 AM - 10:00 AM".
func Label(start, end time.Time) string {
	return start.Format("3:04 PM") + " - " + end.Format("3:04 PM")
}

// Bookable applies the per-slot rules that do not depend on other
// appointments: the date is not past, the slot is switched on and the
// intent may see it.
func Bookable(s model.Slot, intent model.Intent, today time.Time) error {
	if intent == model.IntentUndecided {
		return ErrIntentUndecided
	}
	if model.DateOnly(s.Date).Before(model.DateOnly(today)) {
		return ErrPastDate
	}
	if !s.IsAvailable {
		return ErrNotAvailable
	}
	if intent == model.IntentOrientation && s.StartMinute < OrientationEarliestMinute {
		return ErrIntentRestricted
	}
	return nil
}

// Filter returns the offers among slots that are bookable for intent and do
// not overlap any busy interval, ordered by start time.
func Filter(slots []model.Slot, busy []Interval, intent model.Intent, today time.Time, loc *time.Location) []Offer {
	out := make([]Offer, 0, len(slots))
	for _, s := range slots {
		if Bookable(s, intent, today) != nil {
			continue
		}
		if overlapsAny(SlotInterval(s, loc), busy) {
			continue
		}
		out = append(out, NewOffer(s, loc))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
