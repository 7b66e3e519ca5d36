package slots

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

// MaxBulkDays bounds one bulk request.
const MaxBulkDays = 366

// BulkSpec asks for one slot per matching day in [From, To] with the same
// time-of-day window.
type BulkSpec struct {
	From        string   `json:"from" validate:"required,date"`
	To          string   `json:"to" validate:"required,date"`
	Weekdays    []string `json:"weekdays" validate:"required,min=1,dive,oneof=sun mon tue wed thu fri sat sunday monday tuesday wednesday thursday friday saturday"`
	StartTime   string   `json:"start_time" validate:"required,clock"`
	EndTime     string   `json:"end_time" validate:"required,clock"`
	IsAvailable *bool    `json:"is_available"`
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func (b *BulkSpec) normalize() {
	for i, d := range b.Weekdays {
		b.Weekdays[i] = strings.ToLower(strings.TrimSpace(d))
	}
	b.StartTime = strings.TrimSpace(b.StartTime)
	b.EndTime = strings.TrimSpace(b.EndTime)
}

// Expand validates spec and generates the slots it describes, day by day.
// Duplicates within the result are impossible since each day yields at most
// one slot.
func Expand(v *validation.Validator, spec BulkSpec) ([]model.Slot, error) {
	spec.normalize()
	if err := v.Struct(spec); err != nil {
		return nil, err
	}
	from, _ := model.ParseDate(spec.From)
	to, _ := model.ParseDate(spec.To)
	start, _ := model.ParseClock(spec.StartTime)
	end, _ := model.ParseClock(spec.EndTime)

	if to.Before(from) {
		return nil, validation.Field("to", "to must not be before from")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxBulkDays {
		return nil, validation.Field("to", "range must not exceed 366 days")
	}
	if !model.ValidWindow(start, end) {
		return nil, validation.Field("end_time", "end_time must be after start_time")
	}

	days := map[time.Weekday]bool{}
	for _, d := range spec.Weekdays {
		days[weekdayNames[d]] = true
	}
	available := true
	if spec.IsAvailable != nil {
		available = *spec.IsAvailable
	}

	var out []model.Slot
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !days[d.Weekday()] {
			continue
		}
		out = append(out, model.Slot{Date: d, StartMinute: start, EndMinute: end, IsAvailable: available})
	}
	return out, nil
}
