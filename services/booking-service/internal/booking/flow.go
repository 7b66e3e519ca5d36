package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

var ErrInvalidTransition = errors.New("invalid booking step")

// Step is a state of the booking wizard.
type Step int

const (
	StepInitial Step = iota
	StepIntentChosen
	StepSlotsShown
	StepSlotSelected
	StepSubmitted
)

var stepNames = [...]string{"initial", "intent_chosen", "slots_shown", "slot_selected", "submitted"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for i, name := range stepNames {
		if name == string(b) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", b)
}

// Flow is the visitor's progress through the wizard
// Initial -> IntentChosen -> SlotsShown -> SlotSelected -> Submitted.
// Transitions return a new Flow and leave the receiver untouched.
type Flow struct {
	Step          Step         `json:"step"`
	Intent        model.Intent `json:"intent"`
	Date          string       `json:"date,omitempty"`
	SlotID        string       `json:"slot_id,omitempty"`
	AppointmentID string       `json:"appointment_id,omitempty"`
}

func transition(from Step, action string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, from)
}

// ChooseIntent may be repeated before submission; it discards the date and
// slot picked under the previous intent.
func (f Flow) ChooseIntent(intent model.Intent) (Flow, error) {
	if f.Step == StepSubmitted {
		return f, transition(f.Step, "choose intent")
	}
	if intent == model.IntentUndecided {
		return f, fmt.Errorf("%w: intent must be decided", ErrInvalidTransition)
	}
	return Flow{Step: StepIntentChosen, Intent: intent}, nil
}

// ShowSlots records the date whose slots were listed. Switching dates
// clears a previous selection.
func (f Flow) ShowSlots(date time.Time) (Flow, error) {
	if f.Step == StepInitial || f.Step == StepSubmitted {
		return f, transition(f.Step, "show slots")
	}
	return Flow{Step: StepSlotsShown, Intent: f.Intent, Date: date.Format(time.DateOnly)}, nil
}

func (f Flow) SelectSlot(slotID string) (Flow, error) {
	if f.Step != StepSlotsShown && f.Step != StepSlotSelected {
		return f, transition(f.Step, "select slot")
	}
	if slotID == "" {
		return f, fmt.Errorf("%w: slot id is required", ErrInvalidTransition)
	}
	next := f
	next.Step = StepSlotSelected
	next.SlotID = slotID
	return next, nil
}

func (f Flow) Submit(appointmentID string) (Flow, error) {
	if f.Step != StepSlotSelected {
		return f, transition(f.Step, "submit")
	}
	next := f
	next.Step = StepSubmitted
	next.AppointmentID = appointmentID
	return next, nil
}

// CanSubmit reports whether the flow holds everything Book needs.
func (f Flow) CanSubmit() bool {
	return f.Step == StepSlotSelected && f.SlotID != "" && f.Intent != model.IntentUndecided
}

// Back returns to the slot list, dropping the selection.
func (f Flow) Back() (Flow, error) {
	if f.Step != StepSlotSelected {
		return f, transition(f.Step, "go back")
	}
	next := f
	next.Step = StepSlotsShown
	next.SlotID = ""
	return next, nil
}
