package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Intent is what the visitor declared before choosing a slot.
type Intent int

const (
	IntentUndecided Intent = iota
	IntentOrientation
	IntentReadyToInvest
)

func (i Intent) String() string {
	switch i {
	case IntentOrientation:
		return "orientation"
	case IntentReadyToInvest:
		return "ready_to_invest"
	default:
		return "undecided"
	}
}

// IsSureInvestor is the persisted form of the intent.
func (i Intent) IsSureInvestor() bool {
	return i == IntentReadyToInvest
}

// IntentFromSureInvestor maps the stored flag back to an intent.
func IntentFromSureInvestor(sure bool) Intent {
	if sure {
		return IntentReadyToInvest
	}
	return IntentOrientation
}

// ParseIntent accepts the canonical names as well as the boolean-like values
// older clients send for "is sure investor". Empty input is undecided.
func ParseIntent(raw string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "undecided", "null":
		return IntentUndecided, nil
	case "orientation", "false", "0", "no":
		return IntentOrientation, nil
	case "ready_to_invest", "ready", "investor", "true", "1", "yes":
		return IntentReadyToInvest, nil
	default:
		return IntentUndecided, fmt.Errorf("unknown intent %q", raw)
	}
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	v, err := ParseIntent(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// UnmarshalJSON also takes bare booleans and 0/1 numbers, the loose form of
// the "is sure investor" flag. null leaves the value unchanged.
func (i *Intent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	return i.UnmarshalText([]byte(raw))
}
