package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		"":                IntentUndecided,
		"orientation":     IntentOrientation,
		"false":           IntentOrientation,
		"0":               IntentOrientation,
		"READY_TO_INVEST": IntentReadyToInvest,
		"true":            IntentReadyToInvest,
		"1":               IntentReadyToInvest,
	}
	for raw, want := range cases {
		got, err := ParseIntent(raw)
		if err != nil || got != want {
			t.Fatalf("ParseIntent(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseIntent("maybe"); err == nil {
		t.Fatal("expected error for unknown intent")
	}
	if !IntentReadyToInvest.IsSureInvestor() || IntentOrientation.IsSureInvestor() {
		t.Fatal("IsSureInvestor mapping is wrong")
	}
}

func TestIntentFromLooseJSON(t *testing.T) {
	cases := map[string]Intent{
		`{"intent":true}`:              IntentReadyToInvest,
		`{"intent":false}`:             IntentOrientation,
		`{"intent":1}`:                 IntentReadyToInvest,
		`{"intent":0}`:                 IntentOrientation,
		`{"intent":"orientation"}`:     IntentOrientation,
		`{"intent":"ready_to_invest"}`: IntentReadyToInvest,
		`{"intent":null}`:              IntentUndecided,
		`{}`:                           IntentUndecided,
	}
	for raw, want := range cases {
		var body struct {
			Intent Intent `json:"intent"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if body.Intent != want {
			t.Fatalf("%s: got %v, want %v", raw, body.Intent, want)
		}
	}
	var body struct {
		Intent Intent `json:"intent"`
	}
	for _, raw := range []string{`{"intent":2}`, `{"intent":"maybe"}`, `{"intent":[]}`} {
		if err := json.Unmarshal([]byte(raw), &body); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}

	out, err := json.Marshal(struct {
		Intent Intent `json:"intent"`
	}{IntentReadyToInvest})
	if err != nil || string(out) != `{"intent":"ready_to_invest"}` {
		t.Fatalf("marshal: %s %v", out, err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Confirmed "); err != nil || s != StatusConfirmed {
		t.Fatalf("unexpected %v %v", s, err)
	}
	if _, err := ParseStatus("booked"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if StatusCancelled.Blocks() || !StatusPending.Blocks() {
		t.Fatal("only cancelled appointments release their interval")
	}
}

func TestSlotRangeUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := Slot{Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), StartMinute: 9 * 60, EndMinute: 10*60 + 30}
	start, end := s.Start(loc), s.End(loc)
	if start.Hour() != 9 || start.Location() != loc {
		t.Fatalf("unexpected start %s", start)
	}
	if end.Sub(start) != 90*time.Minute {
		t.Fatalf("unexpected length %s", end.Sub(start))
	}
	if start.UTC().Hour() != 3 {
		t.Fatalf("expected 03:00 UTC, got %s", start.UTC())
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("16:30")
	if err != nil || m != 990 {
		t.Fatalf("unexpected %d %v", m, err)
	}
	if FormatClock(m) != "16:30" {
		t.Fatalf("unexpected format %q", FormatClock(m))
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error")
	}
	if ValidWindow(600, 600) || !ValidWindow(0, MinutesPerDay) {
		t.Fatal("ValidWindow bounds are wrong")
	}
}
