package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", raw)
	}
}

// Blocks reports whether an appointment in this status holds its interval.
func (s Status) Blocks() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID             string
	UserID         string
	SlotID         string
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	IsSureInvestor bool
	Notes          string
	Venue          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Contact is the part of a user record needed to reach them.
type Contact struct {
	UserID string
	Name   string
	Email  string
}

// Recipient is an entry of the staff-managed email receiver list.
type Recipient struct {
	ID                 string
	Name               string
	Email              string
	NotifyAppointments bool
	CreatedAt          time.Time
}
