package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/db"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrOverlap means a non-cancelled appointment already holds part of the interval.
	ErrOverlap = errors.New("interval overlaps an existing appointment")
	// ErrSlotOccupied means an appointment lies entirely inside the slot.
	ErrSlotOccupied = errors.New("slot contains an appointment")
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func mapNotFound(err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
