package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type SlotRepository struct {
	pool *db.Pool
}

func NewSlotRepository(pool *db.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

const slotColumns = `id::text, slot_date, start_minute, end_minute, is_available, created_at, updated_at`

func scanSlot(row pgx.Row) (model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.Date, &s.StartMinute, &s.EndMinute, &s.IsAvailable, &s.CreatedAt, &s.UpdatedAt)
	s.Date = model.DateOnly(s.Date)
	return s, err
}

func collectSlots(rows pgx.Rows) ([]model.Slot, error) {
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindAvailableByDate returns the slots switched on for date, earliest first.
func (r *SlotRepository) FindAvailableByDate(ctx context.Context, date time.Time) ([]model.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE slot_date = $1 AND is_available
		ORDER BY start_minute ASC, end_minute ASC
	`, model.DateOnly(date))
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *SlotRepository) FindByID(ctx context.Context, id string) (model.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Slot{}, ErrNotFound
	}
	s, err := scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	return s, mapNotFound(err)
}

// ListRange returns every slot dated within [from, to], ordered by time.
func (r *SlotRepository) ListRange(ctx context.Context, from, to time.Time) ([]model.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE slot_date BETWEEN $1 AND $2
		ORDER BY slot_date ASC, start_minute ASC, end_minute ASC
	`, model.DateOnly(from), model.DateOnly(to))
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func insertSlot(ctx context.Context, q querier, s *model.Slot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return q.QueryRow(ctx, `
		INSERT INTO slots (id, slot_date, start_minute, end_minute, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, s.ID, model.DateOnly(s.Date), s.StartMinute, s.EndMinute, s.IsAvailable).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SlotRepository) Create(ctx context.Context, s *model.Slot) error {
	return insertSlot(ctx, r.pool, s)
}

// CreateMissing inserts the slots that have no identical (date, start, end)
// row yet and returns those it inserted. The check and inserts share one
// serializable transaction so concurrent generators cannot both add a row.
func (r *SlotRepository) CreateMissing(ctx context.Context, slots []model.Slot) ([]model.Slot, error) {
	var created []model.Slot
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		created = created[:0]
		for _, s := range slots {
			var exists bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM slots
					WHERE slot_date = $1 AND start_minute = $2 AND end_minute = $3
				)
			`, model.DateOnly(s.Date), s.StartMinute, s.EndMinute).Scan(&exists); err != nil {
				return err
			}
			if exists {
				continue
			}
			s.ID = ""
			if err := insertSlot(ctx, tx, &s); err != nil {
				return err
			}
			created = append(created, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SlotRepository) UpdateTimes(ctx context.Context, id string, startMinute, endMinute int) (model.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Slot{}, ErrNotFound
	}
	s, err := scanSlot(r.pool.QueryRow(ctx, `
		UPDATE slots
		SET start_minute = $2, end_minute = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns, id, startMinute, endMinute))
	return s, mapNotFound(err)
}

func (r *SlotRepository) SetAvailability(ctx context.Context, id string, available bool) (model.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Slot{}, ErrNotFound
	}
	s, err := scanSlot(r.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_available = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns, id, available))
	return s, mapNotFound(err)
}

// Delete removes the slot unless an appointment of any status lies entirely
// within its interval in loc, in which case ErrSlotOccupied is returned and
// nothing changes.
func (r *SlotRepository) Delete(ctx context.Context, id string, loc *time.Location) (model.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Slot{}, ErrNotFound
	}
	var deleted model.Slot
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSlot(tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapNotFound(err)
		}
		var occupied bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE start_time >= $1 AND end_time <= $2
			)
		`, s.Start(loc), s.End(loc)).Scan(&occupied); err != nil {
			return err
		}
		if occupied {
			return ErrSlotOccupied
		}
		if _, err := tx.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id); err != nil {
			return err
		}
		deleted = s
		return nil
	})
	return deleted, err
}
