package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `id::text, user_id, COALESCE(slot_id::text, ''), start_time, end_time, status,
	is_sure_investor, COALESCE(notes, ''), venue, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.SlotID, &a.StartTime, &a.EndTime, &a.Status,
		&a.IsSureInvestor, &a.Notes, &a.Venue, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func existsOverlapping(ctx context.Context, q querier, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE status <> 'cancelled'
				AND start_time < $2
				AND end_time > $1
				AND ($3 = '' OR id::text <> $3)
		)
	`, start, end, excludeID).Scan(&exists)
	return exists, err
}

// ExistsOverlapping reports whether a non-cancelled appointment overlaps [start, end).
func (r *AppointmentRepository) ExistsOverlapping(ctx context.Context, start, end time.Time) (bool, error) {
	return existsOverlapping(ctx, r.pool, start, end, "")
}

// CreateExclusive inserts appt together with its outbox events, provided no
// non-cancelled appointment overlaps it. The check, the insert and the
// exclusion constraint on appointments make the write all-or-nothing;
// a lost race surfaces as ErrOverlap.
func (r *AppointmentRepository) CreateExclusive(ctx context.Context, appt *model.Appointment, events ...outbox.Event) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		taken, err := existsOverlapping(ctx, tx, appt.StartTime, appt.EndTime, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrOverlap
		}

		var slotID any
		if appt.SlotID != "" {
			slotID = appt.SlotID
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(id, user_id, slot_id, start_time, end_time, status, is_sure_investor, notes, venue)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`, appt.ID, appt.UserID, slotID, appt.StartTime, appt.EndTime, appt.Status,
			appt.IsSureInvestor, appt.Notes, appt.Venue).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
			return err
		}

		for _, evt := range events {
			if err := r.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if db.IsExclusionViolation(err) {
		return ErrOverlap
	}
	return err
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, ErrNotFound
	}
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, mapNotFound(err)
}

// FindByUser lists a user's appointments, most recent start first.
func (r *AppointmentRepository) FindByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

type ListFilter struct {
	Status model.Status
	From   time.Time
	To     time.Time
	Limit  int
}

func (r *AppointmentRepository) ListAll(ctx context.Context, f ListFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR status = $1)
			AND ($2::timestamptz IS NULL OR end_time > $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time DESC
		LIMIT $4
	`, string(f.Status), from, to, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// ListBusy returns the intervals of non-cancelled appointments overlapping [start, end).
func (r *AppointmentRepository) ListBusy(ctx context.Context, start, end time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE status <> 'cancelled'
			AND start_time < $2
			AND end_time > $1
		ORDER BY start_time ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status of an appointment. Moving a cancelled
// appointment back into a blocking status fails with ErrOverlap when its
// interval has since been taken.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, ErrNotFound
	}
	var updated model.Appointment
	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			return mapNotFound(err)
		}
		if status.Blocks() && !current.Status.Blocks() {
			taken, err := existsOverlapping(ctx, tx, current.StartTime, current.EndTime, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrOverlap
			}
		}
		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns, id, status))
		return err
	})
	if db.IsExclusionViolation(err) {
		return model.Appointment{}, ErrOverlap
	}
	return updated, err
}

// Delete removes an appointment and returns the deleted row.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, ErrNotFound
	}
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		DELETE FROM appointments WHERE id = $1
		RETURNING `+appointmentColumns, id))
	return a, mapNotFound(err)
}
