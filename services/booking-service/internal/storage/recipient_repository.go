package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// RecipientRepository manages the staff email receiver list.
type RecipientRepository struct {
	pool *db.Pool
}

func NewRecipientRepository(pool *db.Pool) *RecipientRepository {
	return &RecipientRepository{pool: pool}
}

func collectRecipients(rows pgx.Rows) ([]model.Recipient, error) {
	defer rows.Close()
	var out []model.Recipient
	for rows.Next() {
		var rc model.Recipient
		if err := rows.Scan(&rc.ID, &rc.Name, &rc.Email, &rc.NotifyAppointments, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ListAppointmentRecipients returns the receivers opted into appointment notifications.
func (r *RecipientRepository) ListAppointmentRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, email, notify_appointments, created_at
		FROM email_receivers
		WHERE notify_appointments
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	return collectRecipients(rows)
}

func (r *RecipientRepository) List(ctx context.Context) ([]model.Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, email, notify_appointments, created_at
		FROM email_receivers
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	return collectRecipients(rows)
}

// Upsert inserts a receiver or updates the one with the same email.
func (r *RecipientRepository) Upsert(ctx context.Context, rc *model.Recipient) error {
	rc.Email = strings.ToLower(strings.TrimSpace(rc.Email))
	return r.pool.QueryRow(ctx, `
		INSERT INTO email_receivers (id, name, email, notify_appointments)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
			notify_appointments = EXCLUDED.notify_appointments
		RETURNING id::text, created_at
	`, uuid.NewString(), rc.Name, rc.Email, rc.NotifyAppointments).Scan(&rc.ID, &rc.CreatedAt)
}

func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_receivers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
