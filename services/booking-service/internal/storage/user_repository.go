package storage

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// UserRepository keeps the contact projection of booking users, filled from
// the identity claims they authenticate with.
type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindContact(ctx context.Context, userID string) (model.Contact, error) {
	c := model.Contact{UserID: userID}
	err := r.pool.QueryRow(ctx, `SELECT name, email FROM users WHERE id = $1`, userID).Scan(&c.Name, &c.Email)
	return c, mapNotFound(err)
}

// UpsertContact records the latest known name and email. Empty values never
// overwrite stored ones.
func (r *UserRepository) UpsertContact(ctx context.Context, c model.Contact) error {
	if strings.TrimSpace(c.UserID) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			updated_at = now()
	`, c.UserID, strings.TrimSpace(c.Name), strings.ToLower(strings.TrimSpace(c.Email)))
	return err
}
