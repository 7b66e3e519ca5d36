package storage

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

// Notification is the delivery record of one message about an appointment.
type Notification struct {
	AppointmentID string
	Channel       string
	Recipient     string
	Kind          string
	Payload       map[string]any
	Status        string
	Error         string
}

type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, channel, recipient, kind, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.AppointmentID, n.Channel, n.Recipient, n.Kind, payload, n.Status, n.Error)
	return err
}
