package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

const (
	KindUserBooked  = "user_booked"
	KindAdminBooked = "admin_booked"

	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

type ContactFinder interface {
	FindContact(ctx context.Context, userID string) (model.Contact, error)
}

type RecipientLister interface {
	ListAppointmentRecipients(ctx context.Context) ([]model.Recipient, error)
}

type DeliveryLog interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type WebhookPoster interface {
	Post(ctx context.Context, payload any) error
}

type Dispatcher struct {
	email      EmailSender
	webhook    WebhookPoster
	contacts   ContactFinder
	recipients RecipientLister
	deliveries DeliveryLog
	loc        *time.Location
	logger     *slog.Logger
}

type Option func(*Dispatcher)

func WithWebhook(w WebhookPoster) Option {
	return func(d *Dispatcher) { d.webhook = w }
}

func WithDeliveryLog(l DeliveryLog) Option {
	return func(d *Dispatcher) { d.deliveries = l }
}

func NewDispatcher(email EmailSender, contacts ContactFinder, recipients RecipientLister, loc *time.Location, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{email: email, contacts: contacts, recipients: recipients, loc: loc, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AppointmentBooked sends the booking confirmation to the user and the
// notice to every opted-in recipient. Each send is attempted; the joined
// failures are returned for logging.
func (d *Dispatcher) AppointmentBooked(ctx context.Context, appt model.Appointment) error {
	userErr := d.NotifyUserBooked(ctx, appt)
	if userErr != nil {
		d.logger.Warn("user booking notification failed", "err", userErr, "appointment_id", appt.ID)
	}

	recipients, err := d.recipients.ListAppointmentRecipients(ctx)
	if err != nil {
		return errors.Join(userErr, fmt.Errorf("list recipients: %w", err))
	}
	adminErr := d.NotifyAdmins(ctx, appt, recipients)
	if adminErr != nil {
		d.logger.Warn("admin booking notification failed", "err", adminErr, "appointment_id", appt.ID)
	}
	return errors.Join(userErr, adminErr)
}

// NotifyUserBooked emails the booking user, if their address is known.
func (d *Dispatcher) NotifyUserBooked(ctx context.Context, appt model.Appointment) error {
	contact, err := d.contacts.FindContact(ctx, appt.UserID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && contact.Email == "") {
		d.logger.Info("booking user has no email on file", "user_id", appt.UserID, "appointment_id", appt.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find contact: %w", err)
	}
	subject, body := d.userMessage(appt, contact)
	return d.sendEmail(ctx, appt, KindUserBooked, contact.Email, subject, body)
}

// NotifyAdmins emails each recipient and posts to the webhook when one is configured.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, appt model.Appointment, recipients []model.Recipient) error {
	contact, err := d.contacts.FindContact(ctx, appt.UserID)
	if err != nil {
		contact = model.Contact{UserID: appt.UserID}
	}
	subject, body := d.adminMessage(appt, contact)

	var errs []error
	for _, rc := range recipients {
		if !rc.NotifyAppointments || rc.Email == "" {
			continue
		}
		if err := d.sendEmail(ctx, appt, KindAdminBooked, rc.Email, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rc.Email, err))
		}
	}
	if d.webhook != nil {
		payload := map[string]any{
			"event":            "appointment.booked",
			"appointment_id":   appt.ID,
			"user_id":          appt.UserID,
			"user_name":        contact.Name,
			"user_email":       contact.Email,
			"start_time":       appt.StartTime.Format(time.RFC3339),
			"end_time":         appt.EndTime.Format(time.RFC3339),
			"label":            d.when(appt),
			"venue":            appt.Venue,
			"is_sure_investor": appt.IsSureInvestor,
		}
		err := d.webhook.Post(ctx, payload)
		d.record(ctx, storage.Notification{
			AppointmentID: appt.ID,
			Channel:       ChannelWebhook,
			Recipient:     "webhook",
			Kind:          KindAdminBooked,
			Payload:       payload,
			Status:        status(err),
			Error:         errString(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) sendEmail(ctx context.Context, appt model.Appointment, kind, to, subject, body string) error {
	err := d.email.Send(ctx, to, subject, body)
	d.record(ctx, storage.Notification{
		AppointmentID: appt.ID,
		Channel:       ChannelEmail,
		Recipient:     to,
		Kind:          kind,
		Payload:       map[string]any{"subject": subject},
		Status:        status(err),
		Error:         errString(err),
	})
	return err
}

func (d *Dispatcher) record(ctx context.Context, n storage.Notification) {
	if d.deliveries == nil {
		return
	}
	if err := d.deliveries.Insert(ctx, n); err != nil {
		d.logger.Warn("notification record failed", "err", err, "appointment_id", n.AppointmentID)
	}
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "sent"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (d *Dispatcher) when(appt model.Appointment) string {
	start := appt.StartTime.In(d.loc)
	return start.Format("Monday, January 2, 2006") + " " + availability.Label(start, appt.EndTime.In(d.loc))
}

func (d *Dispatcher) userMessage(appt model.Appointment, c model.Contact) (string, string) {
	greeting := "Hello"
	if c.Name != "" {
		greeting = "Hello " + c.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greeting)
	fmt.Fprintf(&b, "We received your appointment request for %s.\n", d.when(appt))
	fmt.Fprintf(&b, "Venue: %s\n", appt.Venue)
	fmt.Fprintf(&b, "Session: %s\n", sessionKind(appt))
	fmt.Fprintf(&b, "Status: %s\n\n", appt.Status)
	b.WriteString("We will contact you to confirm it.\n")
	return "Your appointment request has been received", b.String()
}

func (d *Dispatcher) adminMessage(appt model.Appointment, c model.Contact) (string, string) {
	who := c.UserID
	if c.Name != "" {
		who = c.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New appointment request from %s", who)
	if c.Email != "" {
		fmt.Fprintf(&b, " <%s>", c.Email)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "When: %s\n", d.when(appt))
	fmt.Fprintf(&b, "Venue: %s\n", appt.Venue)
	fmt.Fprintf(&b, "Session: %s\n", sessionKind(appt))
	if appt.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", appt.Notes)
	}
	fmt.Fprintf(&b, "Appointment id: %s\n", appt.ID)
	return "New appointment: " + d.when(appt), b.String()
}

func sessionKind(appt model.Appointment) string {
	if appt.IsSureInvestor {
		return "ready to invest"
	}
	return "orientation"
}
