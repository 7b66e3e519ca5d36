package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/validation"
)

const testSecret = "test-secret"

type fakeOffers struct {
	gotIntent model.Intent
}

func (f *fakeOffers) Available(_ context.Context, date time.Time, intent model.Intent) ([]availability.Offer, error) {
	f.gotIntent = intent
	s := model.Slot{ID: "slot-1", Date: date, StartMinute: 17 * 60, EndMinute: 18 * 60, IsAvailable: true}
	return []availability.Offer{availability.NewOffer(s, time.UTC)}, nil
}

type fakeBooker struct {
	got booking.Request
	err error
}

func (f *fakeBooker) Book(_ context.Context, req booking.Request) (model.Appointment, error) {
	f.got = req
	if f.err != nil {
		return model.Appointment{}, f.err
	}
	return model.Appointment{
		ID:        "appt-1",
		UserID:    req.UserID,
		SlotID:    req.SlotID,
		StartTime: time.Date(2030, 1, 7, 17, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 1, 7, 18, 0, 0, 0, time.UTC),
		Status:    model.StatusPending,
		Venue:     req.Venue,
	}, nil
}

type fakeAppointments struct {
	appts map[string]model.Appointment
}

func (f *fakeAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, appointments.ErrNotFound
	}
	return a, nil
}

func (f *fakeAppointments) ListMine(_ context.Context, userID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) List(context.Context, storage.ListFilter) ([]model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	if status == model.StatusPending {
		return model.Appointment{}, appointments.ErrConflict
	}
	a := f.appts[id]
	a.Status = status
	return a, nil
}

func (f *fakeAppointments) Delete(context.Context, string) error { return nil }

type fakeSlots struct {
	deleteErr error
}

func (f *fakeSlots) Create(_ context.Context, spec slots.Spec) (model.Slot, error) {
	return model.Slot{}, validation.Field("end_time", "end_time must be after start_time")
}

func (f *fakeSlots) BulkCreate(context.Context, slots.BulkSpec) (slots.BulkResult, error) {
	return slots.BulkResult{Skipped: 4}, nil
}

func (f *fakeSlots) Update(context.Context, string, slots.Window) (model.Slot, error) {
	return model.Slot{}, slots.ErrNotFound
}

func (f *fakeSlots) SetAvailability(_ context.Context, id string, available bool) (model.Slot, error) {
	return model.Slot{ID: id, Date: time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC), StartMinute: 540, EndMinute: 600, IsAvailable: available}, nil
}

func (f *fakeSlots) Delete(context.Context, string) error { return f.deleteErr }

func (f *fakeSlots) Get(context.Context, string) (model.Slot, error) {
	return model.Slot{}, slots.ErrNotFound
}

func (f *fakeSlots) List(context.Context, time.Time, time.Time) ([]model.Slot, error) {
	return nil, nil
}

type fakeRecipients struct {
	saved []model.Recipient
}

func (f *fakeRecipients) List(context.Context) ([]model.Recipient, error) { return f.saved, nil }

func (f *fakeRecipients) Upsert(_ context.Context, rc *model.Recipient) error {
	rc.ID = "rc-1"
	f.saved = append(f.saved, *rc)
	return nil
}

func (f *fakeRecipients) Delete(context.Context, string) error { return storage.ErrNotFound }

type fixture struct {
	mux    *http.ServeMux
	offers *fakeOffers
	booker *fakeBooker
	slots  *fakeSlots
	recips *fakeRecipients
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		mux:    http.NewServeMux(),
		offers: &fakeOffers{},
		booker: &fakeBooker{},
		slots:  &fakeSlots{},
		recips: &fakeRecipients{},
	}
	appts := &fakeAppointments{appts: map[string]model.Appointment{
		"appt-9": {ID: "appt-9", UserID: "owner", Status: model.StatusCancelled, Venue: "HQ"},
	}}
	Routes{
		Booking:      NewBookingHandler(f.offers, f.booker, nil, logger),
		Appointments: NewAppointmentHandler(appts, logger),
		Slots:        NewSlotAdminHandler(f.slots, time.UTC, logger),
		Recipients:   NewRecipientHandler(f.recips, validation.New(), logger),
		Authenticate: httpx.RequireAuth(auth.NewVerifier(testSecret, nil)),
	}.Register(f.mux)
	return f
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Role:  role,
		Name:  "Ada",
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestSlotsRequiresDecidedIntent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/slots?date=2030-01-07", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if len(body.Fields) != 1 || body.Fields[0].Field != "intent" {
		t.Fatalf("unexpected fields: %+v", body.Fields)
	}
}

func TestSlotsListsOffers(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/slots?date=2030-01-07&intent=orientation", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Intent string               `json:"intent"`
		Slots  []availability.Offer `json:"slots"`
	}
	decodeBody(t, rec, &body)
	if body.Intent != "orientation" || f.offers.gotIntent != model.IntentOrientation {
		t.Fatalf("unexpected intent: %q / %v", body.Intent, f.offers.gotIntent)
	}
	if len(body.Slots) != 1 || body.Slots[0].Label != "5:00 PM - 6:00 PM" {
		t.Fatalf("unexpected slots: %+v", body.Slots)
	}
}

func TestBookRequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/book", "", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBookUsesCallerIdentity(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/book", token(t, "user-1", auth.RoleUser),
		`{"slot_id":"slot-1","venue":"HQ","intent":"ready_to_invest"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	got := f.booker.got
	if got.UserID != "user-1" || got.Email != "ada@example.com" || got.Intent != model.IntentReadyToInvest {
		t.Fatalf("unexpected request: %+v", got)
	}
	var view appointmentView
	decodeBody(t, rec, &view)
	if view.ID != "appt-1" || view.Status != "pending" {
		t.Fatalf("unexpected appointment: %+v", view)
	}
}

func TestBookAcceptsBooleanIntent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/book", token(t, "user-1", auth.RoleUser),
		`{"slot_id":"slot-1","venue":"HQ","intent":false}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.booker.got.Intent != model.IntentOrientation {
		t.Fatalf("expected orientation, got %v", f.booker.got.Intent)
	}
}

func TestBookErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{validation.Field("venue", "venue is required"), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", booking.ErrSlotUnavailable, availability.ErrOverlap), http.StatusConflict},
		{&booking.PersistenceError{Op: "create appointment", Err: fmt.Errorf("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.booker.err = tc.err
		rec := f.do(t, http.MethodPost, "/api/v1/book", token(t, "user-1", auth.RoleUser), `{"slot_id":"x"}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestStaffRoutesRejectUsers(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/admin/slots", token(t, "user-1", auth.RoleUser), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDeleteSlotConflict(t *testing.T) {
	f := newFixture(t)
	f.slots.deleteErr = slots.ErrDeletionConflict
	rec := f.do(t, http.MethodDelete, "/api/v1/admin/slots/slot-1", token(t, "staff-1", auth.RoleStaff), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	f.slots.deleteErr = nil
	rec = f.do(t, http.MethodDelete, "/api/v1/admin/slots/slot-1", token(t, "staff-1", auth.RoleAdmin), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAdminSlotRoutes(t *testing.T) {
	f := newFixture(t)
	staff := token(t, "staff-1", auth.RoleStaff)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/slots/bulk", staff, `{"from":"2030-01-01","to":"2030-01-31"}`)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"skipped":4`) {
		t.Fatalf("unexpected bulk response %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/v1/admin/slots", staff, `{"date":"2030-01-07","start_time":"10:00","end_time":"09:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPut, "/api/v1/admin/slots/nope", staff, `{"start_time":"09:00","end_time":"10:00"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPatch, "/api/v1/admin/slots/slot-1/availability", staff, `{"is_available":false}`)
	var view slotView
	decodeBody(t, rec, &view)
	if rec.Code != http.StatusOK || view.IsAvailable || view.StartTime != "09:00" {
		t.Fatalf("unexpected toggle response %d: %+v", rec.Code, view)
	}
	rec = f.do(t, http.MethodPatch, "/api/v1/admin/slots/slot-1/availability", staff, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without is_available, got %d", rec.Code)
	}
}

func TestAppointmentOwnership(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/appointments/appt-9", token(t, "intruder", auth.RoleUser), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's appointment, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/appointments/appt-9", token(t, "owner", auth.RoleUser), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/appointments/mine", token(t, "owner", auth.RoleUser), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "appt-9") {
		t.Fatalf("unexpected mine response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAppointmentStatusConflict(t *testing.T) {
	f := newFixture(t)
	staff := token(t, "staff-1", auth.RoleStaff)
	rec := f.do(t, http.MethodPatch, "/api/v1/appointments/appt-9/status", staff, `{"status":"pending"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPatch, "/api/v1/appointments/appt-9/status", staff, `{"status":"archived"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRecipients(t *testing.T) {
	f := newFixture(t)
	staff := token(t, "staff-1", auth.RoleAdmin)
	rec := f.do(t, http.MethodPut, "/api/v1/admin/recipients", staff, `{"name":"Ops","email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPut, "/api/v1/admin/recipients", staff, `{"name":"Ops","email":"ops@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.recips.saved) != 1 || !f.recips.saved[0].NotifyAppointments {
		t.Fatalf("recipient must default to notified: %+v", f.recips.saved)
	}
	rec = f.do(t, http.MethodDelete, "/api/v1/admin/recipients/rc-404", staff, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
