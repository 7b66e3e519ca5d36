package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

type Routes struct {
	Booking      *BookingHandler
	Appointments *AppointmentHandler
	Slots        *SlotAdminHandler
	Recipients   *RecipientHandler
	// Authenticate attaches the caller identity; it must reject anonymous requests.
	Authenticate httpx.Middleware
}

// Register mounts the API on mux. Availability is public; everything else
// needs a caller, and the admin and staff routes need a staff role.
func (rt Routes) Register(mux *http.ServeMux) {
	user := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rt.Authenticate)
	}
	staff := func(h http.HandlerFunc) http.Handler {
		// Chain wraps in reverse, so authentication runs first.
		return httpx.Chain(h, rt.Authenticate, httpx.RequireRole(auth.RoleStaff, auth.RoleAdmin))
	}

	mux.HandleFunc("GET /api/v1/slots", rt.Booking.Slots)
	mux.Handle("POST /api/v1/book", user(rt.Booking.Book))

	mux.Handle("POST /api/v1/booking/sessions", user(rt.Booking.StartSession))
	mux.Handle("GET /api/v1/booking/sessions/{id}", user(rt.Booking.GetSession))
	mux.Handle("POST /api/v1/booking/sessions/{id}/intent", user(rt.Booking.ChooseIntent))
	mux.Handle("GET /api/v1/booking/sessions/{id}/slots", user(rt.Booking.SessionSlots))
	mux.Handle("POST /api/v1/booking/sessions/{id}/select", user(rt.Booking.SelectSlot))
	mux.Handle("POST /api/v1/booking/sessions/{id}/back", user(rt.Booking.Back))
	mux.Handle("POST /api/v1/booking/sessions/{id}/submit", user(rt.Booking.SubmitSession))

	mux.Handle("GET /api/v1/appointments/mine", user(rt.Appointments.Mine))
	mux.Handle("GET /api/v1/appointments/{id}", user(rt.Appointments.Get))
	mux.Handle("GET /api/v1/appointments", staff(rt.Appointments.List))
	mux.Handle("PATCH /api/v1/appointments/{id}/status", staff(rt.Appointments.UpdateStatus))
	mux.Handle("DELETE /api/v1/appointments/{id}", staff(rt.Appointments.Delete))

	mux.Handle("GET /api/v1/admin/slots", staff(rt.Slots.List))
	mux.Handle("POST /api/v1/admin/slots", staff(rt.Slots.Create))
	mux.Handle("POST /api/v1/admin/slots/bulk", staff(rt.Slots.Bulk))
	mux.Handle("GET /api/v1/admin/slots/{id}", staff(rt.Slots.Get))
	mux.Handle("PUT /api/v1/admin/slots/{id}", staff(rt.Slots.Update))
	mux.Handle("PATCH /api/v1/admin/slots/{id}/availability", staff(rt.Slots.SetAvailability))
	mux.Handle("DELETE /api/v1/admin/slots/{id}", staff(rt.Slots.Delete))

	mux.Handle("GET /api/v1/admin/recipients", staff(rt.Recipients.List))
	mux.Handle("PUT /api/v1/admin/recipients", staff(rt.Recipients.Put))
	mux.Handle("DELETE /api/v1/admin/recipients/{id}", staff(rt.Recipients.Delete))
}
