package interfaces

import (
	"context"

	"counselchat/pkg/types"
)

// BookingStore is the directory/booking store surface the core consumes.
// The production implementation talks REST to the store; tests swap in
// in-memory fakes.
type BookingStore interface {
	// SaveUser upserts a directory record, idempotent by UUID.
	SaveUser(ctx context.Context, record *types.UserRecord) error

	// ListCounsellors returns every registered counsellor.
	ListCounsellors(ctx context.Context) ([]types.Counsellor, error)

	// SendRequest creates a PENDING booking request.
	SendRequest(ctx context.Context, req *types.BookingRequest) error

	// ListRequests returns all booking requests regardless of status;
	// callers filter for PENDING themselves.
	ListRequests(ctx context.Context) ([]types.BookingRequest, error)

	// CreateAppointment persists a confirmed appointment slot.
	CreateAppointment(ctx context.Context, appt *types.Appointment) error

	// UpdateBookingStatus flips the request addressed by the pair to
	// CONFIRMED. The pair is given in chat-session order: senderID is
	// the counsellor who opened the session, receiverID the customer.
	UpdateBookingStatus(ctx context.Context, senderID, receiverID string) error

	// ListCounsellorAppointments returns confirmed appointments for a
	// counsellor UUID.
	ListCounsellorAppointments(ctx context.Context, uuid string) ([]types.Appointment, error)

	// ListCustomerAppointments returns confirmed appointments for a
	// customer UUID.
	ListCustomerAppointments(ctx context.Context, uuid string) ([]types.Appointment, error)
}

// DirectoryWriter is the slice of the store the identity resolver
// needs for its best-effort upsert.
type DirectoryWriter interface {
	SaveUser(ctx context.Context, record *types.UserRecord) error
}
