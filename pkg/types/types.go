package types

import (
	"time"
)

// Role identifies which side of a counselling session a user is on.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleCounsellor Role = "counsellor"
)

// ParseRole maps the identity provider's raw role attribute to a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleCounsellor:
		return RoleCounsellor, nil
	default:
		return "", ErrInvalidRole
	}
}

// Principal is the raw attribute bag supplied by the identity provider,
// including the two custom attributes collected at sign-up.
type Principal map[string]string

// Attribute keys present on a Principal.
const (
	AttrSub            = "sub"
	AttrEmail          = "email"
	AttrName           = "name"
	AttrRole           = "custom:userType"
	AttrSpecialization = "custom:specialization"
)

// SessionIdentity is the resolved identity triple used by every
// downstream component. Immutable once resolved for a session.
type SessionIdentity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Envelope types carried on the chat topic.
const (
	EnvelopeJoin  = "JOIN"
	EnvelopeLeave = "LEAVE"
	EnvelopeChat  = "CHAT"
)

// Envelope is one typed unit of channel traffic. Content is required
// for CHAT and ignored for JOIN/LEAVE. Envelopes are immutable once
// constructed; timestamping is implicit by arrival order.
type Envelope struct {
	Sender  string `json:"sender"`
	Content string `json:"content,omitempty"`
	Type    string `json:"type"`
}

// Booking request status values persisted by the store.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
)

// BookingRequest is the pre-confirmation scheduling record. SenderID is
// the customer who raised the request, ReceiverID the counsellor it
// targets.
type BookingRequest struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customerName"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Session       string    `json:"session"`
	BookingStatus string    `json:"bookingStatus"`
	Timestamp     time.Time `json:"timestamp"`
}

// Appointment is the post-confirmation scheduling record. Created only
// by a successful appointment-create call and immutable afterwards.
type Appointment struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customerId"`
	CustomerName   string `json:"customerName"`
	CounsellorID   string `json:"counsellorId"`
	CounsellorName string `json:"counsellorName"`
	SessionDate    string `json:"sessionDate"`
	SessionTime    string `json:"sessionTime"`
	Session        string `json:"session"`
}

// UserRecord is the directory-store row persisted on first resolution.
type UserRecord struct {
	UUID           string `json:"uuid"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	Specialization string `json:"specialization"`
}

// Counsellor is the directory listing entry shown to customers.
type Counsellor struct {
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}
