package types

import (
	"regexp"
	"strings"
)

// Compiled once at package initialization.
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// IsValidUserID reports whether id is acceptable as a connection-scoped
// principal identifier. IDs travel in URLs and broker frames, so the
// character set is restricted.
func IsValidUserID(id string) bool {
	return userIDRegex.MatchString(id)
}

// IsValidEnvelopeType reports whether t is one of the three wire types.
func IsValidEnvelopeType(t string) bool {
	switch t {
	case EnvelopeJoin, EnvelopeLeave, EnvelopeChat:
		return true
	}
	return false
}

// Validate ensures the envelope is well-formed for publication.
func (e *Envelope) Validate() error {
	if !IsValidEnvelopeType(e.Type) {
		return ErrInvalidEnvelopeType
	}
	if e.Sender == "" {
		return ErrMissingSender
	}
	if e.Type == EnvelopeChat && strings.TrimSpace(e.Content) == "" {
		return ErrMissingContent
	}
	return nil
}

// Validate ensures the request carries the pair and display name the
// counsellor's pending list needs.
func (r *BookingRequest) Validate() error {
	if r.SenderID == "" || r.ReceiverID == "" || r.CustomerName == "" {
		return ErrIncompleteRequest
	}
	return nil
}

// Validate ensures the appointment names both parties and a slot.
func (a *Appointment) Validate() error {
	if a.CustomerID == "" || a.CounsellorID == "" || a.SessionDate == "" || a.SessionTime == "" {
		return ErrIncompleteSchedule
	}
	return nil
}
