package types

import "errors"

// Validation errors shared across components.
var (
	ErrInvalidRole         = errors.New("role must be 'customer' or 'counsellor'")
	ErrInvalidUserID       = errors.New("user ID must be 1-64 characters, alphanumeric plus underscore/hyphen")
	ErrInvalidEnvelopeType = errors.New("envelope type must be JOIN, LEAVE or CHAT")
	ErrMissingSender       = errors.New("envelope sender cannot be empty")
	ErrMissingContent      = errors.New("CHAT envelope requires non-empty content")
	ErrIncompleteRequest   = errors.New("booking request requires senderId, receiverId and customerName")
	ErrIncompleteSchedule  = errors.New("appointment requires customer, counsellor, date and time")
)
