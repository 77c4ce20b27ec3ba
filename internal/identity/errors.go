package identity

import "errors"

var (
	// ErrIdentityIncomplete means the principal is missing its subject,
	// display name, or a usable role attribute. Resolution failure is
	// fatal to starting a session.
	ErrIdentityIncomplete = errors.New("identity incomplete: missing or invalid principal attributes")
)
