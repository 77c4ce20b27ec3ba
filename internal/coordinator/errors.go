package coordinator

import "errors"

var (
	ErrAlreadyRequested = errors.New("a booking request is already outstanding for this pair")
	ErrNotActive        = errors.New("no active session for this pair")
	ErrNotCounsellor    = errors.New("only the counsellor side may accept or schedule")
	ErrNotCustomer      = errors.New("only the customer side may raise a request")
)
