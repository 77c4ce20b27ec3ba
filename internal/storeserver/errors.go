package storeserver

import "errors"

var (
	ErrStoreClosed       = errors.New("store is closed")
	ErrWriteTimeout      = errors.New("write operation timeout")
	ErrNoMatchingRequest = errors.New("no booking request matches the given pair")
)
