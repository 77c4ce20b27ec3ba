package transport

import "errors"

var (
	// ErrChannelClosed is returned for operations on a channel after
	// Close. A closed channel never reconnects; open a new one.
	ErrChannelClosed = errors.New("channel closed")
	// ErrInvalidEndpoint means the endpoint URL could not be built.
	ErrInvalidEndpoint = errors.New("invalid messaging endpoint URL")
)
