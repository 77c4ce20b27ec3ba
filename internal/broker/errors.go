package broker

import "errors"

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrConnClosed        = errors.New("connection closed")
	ErrSendQueueFull     = errors.New("connection send queue full")
)
