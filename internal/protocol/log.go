package protocol

import (
	"sync"

	"counselchat/pkg/types"
)

// MessageLog is the append-only, arrival-ordered record of every
// envelope observed on the channel. It is never reordered or
// deduplicated and lives only as long as its session.
type MessageLog struct {
	mu      sync.RWMutex
	entries []types.Envelope
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append records an envelope at the tail of the log.
func (l *MessageLog) Append(env types.Envelope) {
	l.mu.Lock()
	l.entries = append(l.entries, env)
	l.mu.Unlock()
}

// Snapshot returns a copy of the log in arrival order.
func (l *MessageLog) Snapshot() []types.Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]types.Envelope(nil), l.entries...)
}

// Len returns the number of recorded envelopes.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
