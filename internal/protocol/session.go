// Package protocol implements the typed JOIN/LEAVE/CHAT exchange on
// top of a channel: the join handshake on every open, the trim-empty
// chat guard, and the arrival-ordered message log.
package protocol

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"counselchat/internal/transport"
	"counselchat/pkg/types"
)

// Destinations on the messaging endpoint, re-exported for callers.
const (
	TopicChat       = types.TopicChat
	DestAddUser     = types.DestAddUser
	DestSendMessage = types.DestSendMessage
)

// Channel is the transport surface a session drives. Satisfied by
// *transport.Channel.
type Channel interface {
	Subscribe(topic string, fn transport.Handler) error
	Publish(destination string, env types.Envelope) error
	HandleState(fn transport.StateFunc)
	Close() error
	State() transport.State
}

// Session owns one channel and one message log for one resolved
// identity. The log is fed exclusively by the inbound subscription
// stream: a sender sees their own chat only after the broker echoes it
// back, which keeps every participant's ordering identical.
type Session struct {
	identity types.SessionIdentity
	channel  Channel
	log      *MessageLog
	logger   *zap.Logger

	mu        sync.Mutex
	started   bool
	announced bool
	observer  func(types.Envelope)
}

// NewSession wraps an open channel for the identity. A nil logger is
// replaced with a no-op logger.
func NewSession(identity types.SessionIdentity, channel Channel, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		identity: identity,
		channel:  channel,
		log:      NewMessageLog(),
		logger:   logger,
	}
}

// Start subscribes to the chat topic and arranges the join handshake:
// a JOIN envelope announcing the display name is published on every
// entry to Open, including re-entries after a reconnect, before any
// chat traffic on that connection. A channel that is already Open when
// Start runs is announced immediately.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := s.channel.Subscribe(TopicChat, s.receive); err != nil {
		return err
	}

	s.channel.HandleState(func(state transport.State) {
		if state == transport.StateOpen {
			s.announce()
			return
		}
		s.mu.Lock()
		s.announced = false
		s.mu.Unlock()
	})

	// State transitions are not replayed to late registrants: if the
	// channel finished its handshake before Start ran, announce now.
	if s.channel.State() == transport.StateOpen {
		s.announce()
	}
	return nil
}

// announce publishes the JOIN for the current connection at most once.
// The guard resets whenever the channel leaves Open, so each reconnect
// announces again.
func (s *Session) announce() {
	s.mu.Lock()
	if s.announced {
		s.mu.Unlock()
		return
	}
	s.announced = true
	s.mu.Unlock()

	join := types.Envelope{Sender: s.identity.DisplayName, Type: types.EnvelopeJoin}
	if err := s.channel.Publish(DestAddUser, join); err != nil {
		s.logger.Warn("join announcement failed", zap.Error(err))
	}
}

// Send publishes a CHAT envelope with the session's display name.
// Content that is empty after trimming is rejected as a no-op. The
// envelope is not appended locally; it reaches the log only via the
// broker's echo.
func (s *Session) Send(content string) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	if strings.TrimSpace(content) == "" {
		return nil
	}

	env := types.Envelope{
		Sender:  s.identity.DisplayName,
		Content: content,
		Type:    types.EnvelopeChat,
	}
	return s.channel.Publish(DestSendMessage, env)
}

// Notify registers a callback invoked for every inbound envelope after
// it lands in the log. Runs on the channel's dispatch goroutine, so
// the callback must not block.
func (s *Session) Notify(fn func(types.Envelope)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// receive appends every inbound envelope, JOIN/LEAVE/CHAT alike, in
// arrival order. Runs on the channel's dispatch goroutine.
func (s *Session) receive(env types.Envelope) {
	s.log.Append(env)
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(env)
	}
}

// Identity returns the session's resolved identity.
func (s *Session) Identity() types.SessionIdentity {
	return s.identity
}

// Messages returns the log contents in arrival order.
func (s *Session) Messages() []types.Envelope {
	return s.log.Snapshot()
}

// Close releases the channel. Safe to call on every exit path.
func (s *Session) Close() error {
	return s.channel.Close()
}
