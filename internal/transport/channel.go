// Package transport owns the bidirectional, auto-reconnecting channel
// to the messaging endpoint. One Channel per active session; the
// channel is exclusively owned by the session that opened it.
package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"counselchat/pkg/types"
)

// State is the lifecycle state of a channel.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	// DefaultReconnectInterval is the fixed delay between reconnect
	// attempts. Retries are unbounded.
	DefaultReconnectInterval = 5 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
)

// Handler is invoked once per inbound envelope on a subscribed topic,
// in arrival order. Handlers for one channel never run concurrently.
type Handler func(env types.Envelope)

// StateFunc observes lifecycle transitions.
type StateFunc func(s State)

// Options tune a channel. The zero value uses production defaults.
type Options struct {
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	Logger            *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Channel is one logical connection to the messaging endpoint. It
// survives transport drops by reconnecting in the background at a
// fixed interval; only Close ends it.
type Channel struct {
	endpoint string
	opts     Options
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	state    State
	conn     *websocket.Conn
	topics   []string             // subscription order, re-applied on every open
	handlers map[string][]Handler // topic -> handlers in registration order
	stateFns []StateFunc
	pending  []types.Frame // publishes queued while not Open

	writeMu sync.Mutex // serializes writes to the current conn
}

// Endpoint builds the connect URL for a user, ws(s)://host/ws?username=id.
// http and https bases are accepted and mapped to ws and wss.
func Endpoint(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", ErrInvalidEndpoint
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", ErrInvalidEndpoint
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("username", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens a channel to the endpoint. It never blocks on the network:
// connection establishment runs in the background and completion is
// reported through a state transition to StateOpen.
func Dial(endpoint string, opts Options) *Channel {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		endpoint: endpoint,
		opts:     opts,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateConnecting,
		handlers: make(map[string][]Handler),
	}
	go c.run()
	return c
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// HandleState registers fn for lifecycle transitions. Registrations
// made before the first open are buffered; fn runs on the channel's
// goroutine, so it may publish without racing queued flushes.
func (c *Channel) HandleState(fn StateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// Subscribe registers a handler for envelopes on topic. Subscriptions
// made before the channel is Open are buffered and (re-)applied every
// time Open is entered; a reconnect is a fresh logical connection that
// requires re-subscription.
func (c *Channel) Subscribe(topic string, fn Handler) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	_, known := c.handlers[topic]
	c.handlers[topic] = append(c.handlers[topic], fn)
	if !known {
		c.topics = append(c.topics, topic)
	}
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !known && open && conn != nil {
		c.writeFrame(conn, types.Frame{Kind: types.FrameSubscribe, Destination: topic})
	}
	return nil
}

// Publish sends an envelope to a destination. While the channel is
// Connecting or Reconnecting the frame is queued and flushed on the
// next entry to Open; after Close it fails with ErrChannelClosed.
func (c *Channel) Publish(destination string, env types.Envelope) error {
	frame, err := types.NewSendFrame(destination, env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrChannelClosed
	case StateOpen:
		conn := c.conn
		c.mu.Unlock()
		return c.writeFrame(conn, frame)
	default:
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		return nil
	}
}

// Close transitions the channel to Closed and releases the transport
// resource. Idempotent. No subscription handler runs after Close has
// returned: the dispatch loop checks liveness before every invocation.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	fns := append([]StateFunc(nil), c.stateFns...)
	c.mu.Unlock()

	// Cancelling stops the reconnect timer; closing the socket unblocks
	// a blocked read.
	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	for _, fn := range fns {
		fn(StateClosed)
	}
	return nil
}

// run owns the connect/read/reconnect cycle. All handler dispatch
// happens on this goroutine, which is what guarantees arrival-order,
// non-concurrent handler execution.
func (c *Channel) run() {
	for {
		conn, err := c.dialOnce()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Debug("channel connect failed, retrying",
				zap.String("endpoint", c.endpoint),
				zap.Error(err))
			if !c.waitRetry() {
				return
			}
			continue
		}

		if !c.enterOpen(conn) {
			_ = conn.Close()
			return
		}
		c.readLoop(conn)
		_ = conn.Close()

		if c.ctx.Err() != nil || c.State() == StateClosed {
			return
		}
		c.transition(StateReconnecting)
		if !c.waitRetry() {
			return
		}
	}
}

// dialOnce establishes one physical connection and waits for the
// broker's handshake ack.
func (c *Channel) dialOnce() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(c.ctx, c.endpoint, nil)
	if err != nil {
		return nil, err
	}

	// The connection is not usable until the connected frame arrives.
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))
	var frame types.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	if frame.Kind != types.FrameConnected {
		_ = conn.Close()
		return nil, ErrInvalidEndpoint
	}
	return conn, nil
}

// enterOpen installs the new connection, re-applies subscriptions,
// notifies state observers, then flushes queued publishes. Observer
// callbacks run before the flush so a JOIN published from an observer
// precedes queued chat traffic. Returns false if the channel was
// closed while connecting.
func (c *Channel) enterOpen(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = StateOpen
	topics := append([]string(nil), c.topics...)
	fns := append([]StateFunc(nil), c.stateFns...)
	c.mu.Unlock()

	for _, topic := range topics {
		c.writeFrame(conn, types.Frame{Kind: types.FrameSubscribe, Destination: topic})
	}
	for _, fn := range fns {
		fn(StateOpen)
	}

	c.mu.Lock()
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, frame := range queued {
		c.writeFrame(conn, frame)
	}

	c.logger.Debug("channel open", zap.String("endpoint", c.endpoint))
	return true
}

// readLoop reads broadcast frames until the connection drops and
// dispatches envelopes to subscribed handlers in arrival order.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var frame types.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Kind != types.FrameMessage {
			continue
		}
		env, err := frame.DecodeEnvelope()
		if err != nil {
			c.logger.Warn("dropping malformed envelope", zap.Error(err))
			continue
		}
		c.dispatch(frame.Destination, env)
	}
}

// dispatch invokes the topic's handlers unless the channel has been
// closed in the meantime.
func (c *Channel) dispatch(topic string, env types.Envelope) {
	c.mu.RLock()
	if c.state == StateClosed {
		c.mu.RUnlock()
		return
	}
	fns := append([]Handler(nil), c.handlers[topic]...)
	c.mu.RUnlock()

	for _, fn := range fns {
		// Re-check liveness per handler so a Close between handlers
		// stops the remainder of the batch.
		if c.State() == StateClosed {
			return
		}
		fn(env)
	}
}

func (c *Channel) transition(s State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.conn = nil
	fns := append([]StateFunc(nil), c.stateFns...)
	c.mu.Unlock()

	c.logger.Debug("channel state", zap.Stringer("state", s))
	for _, fn := range fns {
		fn(s)
	}
}

// waitRetry sleeps the fixed reconnect interval, aborting on Close.
func (c *Channel) waitRetry() bool {
	timer := time.NewTimer(c.opts.ReconnectInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Channel) writeFrame(conn *websocket.Conn, frame types.Frame) error {
	if conn == nil {
		return ErrChannelClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		// The read loop will notice the broken connection and drive the
		// reconnect; publish failures stay silent per the transport
		// contract.
		c.logger.Debug("channel write failed", zap.Error(err))
		return nil
	}
	return nil
}
