package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"counselchat/pkg/types"
)

// Hub routes frames between connections. A single goroutine processes
// registration, deregistration and every inbound frame, which gives
// all subscribers one consistent broadcast order.
type Hub struct {
	logger *zap.Logger

	registerCh   chan *Conn
	unregisterCh chan *Conn
	frameCh      chan inbound
	shutdownCh   chan struct{}

	mu      sync.RWMutex
	running bool

	// Hub goroutine state.
	conns map[*Conn]struct{}
}

type inbound struct {
	conn  *Conn
	frame types.Frame
}

// NewHub creates a hub. A nil logger is replaced with a no-op logger.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:       logger,
		registerCh:   make(chan *Conn, 100),
		unregisterCh: make(chan *Conn, 100),
		frameCh:      make(chan inbound, 1000),
		shutdownCh:   make(chan struct{}),
		conns:        make(map[*Conn]struct{}),
	}
}

// Start launches the hub goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	go h.run(ctx)
	return nil
}

// Stop shuts the hub goroutine down and closes every connection.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// Register queues a connection for tracking.
func (h *Hub) Register(conn *Conn) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.registerCh <- conn
	return nil
}

// Unregister queues removal of a connection. The hub broadcasts a
// LEAVE envelope for connections that had announced a JOIN.
func (h *Hub) Unregister(conn *Conn) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return
	}
	h.unregisterCh <- conn
}

// Dispatch queues an inbound frame for routing.
func (h *Hub) Dispatch(conn *Conn, frame types.Frame) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.frameCh <- inbound{conn: conn, frame: frame}
	return nil
}

func (h *Hub) run(ctx context.Context) {
	h.logger.Info("broker hub started")
	defer h.logger.Info("broker hub stopped")

	for {
		select {
		case conn := <-h.registerCh:
			h.conns[conn] = struct{}{}
			h.logger.Debug("connection registered", zap.String("username", conn.Username()))

		case conn := <-h.unregisterCh:
			h.drop(conn)

		case in := <-h.frameCh:
			h.route(in.conn, in.frame)

		case <-h.shutdownCh:
			h.closeAll()
			return
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// route handles one frame on the hub goroutine.
func (h *Hub) route(conn *Conn, frame types.Frame) {
	switch frame.Kind {
	case types.FrameSubscribe:
		conn.subscriptions[frame.Destination] = true

	case types.FrameSend:
		env, err := frame.DecodeEnvelope()
		if err != nil {
			h.logger.Warn("dropping malformed send frame",
				zap.String("username", conn.Username()),
				zap.Error(err))
			return
		}
		switch frame.Destination {
		case types.DestAddUser:
			// Presence announcement; remembered so the departure can
			// be broadcast on disconnect.
			conn.joinedAs = env.Sender
			h.broadcast(types.TopicChat, env)
		case types.DestSendMessage:
			h.broadcast(types.TopicChat, env)
		default:
			h.logger.Debug("ignoring unknown destination",
				zap.String("destination", frame.Destination))
		}
	}
}

// broadcast fans an envelope out to every subscribed connection.
func (h *Hub) broadcast(topic string, env types.Envelope) {
	frame, err := types.NewMessageFrame(topic, env)
	if err != nil {
		h.logger.Warn("encoding broadcast failed", zap.Error(err))
		return
	}
	for conn := range h.conns {
		if !conn.subscriptions[topic] {
			continue
		}
		if err := conn.enqueue(frame); err != nil {
			h.logger.Warn("dropping frame for slow connection",
				zap.String("username", conn.Username()),
				zap.Error(err))
		}
	}
}

// drop removes the connection and announces the departure.
func (h *Hub) drop(conn *Conn) {
	if _, tracked := h.conns[conn]; !tracked {
		return
	}
	delete(h.conns, conn)
	_ = conn.Close()

	if conn.joinedAs == "" {
		return
	}
	h.broadcast(types.TopicChat, types.Envelope{Sender: conn.joinedAs, Type: types.EnvelopeLeave})
	h.logger.Debug("broadcast leave", zap.String("sender", conn.joinedAs))
}

func (h *Hub) closeAll() {
	for conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = make(map[*Conn]struct{})
}
