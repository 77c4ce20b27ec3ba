// Package broker implements the messaging endpoint the channel
// transport connects to: a single shared broadcast topic with
// per-connection subscriptions and JOIN/LEAVE presence envelopes.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"counselchat/pkg/types"
)

const (
	sendQueueSize = 100
	writeTimeout  = 5 * time.Second
)

// Conn wraps one client WebSocket. All writes go through a single
// writer goroutine; WebSocket writes must never run concurrently.
type Conn struct {
	ws       *websocket.Conn
	username string

	sendCh    chan types.Frame
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// Owned by the hub goroutine; never touched elsewhere.
	subscriptions map[string]bool
	joinedAs      string // display name from the last JOIN, "" if none
}

func newConn(ws *websocket.Conn, username string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:            ws,
		username:      username,
		sendCh:        make(chan types.Frame, sendQueueSize),
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[string]bool),
	}
	go c.writeLoop()
	return c
}

// Username returns the connection-scoped principal from the query
// parameter.
func (c *Conn) Username() string {
	return c.username
}

func (c *Conn) writeLoop() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// enqueue hands a frame to the writer goroutine. Slow consumers drop
// rather than stall the hub; delivery is best effort.
func (c *Conn) enqueue(frame types.Frame) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	select {
	case c.sendCh <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close tears the connection down. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.ws.Close()
	})
	return err
}
