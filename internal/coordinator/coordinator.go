// Package coordinator drives the request → accept → schedule → confirm
// state machine for one customer/counsellor pair, bridging the
// real-time session with the booking store.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"counselchat/pkg/interfaces"
	"counselchat/pkg/types"
)

// PairState is the booking state for one customer/counsellor pair.
type PairState int

const (
	StateNoRequest PairState = iota
	StateRequested
	StateActive
	StateScheduled
)

func (s PairState) String() string {
	switch s {
	case StateNoRequest:
		return "no-request"
	case StateRequested:
		return "requested"
	case StateActive:
		return "active"
	case StateScheduled:
		return "scheduled"
	}
	return "unknown"
}

// Pair addresses the two parties in chat-session order: SenderID is
// whoever opened the session, ReceiverID the peer. The status-update
// call is keyed by this order, not by the original request's field
// order.
type Pair struct {
	SenderID   string
	ReceiverID string
}

// Coordinator manages booking state for one identity against one peer
// pair at a time.
type Coordinator struct {
	store    interfaces.BookingStore
	identity types.SessionIdentity
	logger   *zap.Logger

	mu         sync.Mutex
	state      PairState
	pair       Pair
	request    types.BookingRequest // context from Accept, counsellor side
	requesting bool                 // a SendRequest is in flight
}

// New creates a coordinator for the resolved identity. A nil logger is
// replaced with a no-op logger.
func New(store interfaces.BookingStore, identity types.SessionIdentity, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:    store,
		identity: identity,
		logger:   logger,
		state:    StateNoRequest,
	}
}

// State returns the current pair state.
func (c *Coordinator) State() PairState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pair returns the session-order pair; zero until Request or Accept.
func (c *Coordinator) Pair() Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair
}

// Request raises a PENDING booking request against the counsellor.
// Customer side only; no channel interaction happens yet.
func (c *Coordinator) Request(ctx context.Context, counsellor types.Counsellor) error {
	if c.identity.Role != types.RoleCustomer {
		return ErrNotCustomer
	}

	// Claim the in-flight slot before the store call so a concurrent
	// Request cannot pass the guard and create a duplicate.
	c.mu.Lock()
	if c.state != StateNoRequest || c.requesting {
		c.mu.Unlock()
		return ErrAlreadyRequested
	}
	c.requesting = true
	c.mu.Unlock()

	req := &types.BookingRequest{
		SenderID:     c.identity.UserID,
		ReceiverID:   counsellor.UUID,
		CustomerName: c.identity.DisplayName,
		Session:      counsellor.Specialization,
	}
	err := c.store.SendRequest(ctx, req)

	c.mu.Lock()
	c.requesting = false
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("booking request: %w", err)
	}
	c.state = StateRequested
	c.pair = Pair{SenderID: c.identity.UserID, ReceiverID: counsellor.UUID}
	c.mu.Unlock()

	c.logger.Info("booking requested",
		zap.String("customerId", c.identity.UserID),
		zap.String("counsellorId", counsellor.UUID))
	return nil
}

// Accept takes a pending request and makes the pair Active. Counsellor
// side only. The pair is recorded in chat-session order: the accepting
// counsellor is the sender, the requesting customer the receiver. The
// caller opens the channel keyed by its own identity.
func (c *Coordinator) Accept(request types.BookingRequest) error {
	if c.identity.Role != types.RoleCounsellor {
		return ErrNotCounsellor
	}
	if err := request.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateActive
	c.pair = Pair{SenderID: c.identity.UserID, ReceiverID: request.SenderID}
	c.request = request

	c.logger.Info("booking request accepted",
		zap.String("requestId", request.ID),
		zap.String("customerId", request.SenderID))
	return nil
}

// Schedule submits the appointment for the Active pair and, on
// success, immediately flips the originating request to CONFIRMED
// using the session-order pair. A failed appointment write aborts
// before the status update: the request stays PENDING and the pair
// stays Active.
func (c *Coordinator) Schedule(ctx context.Context, date, timeOfDay string) error {
	if c.identity.Role != types.RoleCounsellor {
		return ErrNotCounsellor
	}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	pair := c.pair
	request := c.request
	c.mu.Unlock()

	appt := &types.Appointment{
		CustomerID:     pair.ReceiverID,
		CustomerName:   request.CustomerName,
		CounsellorID:   c.identity.UserID,
		CounsellorName: c.identity.DisplayName,
		SessionDate:    date,
		SessionTime:    timeOfDay,
		Session:        request.Session,
	}
	if err := c.store.CreateAppointment(ctx, appt); err != nil {
		// No rollback and no speculative confirm; the pair remains
		// Active for a retry.
		return fmt.Errorf("booking: %w", err)
	}

	c.mu.Lock()
	c.state = StateScheduled
	c.mu.Unlock()

	if err := c.store.UpdateBookingStatus(ctx, pair.SenderID, pair.ReceiverID); err != nil {
		// The appointment is persisted; only the status flip is
		// outstanding. Surface it so the caller can retry the update.
		c.logger.Warn("appointment stored but status update failed",
			zap.String("senderId", pair.SenderID),
			zap.String("receiverId", pair.ReceiverID),
			zap.Error(err))
		return fmt.Errorf("booking status update: %w", err)
	}

	c.logger.Info("booking scheduled",
		zap.String("customerId", pair.ReceiverID),
		zap.String("date", date),
		zap.String("time", timeOfDay))
	return nil
}
