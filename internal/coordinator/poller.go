package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"counselchat/pkg/interfaces"
	"counselchat/pkg/types"
)

// DefaultPollInterval matches the dashboard's fixed 5s list refresh.
const DefaultPollInterval = 5 * time.Second

// Poller keeps a periodically refreshed view of PENDING booking
// requests. The view is only ever as fresh as the last poll: a request
// confirmed elsewhere can still appear PENDING until the next tick,
// and consumers must tolerate that staleness.
type Poller struct {
	store    interfaces.BookingStore
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	pending []types.BookingRequest
}

// NewPoller creates a poller with the given refresh interval;
// intervals <= 0 fall back to DefaultPollInterval.
func NewPoller(store interfaces.BookingStore, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{store: store, interval: interval, logger: logger}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("request poll failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn("request poll failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches the request list once and replaces the pending view
// with the PENDING subset. Idempotent; a failed fetch leaves the
// previous view in place.
func (p *Poller) Refresh(ctx context.Context) error {
	requests, err := p.store.ListRequests(ctx)
	if err != nil {
		return err
	}

	pending := make([]types.BookingRequest, 0, len(requests))
	for _, req := range requests {
		if req.BookingStatus == types.BookingPending {
			pending = append(pending, req)
		}
	}

	p.mu.Lock()
	p.pending = pending
	p.mu.Unlock()
	return nil
}

// Pending returns the last polled PENDING requests.
func (p *Poller) Pending() []types.BookingRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.BookingRequest(nil), p.pending...)
}
