// Package identity resolves the authenticated principal into the
// session identity triple consumed by the transport, protocol and
// coordinator layers.
package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"counselchat/pkg/interfaces"
	"counselchat/pkg/types"
)

const upsertTimeout = 10 * time.Second

// Resolver turns identity-provider principals into SessionIdentity
// values and mirrors them into the directory store.
type Resolver struct {
	directory interfaces.DirectoryWriter
	logger    *zap.Logger

	mu     sync.Mutex
	synced map[string]struct{} // userIDs already upserted this process
}

// NewResolver creates a resolver backed by the given directory store.
// A nil logger is replaced with a no-op logger.
func NewResolver(directory interfaces.DirectoryWriter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		directory: directory,
		logger:    logger,
		synced:    make(map[string]struct{}),
	}
}

// Resolve validates the principal's attributes and returns the
// identity triple. On the first successful resolution for a user it
// triggers a fire-and-forget directory upsert; upsert failure never
// fails resolution.
func (r *Resolver) Resolve(ctx context.Context, principal types.Principal) (types.SessionIdentity, error) {
	userID := principal[types.AttrSub]
	name := principal[types.AttrName]
	if !types.IsValidUserID(userID) || name == "" {
		return types.SessionIdentity{}, ErrIdentityIncomplete
	}

	role, err := types.ParseRole(principal[types.AttrRole])
	if err != nil {
		return types.SessionIdentity{}, ErrIdentityIncomplete
	}

	identity := types.SessionIdentity{
		UserID:      userID,
		DisplayName: name,
		Role:        role,
	}

	r.syncDirectory(identity, principal)
	return identity, nil
}

// syncDirectory upserts the record once per user per process. The
// upsert is idempotent store-side, so re-running after a restart is
// harmless.
func (r *Resolver) syncDirectory(identity types.SessionIdentity, principal types.Principal) {
	r.mu.Lock()
	if _, done := r.synced[identity.UserID]; done {
		r.mu.Unlock()
		return
	}
	r.synced[identity.UserID] = struct{}{}
	r.mu.Unlock()

	record := &types.UserRecord{
		UUID:           identity.UserID,
		Email:          principal[types.AttrEmail],
		Name:           identity.DisplayName,
		Role:           identity.Role,
		Specialization: principal[types.AttrSpecialization],
	}

	// Detached from the caller's context: directory sync is best effort
	// and must not hold up session start.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
		defer cancel()

		if err := r.directory.SaveUser(ctx, record); err != nil {
			r.logger.Warn("directory sync failed",
				zap.String("userId", record.UUID),
				zap.Error(err))

			// Allow a retry on the next resolution.
			r.mu.Lock()
			delete(r.synced, identity.UserID)
			r.mu.Unlock()
		}
	}()
}
