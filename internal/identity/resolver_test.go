package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"counselchat/pkg/types"
)

type fakeDirectory struct {
	mu      sync.Mutex
	records []*types.UserRecord
	err     error
}

func (f *fakeDirectory) SaveUser(ctx context.Context, record *types.UserRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDirectory) saved() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func customerPrincipal() types.Principal {
	return types.Principal{
		types.AttrSub:   "c1",
		types.AttrEmail: "alice@example.com",
		types.AttrName:  "Alice",
		types.AttrRole:  "customer",
	}
}

func TestResolver_Resolve(t *testing.T) {
	dir := &fakeDirectory{}
	resolver := NewResolver(dir, nil)

	identity, err := resolver.Resolve(context.Background(), customerPrincipal())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.UserID != "c1" || identity.DisplayName != "Alice" || identity.Role != types.RoleCustomer {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestResolver_Resolve_IncompletePrincipals(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{}, nil)

	tests := []struct {
		name      string
		principal types.Principal
	}{
		{"missing role", types.Principal{types.AttrSub: "c1", types.AttrName: "Alice"}},
		{"unknown role", types.Principal{types.AttrSub: "c1", types.AttrName: "Alice", types.AttrRole: "admin"}},
		{"missing sub", types.Principal{types.AttrName: "Alice", types.AttrRole: "customer"}},
		{"missing name", types.Principal{types.AttrSub: "c1", types.AttrRole: "customer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolver.Resolve(context.Background(), tt.principal); !errors.Is(err, ErrIdentityIncomplete) {
				t.Errorf("Resolve error = %v, want ErrIdentityIncomplete", err)
			}
		})
	}
}

func TestResolver_DirectorySyncOncePerUser(t *testing.T) {
	dir := &fakeDirectory{}
	resolver := NewResolver(dir, nil)

	for i := 0; i < 3; i++ {
		if _, err := resolver.Resolve(context.Background(), customerPrincipal()); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}

	waitFor(t, func() bool { return dir.saved() == 1 })
	// Give any stray duplicate upserts a chance to land.
	time.Sleep(20 * time.Millisecond)
	if got := dir.saved(); got != 1 {
		t.Errorf("directory received %d upserts, want 1", got)
	}
}

func TestResolver_SyncFailureDoesNotFailResolution(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("store down")}
	resolver := NewResolver(dir, nil)

	identity, err := resolver.Resolve(context.Background(), customerPrincipal())
	if err != nil {
		t.Fatalf("Resolve should succeed despite sync failure, got %v", err)
	}
	if identity.UserID != "c1" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestResolver_SyncRetriedAfterFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("store down")}
	resolver := NewResolver(dir, nil)

	if _, err := resolver.Resolve(context.Background(), customerPrincipal()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Wait for the failed upsert to clear the synced mark.
	time.Sleep(20 * time.Millisecond)

	dir.mu.Lock()
	dir.err = nil
	dir.mu.Unlock()

	if _, err := resolver.Resolve(context.Background(), customerPrincipal()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	waitFor(t, func() bool { return dir.saved() == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
