// Package fixtures provides the in-process daemon harness and
// participant helpers the scenario tests build on.
package fixtures

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"counselchat/internal/broker"
	"counselchat/internal/store"
	"counselchat/internal/storeserver"
)

// Harness runs the full daemon surface in-process: the SQLite store,
// the chat hub, and both mounted on one httptest server.
type Harness struct {
	Server      *httptest.Server
	Store       *storeserver.Store
	Hub         *broker.Hub
	StoreClient *store.Client
}

// StartHarness boots the daemon components against a temporary
// database and registers cleanup with t.
func StartHarness(t *testing.T) *Harness {
	t.Helper()

	st, err := storeserver.Open(filepath.Join(t.TempDir(), "counselchat.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := broker.NewHub(nil)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("start hub: %v", err)
	}
	t.Cleanup(func() { _ = hub.Stop() })

	router := mux.NewRouter()
	storeserver.NewServer(st, nil).Register(router)
	router.HandleFunc("/ws", broker.NewHandler(hub, nil).ServeWS)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &Harness{
		Server:      server,
		Store:       st,
		Hub:         hub,
		StoreClient: store.NewClient(server.URL, nil),
	}
}

// BaseURL is the HTTP base serving both the REST surface and /ws.
func (h *Harness) BaseURL() string {
	return h.Server.URL
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
