package scenarios

import (
	"context"
	"testing"
	"time"

	"counselchat/internal/coordinator"
	"counselchat/pkg/types"
	"counselchat/tests/fixtures"
)

// TestBookingFlowEndToEnd walks the whole happy path against the
// in-process daemon: directory sync, booking request, acceptance, a
// chat exchange, and the confirmed appointment visible to both sides.
func TestBookingFlowEndToEnd(t *testing.T) {
	h := fixtures.StartHarness(t)
	ctx := context.Background()

	counsellor := h.Join(t, fixtures.CounsellorPrincipal("k1", "Dr. Rivers", "Anxiety"))
	customer := h.Join(t, fixtures.CustomerPrincipal("c1", "Alice"))

	// Directory sync runs in the background after resolution.
	var listed []types.Counsellor
	fixtures.WaitFor(t, 2*time.Second, func() bool {
		counsellors, err := h.StoreClient.ListCounsellors(ctx)
		if err != nil {
			return false
		}
		listed = counsellors
		return len(counsellors) == 1
	}, "counsellor to appear in the directory")
	if listed[0].UUID != "k1" || listed[0].Specialization != "Anxiety" {
		t.Fatalf("unexpected directory entry %+v", listed[0])
	}

	if err := customer.Coordinator.Request(ctx, listed[0]); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if got := customer.Coordinator.State(); got != coordinator.StateRequested {
		t.Fatalf("customer state = %v, want Requested", got)
	}

	// The counsellor discovers the request by polling.
	poller := coordinator.NewPoller(h.StoreClient, coordinator.DefaultPollInterval, nil)
	if err := poller.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	pending := poller.Pending()
	if len(pending) != 1 || pending[0].SenderID != "c1" {
		t.Fatalf("pending = %+v, want one request from c1", pending)
	}

	if err := counsellor.Coordinator.Accept(pending[0]); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := counsellor.Coordinator.State(); got != coordinator.StateActive {
		t.Fatalf("counsellor state = %v, want Active", got)
	}

	// Both already announced themselves on connect.
	customer.WaitForJoin(t, "Dr. Rivers")
	counsellor.WaitForJoin(t, "Alice")

	if err := customer.Session.Send("hi"); err != nil {
		t.Fatalf("customer send: %v", err)
	}
	counsellor.WaitForChat(t, "Alice", "hi")
	// Self-echo: the sender sees their own chat via the broadcast too.
	customer.WaitForChat(t, "Alice", "hi")

	if err := counsellor.Session.Send("hello, how can I help?"); err != nil {
		t.Fatalf("counsellor send: %v", err)
	}
	customer.WaitForChat(t, "Dr. Rivers", "hello, how can I help?")

	if err := counsellor.Coordinator.Schedule(ctx, "2025-06-01", "10:00"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := counsellor.Coordinator.State(); got != coordinator.StateScheduled {
		t.Fatalf("counsellor state = %v, want Scheduled", got)
	}

	// The request is confirmed and gone from the pending view.
	if err := poller.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if remaining := poller.Pending(); len(remaining) != 0 {
		t.Fatalf("pending after confirmation = %+v", remaining)
	}

	forCounsellor, err := h.StoreClient.ListCounsellorAppointments(ctx, "k1")
	if err != nil {
		t.Fatalf("counsellor appointments: %v", err)
	}
	forCustomer, err := h.StoreClient.ListCustomerAppointments(ctx, "c1")
	if err != nil {
		t.Fatalf("customer appointments: %v", err)
	}
	if len(forCounsellor) != 1 || len(forCustomer) != 1 {
		t.Fatalf("appointment views = %d/%d, want 1/1", len(forCounsellor), len(forCustomer))
	}
	appt := forCustomer[0]
	if appt.SessionDate != "2025-06-01" || appt.SessionTime != "10:00" {
		t.Errorf("slot = %s %s, want 2025-06-01 10:00", appt.SessionDate, appt.SessionTime)
	}
	if appt.CustomerName != "Alice" || appt.CounsellorName != "Dr. Rivers" {
		t.Errorf("parties = %q/%q", appt.CustomerName, appt.CounsellorName)
	}
	if appt.Session != "Anxiety" {
		t.Errorf("session = %q, want Anxiety", appt.Session)
	}
}

// TestScheduleWithoutActiveSessionFails covers the guard: a counsellor
// cannot create an appointment before accepting a request.
func TestScheduleWithoutActiveSessionFails(t *testing.T) {
	h := fixtures.StartHarness(t)
	counsellor := h.Join(t, fixtures.CounsellorPrincipal("k1", "Dr. Rivers", "Anxiety"))

	err := counsellor.Coordinator.Schedule(context.Background(), "2025-06-01", "10:00")
	if err == nil {
		t.Fatal("expected schedule to fail without an active session")
	}

	appts, err := h.StoreClient.ListCounsellorAppointments(context.Background(), "k1")
	if err != nil {
		t.Fatalf("list appointments: %v", err)
	}
	if len(appts) != 0 {
		t.Fatalf("no appointment should exist, got %+v", appts)
	}
}

// TestDuplicateRequestRejected covers the one-pending-request guard on
// the customer side against the live store.
func TestDuplicateRequestRejected(t *testing.T) {
	h := fixtures.StartHarness(t)
	ctx := context.Background()

	h.Join(t, fixtures.CounsellorPrincipal("k1", "Dr. Rivers", "Anxiety"))
	customer := h.Join(t, fixtures.CustomerPrincipal("c1", "Alice"))

	var listed []types.Counsellor
	fixtures.WaitFor(t, 2*time.Second, func() bool {
		counsellors, err := h.StoreClient.ListCounsellors(ctx)
		if err != nil {
			return false
		}
		listed = counsellors
		return len(counsellors) == 1
	}, "counsellor to appear in the directory")

	if err := customer.Coordinator.Request(ctx, listed[0]); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := customer.Coordinator.Request(ctx, listed[0]); err != coordinator.ErrAlreadyRequested {
		t.Fatalf("second request = %v, want ErrAlreadyRequested", err)
	}

	requests, err := h.StoreClient.ListRequests(ctx)
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("store has %d requests, want 1", len(requests))
	}
}
