package fixtures

import (
	"context"
	"testing"
	"time"

	"counselchat/internal/coordinator"
	"counselchat/internal/identity"
	"counselchat/internal/protocol"
	"counselchat/internal/transport"
	"counselchat/pkg/types"
)

// Participant is one connected user: a resolved identity, a live chat
// session, and a booking coordinator sharing the harness store.
type Participant struct {
	Identity    types.SessionIdentity
	Channel     *transport.Channel
	Session     *protocol.Session
	Coordinator *coordinator.Coordinator
}

// CustomerPrincipal builds the attribute bag a signed-in customer
// carries.
func CustomerPrincipal(userID, name string) types.Principal {
	return types.Principal{
		types.AttrSub:   userID,
		types.AttrName:  name,
		types.AttrEmail: name + "@example.com",
		types.AttrRole:  string(types.RoleCustomer),
	}
}

// CounsellorPrincipal builds the attribute bag a signed-in counsellor
// carries.
func CounsellorPrincipal(userID, name, specialization string) types.Principal {
	return types.Principal{
		types.AttrSub:            userID,
		types.AttrName:           name,
		types.AttrEmail:          name + "@example.com",
		types.AttrRole:           string(types.RoleCounsellor),
		types.AttrSpecialization: specialization,
	}
}

// Join resolves the principal against the harness store, dials the chat
// endpoint, and starts the session. The fast reconnect interval keeps
// reconnect scenarios quick.
func (h *Harness) Join(t *testing.T, principal types.Principal) *Participant {
	t.Helper()

	resolver := identity.NewResolver(h.StoreClient, nil)
	who, err := resolver.Resolve(context.Background(), principal)
	if err != nil {
		t.Fatalf("resolve identity: %v", err)
	}

	endpoint, err := transport.Endpoint(h.BaseURL(), who.UserID)
	if err != nil {
		t.Fatalf("broker endpoint: %v", err)
	}
	channel := transport.Dial(endpoint, transport.Options{ReconnectInterval: 25 * time.Millisecond})
	t.Cleanup(func() { _ = channel.Close() })

	session := protocol.NewSession(who, channel, nil)
	if err := session.Start(); err != nil {
		t.Fatalf("start session: %v", err)
	}

	p := &Participant{
		Identity:    who,
		Channel:     channel,
		Session:     session,
		Coordinator: coordinator.New(h.StoreClient, who, nil),
	}
	p.WaitOpen(t)
	return p
}

// WaitOpen blocks until the channel has completed its handshake.
func (p *Participant) WaitOpen(t *testing.T) {
	t.Helper()
	WaitFor(t, 2*time.Second, func() bool {
		return p.Channel.State() == transport.StateOpen
	}, p.Identity.DisplayName+" channel open")
}

// WaitForEnvelope blocks until the session log contains an envelope
// matching the predicate and returns it.
func (p *Participant) WaitForEnvelope(t *testing.T, what string, match func(types.Envelope) bool) types.Envelope {
	t.Helper()
	var found types.Envelope
	WaitFor(t, 2*time.Second, func() bool {
		for _, env := range p.Session.Messages() {
			if match(env) {
				found = env
				return true
			}
		}
		return false
	}, p.Identity.DisplayName+" to see "+what)
	return found
}

// WaitForChat blocks until a CHAT envelope with the given sender and
// content arrives.
func (p *Participant) WaitForChat(t *testing.T, sender, content string) types.Envelope {
	t.Helper()
	return p.WaitForEnvelope(t, "chat "+content, func(env types.Envelope) bool {
		return env.Type == types.EnvelopeChat && env.Sender == sender && env.Content == content
	})
}

// WaitForJoin blocks until a JOIN envelope from sender arrives.
func (p *Participant) WaitForJoin(t *testing.T, sender string) {
	t.Helper()
	p.WaitForEnvelope(t, "join of "+sender, func(env types.Envelope) bool {
		return env.Type == types.EnvelopeJoin && env.Sender == sender
	})
}

// WaitForLeave blocks until a LEAVE envelope from sender arrives.
func (p *Participant) WaitForLeave(t *testing.T, sender string) {
	t.Helper()
	p.WaitForEnvelope(t, "leave of "+sender, func(env types.Envelope) bool {
		return env.Type == types.EnvelopeLeave && env.Sender == sender
	})
}
