package types

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Role
		wantErr error
	}{
		{name: "customer", raw: "customer", want: RoleCustomer},
		{name: "counsellor", raw: "counsellor", want: RoleCounsellor},
		{name: "empty", raw: "", wantErr: ErrInvalidRole},
		{name: "unknown", raw: "admin", wantErr: ErrInvalidRole},
		{name: "wrong case", raw: "Customer", wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRole(tt.raw)
			if err != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr error
	}{
		{
			name: "valid chat",
			env:  Envelope{Sender: "Alice", Content: "hi", Type: EnvelopeChat},
		},
		{
			name: "join without content",
			env:  Envelope{Sender: "Alice", Type: EnvelopeJoin},
		},
		{
			name: "leave without content",
			env:  Envelope{Sender: "Alice", Type: EnvelopeLeave},
		},
		{
			name:    "unknown type",
			env:     Envelope{Sender: "Alice", Type: "PING"},
			wantErr: ErrInvalidEnvelopeType,
		},
		{
			name:    "missing sender",
			env:     Envelope{Type: EnvelopeChat, Content: "hi"},
			wantErr: ErrMissingSender,
		},
		{
			name:    "chat with empty content",
			env:     Envelope{Sender: "Alice", Type: EnvelopeChat},
			wantErr: ErrMissingContent,
		},
		{
			name:    "chat with whitespace content",
			env:     Envelope{Sender: "Alice", Content: "   ", Type: EnvelopeChat},
			wantErr: ErrMissingContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.env.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelope_WireFormat(t *testing.T) {
	// Wire shape must stay {sender, content, type} with content omitted
	// for presence envelopes.
	join := Envelope{Sender: "Alice", Type: EnvelopeJoin}
	data, err := json.Marshal(join)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"sender":"Alice","type":"JOIN"}` {
		t.Errorf("unexpected JOIN wire form: %s", data)
	}

	chat := Envelope{Sender: "Alice", Content: "hi", Type: EnvelopeChat}
	data, err = json.Marshal(chat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"sender":"Alice","content":"hi","type":"CHAT"}` {
		t.Errorf("unexpected CHAT wire form: %s", data)
	}
}

func TestIsValidUserID(t *testing.T) {
	valid := []string{"c1", "550e8400-e29b-41d4-a716-446655440000", "user_1"}
	for _, id := range valid {
		if !IsValidUserID(id) {
			t.Errorf("IsValidUserID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "user with spaces", "user/../../etc", string(make([]byte, 65))}
	for _, id := range invalid {
		if IsValidUserID(id) {
			t.Errorf("IsValidUserID(%q) = true, want false", id)
		}
	}
}

func TestBookingRequest_Validate(t *testing.T) {
	req := BookingRequest{SenderID: "c1", ReceiverID: "k1", CustomerName: "Alice", Session: "Anxiety"}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	for _, broken := range []BookingRequest{
		{ReceiverID: "k1", CustomerName: "Alice"},
		{SenderID: "c1", CustomerName: "Alice"},
		{SenderID: "c1", ReceiverID: "k1"},
	} {
		if err := broken.Validate(); err != ErrIncompleteRequest {
			t.Errorf("Validate(%+v) error = %v, want ErrIncompleteRequest", broken, err)
		}
	}
}

func TestAppointment_Validate(t *testing.T) {
	appt := Appointment{
		CustomerID:   "c1",
		CounsellorID: "k1",
		SessionDate:  "2025-06-01",
		SessionTime:  "10:00",
	}
	if err := appt.Validate(); err != nil {
		t.Errorf("valid appointment rejected: %v", err)
	}

	appt.SessionTime = ""
	if err := appt.Validate(); err != ErrIncompleteSchedule {
		t.Errorf("Validate() error = %v, want ErrIncompleteSchedule", err)
	}
}
