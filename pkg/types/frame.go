package types

import "encoding/json"

// Destinations on the messaging endpoint. One shared broadcast topic
// for all participants; pairwise semantics are application-level
// filtering, not transport isolation.
const (
	TopicChat       = "/topic/chat"
	DestAddUser     = "/app/chat.addUser"
	DestSendMessage = "/app/chat.sendMessage"
)

// Frame kinds exchanged between a channel and the messaging endpoint.
const (
	// FrameConnected is the broker's handshake ack. A channel is not
	// Open until it has been received.
	FrameConnected = "connected"
	// FrameSubscribe registers interest in a topic on the current
	// physical connection. Subscriptions do not survive reconnects.
	FrameSubscribe = "subscribe"
	// FrameSend publishes an envelope to an application destination.
	FrameSend = "send"
	// FrameMessage carries a broadcast envelope to a subscriber.
	FrameMessage = "message"
)

// Frame is the wire unit on the WebSocket between a channel and the
// broker. Body holds an Envelope for send/message frames.
type Frame struct {
	Kind        string          `json:"kind"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// NewSendFrame builds a send frame carrying the envelope.
func NewSendFrame(destination string, env Envelope) (Frame, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: FrameSend, Destination: destination, Body: body}, nil
}

// NewMessageFrame builds a broadcast frame carrying the envelope.
func NewMessageFrame(destination string, env Envelope) (Frame, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: FrameMessage, Destination: destination, Body: body}, nil
}

// DecodeEnvelope unpacks the frame body.
func (f *Frame) DecodeEnvelope() (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(f.Body, &env)
	return env, err
}
