// Package carriers translates between the core's canonical media
// representation (16 kHz 16-bit mono PCM frames) and the concrete carrier
// wire formats: the telephony PBX stream and the browser/test stream.
package carriers

import (
	"errors"

	"github.com/square-key-labs/voicecore-ai/src/frames"
)

// Type identifies the carrier wire format.
type Type string

const (
	Telephony Type = "telephony"
	Browser   Type = "browser"
)

// ErrCarrierProtocol marks unrecoverable wire-protocol violations; the call
// is terminated with status FAILED.
var ErrCarrierProtocol = errors.New("carriers: protocol error")

// Message is one websocket message on the carrier socket. Kind carries the
// websocket message type constant (TextMessage or BinaryMessage).
type Message struct {
	Kind int
	Data []byte
}

// Adapter converts wire messages to typed frames and back. Adapters hold
// per-connection state (stream/channel/call identifiers) and are owned by
// exactly one transport; they are not safe for concurrent use.
type Adapter interface {
	// Type returns the carrier wire format.
	Type() Type

	// OnConnect returns the frame to surface immediately after the socket is
	// established, or nil when the carrier announces itself in-band (the
	// telephony "answer" event).
	OnConnect() frames.Frame

	// Decode translates one inbound wire message. A nil frame with nil error
	// means the message was recognized and deliberately dropped.
	Decode(msg Message) (frames.Frame, error)

	// Encode wraps one outbound frame into zero or more wire messages.
	Encode(frame frames.Frame) ([]Message, error)

	// Dropped reports how many inbound frames were dropped as undecodable.
	Dropped() uint64
}
