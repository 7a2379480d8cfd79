package peer

import (
	"encoding/json"

	"github.com/Emmyhack/TFN/internal/media"
)

// Transport is the media-negotiation backend behind a Session. The
// production implementation wraps a pion PeerConnection; tests drive the
// session state machine with an in-memory fake.
type Transport interface {
	// Initiate creates and applies a local offer. Only the initiating
	// side of a session calls it.
	Initiate() error

	// HandleSignal applies an inbound negotiation payload (offer,
	// answer, or ICE candidate).
	HandleSignal(signal json.RawMessage) error

	// AttachLocalStream adds or replaces the outbound tracks.
	AttachLocalStream(s *media.Stream) error

	// ReplaceVideoTrack swaps the outbound video track without
	// renegotiation.
	ReplaceVideoTrack(t *media.Track) error

	// SendControl delivers an encoded control message to the remote
	// side over the session's data channel.
	SendControl(data []byte) error

	// Close releases transport resources.
	Close() error
}

// Events is implemented by the Session to observe transport callbacks.
type Events interface {
	// OutboundSignal emits a local negotiation payload that must be
	// relayed to the remote participant.
	OutboundSignal(signal json.RawMessage)

	// Connected fires once the media connection is established. The
	// remote stream handle may carry no tracks yet.
	Connected(remote *media.Stream)

	// Control delivers an encoded control message from the remote side.
	Control(data []byte)

	// Disconnected fires when the transport ends. A nil error is an
	// orderly close; a non-nil error is a negotiation or ICE failure.
	Disconnected(err error)
}

// TransportFactory builds the transport for a new session, wiring its
// callbacks to the given event sink.
type TransportFactory func(events Events) (Transport, error)
