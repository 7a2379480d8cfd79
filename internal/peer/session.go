package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Emmyhack/TFN/internal/media"
)

// SessionState is the negotiation lifecycle of one peer session.
type SessionState int

const (
	StateNew SessionState = iota
	StateNegotiating
	StateConnected
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callbacks observe session lifecycle events. All callbacks are optional
// and are invoked from transport goroutines.
type Callbacks struct {
	// OnSignal emits an outbound negotiation payload addressed to the
	// session's remote participant.
	OnSignal func(remoteID string, signal json.RawMessage)

	// OnConnected fires once, when the session reaches connected, with
	// the remote media stream handle.
	OnConnected func(remoteID string, remote *media.Stream)

	// OnControl delivers a decoded control message from the remote side.
	OnControl func(remoteID string, msg *ControlMessage)

	// OnClosed fires once, when the session reaches closed.
	OnClosed func(remoteID string)

	// OnFailed fires once, when negotiation or ICE fails. Failed is
	// terminal; the session is discarded, not retried.
	OnFailed func(remoteID string, err error)
}

// Session is one negotiated media connection between the local client and
// exactly one remote participant. The side that observes a user-joined
// event initiates; the joiner responds.
type Session struct {
	remoteID  string
	initiator bool
	callbacks Callbacks
	transport Transport

	mu    sync.Mutex
	state SessionState
}

// NewSession builds a session and its transport. The session starts in
// state new and owns the transport until Close.
func NewSession(remoteID string, initiator bool, factory TransportFactory, callbacks Callbacks) (*Session, error) {
	s := &Session{
		remoteID:  remoteID,
		initiator: initiator,
		callbacks: callbacks,
		state:     StateNew,
	}

	transport, err := factory(s)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	s.transport = transport
	return s, nil
}

// RemoteID returns the remote participant id this session connects to.
func (s *Session) RemoteID() string {
	return s.remoteID
}

// Initiator reports whether the local side drives the offer.
func (s *Session) Initiator() bool {
	return s.initiator
}

// State returns the current negotiation state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Live reports whether the session is in a non-terminal state.
func (s *Session) Live() bool {
	st := s.State()
	return st != StateClosed && st != StateFailed
}

// Initiate starts negotiation. Valid only from state new, and only on the
// initiating side.
func (s *Session) Initiate() error {
	s.mu.Lock()
	if !s.initiator {
		s.mu.Unlock()
		return fmt.Errorf("initiate: session with %s is the responding side", s.remoteID)
	}
	if s.state != StateNew {
		s.mu.Unlock()
		return fmt.Errorf("initiate: session with %s is %s, want new", s.remoteID, s.state)
	}
	s.state = StateNegotiating
	s.mu.Unlock()

	return s.transport.Initiate()
}

// Signal feeds an inbound negotiation payload into the session. Valid in
// new and negotiating; payloads arriving in any later state are ignored
// with a logged warning, since they can only be stale.
func (s *Session) Signal(signal json.RawMessage) error {
	s.mu.Lock()
	switch s.state {
	case StateNew:
		s.state = StateNegotiating
	case StateNegotiating:
	default:
		state := s.state
		s.mu.Unlock()
		slog.Warn("ignoring signal for settled session", "remote", s.remoteID, "state", state.String())
		return nil
	}
	s.mu.Unlock()

	return s.transport.HandleSignal(signal)
}

// AttachLocalStream sets or replaces the outbound tracks. Valid any time
// before the session settles.
func (s *Session) AttachLocalStream(stream *media.Stream) error {
	if !s.Live() {
		return fmt.Errorf("attach stream: session with %s is %s", s.remoteID, s.State())
	}
	return s.transport.AttachLocalStream(stream)
}

// ReplaceVideoTrack swaps the outbound video track, for screen share.
func (s *Session) ReplaceVideoTrack(t *media.Track) error {
	if !s.Live() {
		return fmt.Errorf("replace track: session with %s is %s", s.remoteID, s.State())
	}
	return s.transport.ReplaceVideoTrack(t)
}

// SendSpeaking reports local speaking activity to the remote side over the
// session's control channel. Best-effort; errors before the control
// channel opens are swallowed.
func (s *Session) SendSpeaking(speaking bool) {
	if s.State() != StateConnected {
		return
	}
	data, err := EncodeControl(ControlTypeSpeaking, SpeakingPayload{Speaking: speaking})
	if err != nil {
		return
	}
	if err := s.transport.SendControl(data); err != nil {
		slog.Debug("control send failed", "remote", s.remoteID, "err", err)
	}
}

// Close tears down the session. Idempotent and valid in every state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.transport.Close()
	if s.callbacks.OnClosed != nil {
		s.callbacks.OnClosed(s.remoteID)
	}
}

// OutboundSignal implements Events.
func (s *Session) OutboundSignal(signal json.RawMessage) {
	if s.callbacks.OnSignal != nil {
		s.callbacks.OnSignal(s.remoteID, signal)
	}
}

// Connected implements Events.
func (s *Session) Connected(remote *media.Stream) {
	s.mu.Lock()
	if s.state != StateNegotiating {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.mu.Unlock()

	if s.callbacks.OnConnected != nil {
		s.callbacks.OnConnected(s.remoteID, remote)
	}
}

// Control implements Events.
func (s *Session) Control(data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		slog.Warn("malformed control message", "remote", s.remoteID, "err", err)
		return
	}
	if s.callbacks.OnControl != nil {
		s.callbacks.OnControl(s.remoteID, msg)
	}
}

// Disconnected implements Events.
func (s *Session) Disconnected(err error) {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateClosed
	}
	state := s.state
	s.mu.Unlock()

	s.transport.Close()

	if state == StateFailed {
		if s.callbacks.OnFailed != nil {
			s.callbacks.OnFailed(s.remoteID, err)
		}
		return
	}
	if s.callbacks.OnClosed != nil {
		s.callbacks.OnClosed(s.remoteID)
	}
}
