package protocol

import "encoding/json"

// Message is the envelope for all websocket traffic between a conference
// client and the room coordinator. Payload holds one of the typed payload
// structs below, selected by Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server message types.
const (
	TypeJoinRoom         = "join-room"
	TypeLeaveRoom        = "leave-room"
	TypeSignal           = "signal"
	TypeMediaStateChange = "media-state-change"
)

// Server to client message types.
const (
	TypeJoinSuccess       = "join-success"
	TypeParticipantsList  = "participants-list"
	TypeUserJoined        = "user-joined"
	TypeUserLeft          = "user-left"
	TypeMediaStateChanged = "media-state-changed"
	TypeHostChanged       = "host-changed"
	TypeError             = "error"
)

// Participant describes one user's presence within a room. The coordinator
// assigns ID per connection; the remaining fields are supplied by the client
// at join time and mirrored to every other room member.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	IsHost     bool   `json:"isHost"`
	IsMuted    bool   `json:"isMuted"`
	IsVideoOff bool   `json:"isVideoOff"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// JoinRoomPayload asks the coordinator to add the sender to a room.
type JoinRoomPayload struct {
	RoomID string      `json:"roomId"`
	User   Participant `json:"user"`
}

// LeaveRoomPayload removes the sender from a room.
type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

// SignalPayload carries an opaque negotiation payload (SDP or ICE) between
// two participants. Clients set To; the coordinator rewrites it to From
// before relaying.
type SignalPayload struct {
	To     string          `json:"to,omitempty"`
	From   string          `json:"from,omitempty"`
	Signal json.RawMessage `json:"signal"`
}

// MediaStatePayload reports the sender's current audio/video enablement.
type MediaStatePayload struct {
	RoomID string `json:"roomId,omitempty"`
	Audio  bool   `json:"audio"`
	Video  bool   `json:"video"`
}

// JoinSuccessPayload acknowledges a join and tells the client the
// participant id the coordinator assigned to its connection.
type JoinSuccessPayload struct {
	ParticipantID string `json:"participantId"`
	RoomID        string `json:"roomId"`
	Title         string `json:"title"`
	IsHost        bool   `json:"isHost"`
}

// MediaStateChangedPayload is the broadcast form of MediaStatePayload.
type MediaStateChangedPayload struct {
	ParticipantID string `json:"participantId"`
	Audio         bool   `json:"audio"`
	Video         bool   `json:"video"`
}

// HostChangedPayload announces host promotion after the previous host left.
type HostChangedPayload struct {
	ParticipantID string `json:"participantId"`
}

// ErrorPayload carries a human-readable rejection reason from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage creates a Message with the given type and encoded payload.
func NewMessage(t string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// MustMessage is NewMessage for payloads that cannot fail to encode.
func MustMessage(t string, payload any) *Message {
	m, err := NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}
