package peer

import "github.com/vmihailenco/msgpack/v5"

// Control message types exchanged over a session's data channel. These
// travel peer to peer and never pass through the coordinator.
const (
	ControlTypeSpeaking = "speaking"
)

// ControlMessage is the envelope for all data channel control messages.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// SpeakingPayload reports the sender's voice-activity state.
type SpeakingPayload struct {
	Speaking bool `msgpack:"speaking"`
}

// EncodeControl builds an encoded control message of the given type.
func EncodeControl(t string, payload any) ([]byte, error) {
	p, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(ControlMessage{Type: t, Payload: p})
}

// DecodeControl parses a control message envelope.
func DecodeControl(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
