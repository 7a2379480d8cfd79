package signaling

import (
	"log/slog"
	"sync"

	"github.com/Emmyhack/TFN/internal/protocol"
)

// Handler routes incoming signaling messages to typed channels, one per
// server-to-client message kind. It runs on a single goroutine, so
// consumers observe events in arrival order.
type Handler struct {
	client           *Client
	JoinSuccess      chan *protocol.JoinSuccessPayload
	ParticipantsList chan []protocol.Participant
	UserJoined       chan *protocol.Participant
	UserLeft         chan string
	Signal           chan *protocol.SignalPayload
	MediaState       chan *protocol.MediaStateChangedPayload
	HostChanged      chan string
	Error            chan string
	closeOnce        sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:           client,
		JoinSuccess:      make(chan *protocol.JoinSuccessPayload, 1),
		ParticipantsList: make(chan []protocol.Participant, 1),
		UserJoined:       make(chan *protocol.Participant, 16),
		UserLeft:         make(chan string, 16),
		Signal:           make(chan *protocol.SignalPayload, 32),
		MediaState:       make(chan *protocol.MediaStateChangedPayload, 16),
		HostChanged:      make(chan string, 4),
		Error:            make(chan string, 1),
	}
}

// Start consumes the client's incoming stream and dispatches until the
// connection is closed. Run it on its own goroutine.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Type {

		case protocol.TypeJoinSuccess:
			var p protocol.JoinSuccessPayload
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed join-success", "err", err)
				continue
			}
			h.JoinSuccess <- &p

		case protocol.TypeParticipantsList:
			var list []protocol.Participant
			if err := msg.DecodePayload(&list); err != nil {
				slog.Warn("malformed participants-list", "err", err)
				continue
			}
			h.ParticipantsList <- list

		case protocol.TypeUserJoined:
			var p protocol.Participant
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed user-joined", "err", err)
				continue
			}
			h.UserJoined <- &p

		case protocol.TypeUserLeft:
			var id string
			if err := msg.DecodePayload(&id); err != nil {
				slog.Warn("malformed user-left", "err", err)
				continue
			}
			h.UserLeft <- id

		case protocol.TypeSignal:
			var p protocol.SignalPayload
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed signal", "err", err)
				continue
			}
			h.Signal <- &p

		case protocol.TypeMediaStateChanged:
			var p protocol.MediaStateChangedPayload
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed media-state-changed", "err", err)
				continue
			}
			h.MediaState <- &p

		case protocol.TypeHostChanged:
			var p protocol.HostChangedPayload
			if err := msg.DecodePayload(&p); err != nil {
				slog.Warn("malformed host-changed", "err", err)
				continue
			}
			h.HostChanged <- p.ParticipantID

		case protocol.TypeError:
			var p protocol.ErrorPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.Error <- "unknown error from server"
				continue
			}
			h.Error <- p.Error

		default:
			slog.Debug("ignoring unknown message type", "type", msg.Type)
		}
	}
}

// Close closes all handler channels.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.JoinSuccess)
		close(h.ParticipantsList)
		close(h.UserJoined)
		close(h.UserLeft)
		close(h.Signal)
		close(h.MediaState)
		close(h.HostChanged)
		close(h.Error)
	})
}
