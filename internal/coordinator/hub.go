package coordinator

import (
	"log/slog"
	"time"

	"github.com/Emmyhack/TFN/internal/protocol"
)

// inbound pairs a wire message with the connection it arrived on.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the authoritative registry of rooms and their membership. All
// mutation of room state is funneled through the single goroutine running
// Run, so no locking is needed anywhere in this package.
//
// The hub holds no durable state: a restart loses all membership and
// clients observe it as a transport disconnect.
type Hub struct {
	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is the channel for registering new connections.
	Register chan *Client

	// Unregister is the channel for dropping connections. Unregistering
	// performs an implicit leave of whatever room the connection was in.
	Unregister chan *Client

	// Inbound carries client messages into the hub's run loop.
	Inbound chan *inbound
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound, 64),
	}
}

// Run starts the hub's main processing loop. This is the single goroutine
// that safely manages all room state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet; membership is
			// established by a later join-room message.
			slog.Info("client connected", "client", client.ID)

		case client := <-h.Unregister:
			slog.Info("client disconnected", "client", client.ID)
			h.leave(client, client.RoomID)
			close(client.Send)

		case in := <-h.Inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

func (h *Hub) dispatch(client *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRoom:
		var p protocol.JoinRoomPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("malformed join-room", "client", client.ID, "err", err)
			return
		}
		h.join(client, &p)

	case protocol.TypeLeaveRoom:
		var p protocol.LeaveRoomPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("malformed leave-room", "client", client.ID, "err", err)
			return
		}
		h.leave(client, p.RoomID)

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("malformed signal", "client", client.ID, "err", err)
			return
		}
		h.relaySignal(client, &p)

	case protocol.TypeMediaStateChange:
		var p protocol.MediaStatePayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("malformed media-state-change", "client", client.ID, "err", err)
			return
		}
		h.relayMediaState(client, &p)

	default:
		slog.Warn("unknown message type", "client", client.ID, "type", msg.Type)
	}
}

// join adds the client to a room, creating the room on first join. A join
// while already in another room is treated as an implicit leave of the
// prior room: a connection belongs to at most one room at a time.
func (h *Hub) join(client *Client, p *protocol.JoinRoomPayload) {
	if p.User.Name == "" {
		slog.Warn("join rejected: missing display name", "client", client.ID, "room", p.RoomID)
		h.send(client, protocol.MustMessage(protocol.TypeError, protocol.ErrorPayload{
			Error: "invalid participant: display name is required",
		}))
		return
	}

	if client.RoomID != "" && client.RoomID != p.RoomID {
		h.leave(client, client.RoomID)
	}
	if client.RoomID == p.RoomID {
		// Already a member. Refresh identity and replay the ack, so a
		// client retrying join on a live connection is not left waiting
		// for a response that never comes.
		client.Info.Name = p.User.Name
		client.Info.Email = p.User.Email
		room, ok := h.Rooms[p.RoomID]
		if !ok {
			return
		}
		others := make([]protocol.Participant, 0, len(room.Members))
		for _, m := range room.Members {
			if m != client {
				others = append(others, m.Info)
			}
		}
		h.send(client, protocol.MustMessage(protocol.TypeJoinSuccess, protocol.JoinSuccessPayload{
			ParticipantID: client.ID,
			RoomID:        room.ID,
			Title:         room.Title,
			IsHost:        client.Info.IsHost,
		}))
		h.send(client, protocol.MustMessage(protocol.TypeParticipantsList, others))
		return
	}

	room, ok := h.Rooms[p.RoomID]
	if !ok {
		room = newRoom(p.RoomID)
		h.Rooms[p.RoomID] = room
		slog.Info("room created", "room", room.ID)
	}

	client.Info = p.User
	client.Info.ID = client.ID
	client.Info.IsHost = room.empty()
	client.RoomID = room.ID
	client.JoinedAt = time.Now()

	// Snapshot the existing members before adding the joiner, so the
	// participants list never includes the joiner itself.
	existing := make([]protocol.Participant, 0, len(room.Members))
	for _, m := range room.Members {
		existing = append(existing, m.Info)
	}

	room.addMember(client)
	slog.Info("participant joined", "room", room.ID, "client", client.ID, "name", client.Info.Name)

	h.send(client, protocol.MustMessage(protocol.TypeJoinSuccess, protocol.JoinSuccessPayload{
		ParticipantID: client.ID,
		RoomID:        room.ID,
		Title:         room.Title,
		IsHost:        client.Info.IsHost,
	}))
	h.send(client, protocol.MustMessage(protocol.TypeParticipantsList, existing))

	joined := protocol.MustMessage(protocol.TypeUserJoined, client.Info)
	h.broadcast(room, client, joined)
}

// leave removes the client from the named room and discards the room once
// its membership reaches zero. Leaving a room the client is not a member of
// is a no-op, not an error.
func (h *Hub) leave(client *Client, roomID string) {
	if roomID == "" {
		return
	}
	room, ok := h.Rooms[roomID]
	if !ok {
		return
	}
	if !room.removeMember(client) {
		return
	}

	wasHost := client.Info.IsHost
	if client.RoomID == roomID {
		client.RoomID = ""
	}
	client.Info.IsHost = false

	slog.Info("participant left", "room", room.ID, "client", client.ID)

	if room.empty() {
		delete(h.Rooms, room.ID)
		slog.Info("room discarded", "room", room.ID)
		return
	}

	h.broadcast(room, nil, protocol.MustMessage(protocol.TypeUserLeft, client.ID))

	// The oldest remaining member inherits host status.
	if wasHost {
		next := room.Members[0]
		next.Info.IsHost = true
		slog.Info("host reassigned", "room", room.ID, "client", next.ID)
		h.broadcast(room, nil, protocol.MustMessage(protocol.TypeHostChanged, protocol.HostChangedPayload{
			ParticipantID: next.ID,
		}))
	}
}

// relaySignal forwards a negotiation payload to the addressed participant,
// provided the recipient is currently a member of the sender's room.
// Signals for absent recipients are dropped, never queued or bounced.
func (h *Hub) relaySignal(client *Client, p *protocol.SignalPayload) {
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		slog.Debug("signal dropped: sender not in a room", "client", client.ID)
		return
	}

	target := room.member(p.To)
	if target == nil {
		slog.Debug("signal dropped: recipient not present", "room", room.ID, "to", p.To)
		return
	}

	h.send(target, protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		From:   client.ID,
		Signal: p.Signal,
	}))
}

// relayMediaState mirrors the sender's latest media flags onto its
// participant record and broadcasts them to the other room members.
func (h *Hub) relayMediaState(client *Client, p *protocol.MediaStatePayload) {
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		return
	}

	client.Info.IsMuted = !p.Audio
	client.Info.IsVideoOff = !p.Video

	h.broadcast(room, client, protocol.MustMessage(protocol.TypeMediaStateChanged, protocol.MediaStateChangedPayload{
		ParticipantID: client.ID,
		Audio:         p.Audio,
		Video:         p.Video,
	}))
}

// broadcast sends a message to every room member except skip.
func (h *Hub) broadcast(room *Room, skip *Client, msg *protocol.Message) {
	for _, m := range room.Members {
		if m != skip {
			h.send(m, msg)
		}
	}
}

// send delivers a message to one client without blocking the run loop. A
// client whose send buffer is full loses the message; signaling is
// best-effort and slow consumers must not stall the whole coordinator.
func (h *Hub) send(client *Client, msg *protocol.Message) {
	select {
	case client.Send <- msg:
	default:
		slog.Warn("send buffer full, dropping message", "client", client.ID, "type", msg.Type)
	}
}
