package coordinator

import (
	"testing"
	"time"

	"github.com/Emmyhack/TFN/internal/protocol"
)

// testClient builds a conn-less client registered directly with the hub;
// the hub only ever touches the Send channel, so no websocket is needed.
func testClient(h *Hub, id string) *Client {
	return &Client{
		Hub:  h,
		ID:   id,
		Send: make(chan *protocol.Message, 64),
	}
}

func startHub() *Hub {
	h := NewHub()
	go h.Run()
	return h
}

func joinMsg(roomID, name string) *protocol.Message {
	return protocol.MustMessage(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: roomID,
		User:   protocol.Participant{Name: name},
	})
}

func inject(h *Hub, c *Client, msg *protocol.Message) {
	h.Inbound <- &inbound{client: c, msg: msg}
}

// recv waits for the next message of the wanted type, failing on timeout
// or on any interleaved message of a different type.
func recv(t *testing.T, c *Client, wantType string) *protocol.Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		if msg.Type != wantType {
			t.Fatalf("client %s: got message type %q, want %q", c.ID, msg.Type, wantType)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s: timed out waiting for %q", c.ID, wantType)
		return nil
	}
}

// join performs a complete join handshake and returns the participants
// list the hub answered with.
func join(t *testing.T, h *Hub, c *Client, roomID, name string) []protocol.Participant {
	t.Helper()
	inject(h, c, joinMsg(roomID, name))
	recv(t, c, protocol.TypeJoinSuccess)

	var list []protocol.Participant
	msg := recv(t, c, protocol.TypeParticipantsList)
	if err := msg.DecodePayload(&list); err != nil {
		t.Fatalf("decode participants list: %v", err)
	}
	return list
}

func TestJoinCreatesRoomAndExcludesSelf(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	list := join(t, h, alice, "r1", "Alice")
	if len(list) != 0 {
		t.Fatalf("first joiner got %d participants, want 0", len(list))
	}

	bob := testClient(h, "bob")
	list = join(t, h, bob, "r1", "Bob")
	if len(list) != 1 || list[0].ID != "alice" {
		t.Fatalf("second joiner got %v, want just alice", list)
	}
	for _, p := range list {
		if p.ID == bob.ID {
			t.Fatal("participants list includes the joiner itself")
		}
	}

	// Alice observes Bob's arrival.
	msg := recv(t, alice, protocol.TypeUserJoined)
	var joined protocol.Participant
	if err := msg.DecodePayload(&joined); err != nil {
		t.Fatalf("decode user-joined: %v", err)
	}
	if joined.ID != "bob" || joined.Name != "Bob" {
		t.Fatalf("user-joined = %+v, want bob", joined)
	}
	if joined.IsHost {
		t.Fatal("second joiner must not be host")
	}
}

func TestFirstJoinerIsHost(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	inject(h, alice, joinMsg("r1", "Alice"))

	msg := recv(t, alice, protocol.TypeJoinSuccess)
	var ack protocol.JoinSuccessPayload
	if err := msg.DecodePayload(&ack); err != nil {
		t.Fatalf("decode join-success: %v", err)
	}
	if !ack.IsHost {
		t.Fatal("first joiner must be host")
	}
	if ack.ParticipantID != "alice" {
		t.Fatalf("participant id = %q, want alice", ack.ParticipantID)
	}
	if ack.Title == "" {
		t.Fatal("room title missing from join ack")
	}
}

func TestJoinRejectsMissingName(t *testing.T) {
	h := startHub()

	c := testClient(h, "anon")
	inject(h, c, joinMsg("r1", ""))

	msg := recv(t, c, protocol.TypeError)
	var p protocol.ErrorPayload
	if err := msg.DecodePayload(&p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Error == "" {
		t.Fatal("error payload missing reason")
	}

	// The rejected client must not have been added: a real joiner sees
	// an empty room.
	probe := testClient(h, "probe")
	if list := join(t, h, probe, "r1", "Probe"); len(list) != 0 {
		t.Fatalf("room has %d members after rejected join, want 0", len(list))
	}
}

func TestRoomDiscardedWhenEmpty(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	inject(h, bob, protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r1"}))
	msg := recv(t, alice, protocol.TypeUserLeft)
	var leftID string
	if err := msg.DecodePayload(&leftID); err != nil {
		t.Fatalf("decode user-left: %v", err)
	}
	if leftID != "bob" {
		t.Fatalf("user-left = %q, want bob", leftID)
	}

	inject(h, alice, protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r1"}))

	// The room was discarded on last leave, so a fresh join sees a
	// brand-new room with an empty participants list.
	carol := testClient(h, "carol")
	if list := join(t, h, carol, "r1", "Carol"); len(list) != 0 {
		t.Fatalf("recreated room has %d members, want 0", len(list))
	}
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	join(t, h, alice, "r1", "Alice")

	// Leaving a room the client is not in must not disturb membership.
	inject(h, alice, protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "other"}))

	bob := testClient(h, "bob")
	if list := join(t, h, bob, "r1", "Bob"); len(list) != 1 {
		t.Fatalf("room has %d members, want 1", len(list))
	}
}

func TestRepeatedJoinReplaysAck(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	// A retried join for the room the connection is already in gets the
	// ack and roster again instead of silence.
	inject(h, bob, joinMsg("r1", "Bob"))

	msg := recv(t, bob, protocol.TypeJoinSuccess)
	var ack protocol.JoinSuccessPayload
	if err := msg.DecodePayload(&ack); err != nil {
		t.Fatalf("decode join-success: %v", err)
	}
	if ack.ParticipantID != "bob" || ack.RoomID != "r1" {
		t.Fatalf("replayed ack = %+v", ack)
	}
	if ack.IsHost {
		t.Fatal("replayed ack granted host status")
	}

	var list []protocol.Participant
	msg = recv(t, bob, protocol.TypeParticipantsList)
	if err := msg.DecodePayload(&list); err != nil {
		t.Fatalf("decode participants list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "alice" {
		t.Fatalf("replayed list = %v, want just alice", list)
	}

	// The retry added no duplicate membership and alice saw no second
	// user-joined for bob: her next message is carol's arrival.
	carol := testClient(h, "carol")
	if list := join(t, h, carol, "r1", "Carol"); len(list) != 2 {
		t.Fatalf("room has %d members after retried join, want 2", len(list))
	}
	msg = recv(t, alice, protocol.TypeUserJoined)
	var joined protocol.Participant
	if err := msg.DecodePayload(&joined); err != nil {
		t.Fatalf("decode user-joined: %v", err)
	}
	if joined.ID != "carol" {
		t.Fatalf("alice received %q, want carol's join only", joined.ID)
	}
}

func TestSecondJoinIsImplicitLeave(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	// Bob joins a second room on the same connection: membership is a
	// state transition, so Alice sees him leave r1.
	join(t, h, bob, "r2", "Bob")
	msg := recv(t, alice, protocol.TypeUserLeft)
	var leftID string
	if err := msg.DecodePayload(&leftID); err != nil {
		t.Fatalf("decode user-left: %v", err)
	}
	if leftID != "bob" {
		t.Fatalf("user-left = %q, want bob", leftID)
	}
}

func TestSignalRelayScoping(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	mallory := testClient(h, "mallory")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)
	// Same coordinator, different room.
	join(t, h, mallory, "r2", "Mallory")

	inject(h, alice, protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		To:     "bob",
		Signal: []byte(`{"type":"offer","sdp":"x"}`),
	}))

	msg := recv(t, bob, protocol.TypeSignal)
	var sig protocol.SignalPayload
	if err := msg.DecodePayload(&sig); err != nil {
		t.Fatalf("decode signal: %v", err)
	}
	if sig.From != "alice" {
		t.Fatalf("signal from = %q, want alice", sig.From)
	}
	if sig.To != "" {
		t.Fatalf("relayed signal still addressed to %q", sig.To)
	}

	// A signal addressed to a participant in another room is dropped.
	inject(h, alice, protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		To:     "mallory",
		Signal: []byte(`{"type":"offer","sdp":"x"}`),
	}))

	// Synchronize: the next observable message on mallory's channel
	// must be from a later event, proving the misaddressed signal was
	// never delivered.
	dave := testClient(h, "dave")
	join(t, h, dave, "r2", "Dave")
	msg = recv(t, mallory, protocol.TypeUserJoined)
	var joined protocol.Participant
	if err := msg.DecodePayload(&joined); err != nil {
		t.Fatalf("decode user-joined: %v", err)
	}
	if joined.ID != "dave" {
		t.Fatalf("mallory received %q, want dave's join only", joined.ID)
	}
}

func TestSignalToDepartedParticipantIsDropped(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	inject(h, bob, protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r1"}))
	recv(t, alice, protocol.TypeUserLeft)

	// Offer addressed to the departed member: dropped, no error back.
	inject(h, alice, protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		To:     "bob",
		Signal: []byte(`{"type":"offer","sdp":"x"}`),
	}))

	carol := testClient(h, "carol")
	join(t, h, carol, "r1", "Carol")
	msg := recv(t, alice, protocol.TypeUserJoined)
	var joined protocol.Participant
	if err := msg.DecodePayload(&joined); err != nil {
		t.Fatalf("decode user-joined: %v", err)
	}
	if joined.ID != "carol" {
		t.Fatalf("alice received %q, want carol's join only", joined.ID)
	}
	select {
	case msg := <-bob.Send:
		t.Fatalf("departed client received %q", msg.Type)
	default:
	}
}

func TestMediaStateBroadcast(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	inject(h, alice, protocol.MustMessage(protocol.TypeMediaStateChange, protocol.MediaStatePayload{
		RoomID: "r1",
		Audio:  false,
		Video:  true,
	}))

	msg := recv(t, bob, protocol.TypeMediaStateChanged)
	var ms protocol.MediaStateChangedPayload
	if err := msg.DecodePayload(&ms); err != nil {
		t.Fatalf("decode media-state-changed: %v", err)
	}
	if ms.ParticipantID != "alice" || ms.Audio || !ms.Video {
		t.Fatalf("media-state-changed = %+v, want alice muted with video", ms)
	}

	// Latest flags are mirrored into the membership snapshot later
	// joiners receive.
	carol := testClient(h, "carol")
	list := join(t, h, carol, "r1", "Carol")
	for _, p := range list {
		if p.ID == "alice" && !p.IsMuted {
			t.Fatal("alice's mute flag not mirrored into participant info")
		}
	}
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)

	h.Unregister <- bob

	msg := recv(t, alice, protocol.TypeUserLeft)
	var leftID string
	if err := msg.DecodePayload(&leftID); err != nil {
		t.Fatalf("decode user-left: %v", err)
	}
	if leftID != "bob" {
		t.Fatalf("user-left = %q, want bob", leftID)
	}

	// The hub closed the dropped client's send channel.
	if _, ok := <-bob.Send; ok {
		// Drain any buffered message first; the channel must
		// eventually report closed.
		for range bob.Send {
		}
	}
}

func TestHostReassignedWhenHostLeaves(t *testing.T) {
	h := startHub()

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	carol := testClient(h, "carol")
	join(t, h, alice, "r1", "Alice")
	join(t, h, bob, "r1", "Bob")
	recv(t, alice, protocol.TypeUserJoined)
	join(t, h, carol, "r1", "Carol")
	recv(t, alice, protocol.TypeUserJoined)
	recv(t, bob, protocol.TypeUserJoined)

	inject(h, alice, protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r1"}))

	recv(t, bob, protocol.TypeUserLeft)
	msg := recv(t, bob, protocol.TypeHostChanged)
	var hc protocol.HostChangedPayload
	if err := msg.DecodePayload(&hc); err != nil {
		t.Fatalf("decode host-changed: %v", err)
	}
	// Bob joined before Carol, so the oldest remaining member wins.
	if hc.ParticipantID != "bob" {
		t.Fatalf("host reassigned to %q, want bob", hc.ParticipantID)
	}

	recv(t, carol, protocol.TypeUserLeft)
	recv(t, carol, protocol.TypeHostChanged)
}
