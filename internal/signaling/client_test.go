package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Emmyhack/TFN/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades connections and echoes every message back.
func echoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := conn.WriteJSON(&msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func expectState(t *testing.T, c *Client, want State) StateChange {
	t.Helper()
	select {
	case sc := <-c.States():
		if sc.State != want {
			t.Fatalf("state = %s, want %s", sc.State, want)
		}
		return sc
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %s", want)
		return StateChange{}
	}
}

func TestConnectEmitsStates(t *testing.T) {
	c := NewClient(echoServer(t))

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	expectState(t, c, StateConnecting)
	expectState(t, c, StateOpen)
}

func TestConnectFailureEmitsClosed(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")

	if err := c.Connect(); err == nil {
		t.Fatal("Connect to unreachable server succeeded")
	}

	expectState(t, c, StateConnecting)
	sc := expectState(t, c, StateClosed)
	if sc.Err == nil {
		t.Fatal("closed state missing cause")
	}
}

func TestSendAndReceiveRoundtrip(t *testing.T) {
	c := NewClient(echoServer(t))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	sent := protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		To:     "peer",
		Signal: []byte(`{"type":"offer"}`),
	})
	c.Send(sent)

	select {
	case got := <-c.Incoming():
		if got.Type != protocol.TypeSignal {
			t.Fatalf("echoed type = %q, want signal", got.Type)
		}
		var p protocol.SignalPayload
		if err := got.DecodePayload(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.To != "peer" {
			t.Fatalf("echoed To = %q, want peer", p.To)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}
}

func TestServerCloseEndsIncoming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	c := NewClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	select {
	case _, ok := <-c.Incoming():
		if ok {
			t.Fatal("message from a connection the server closed immediately")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("incoming channel never closed")
	}
}

func TestSendUnblocksAfterConnectionDies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	c := NewClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Wait for the pumps to notice the dead connection.
	select {
	case <-c.Incoming():
	case <-time.After(2 * time.Second):
		t.Fatal("incoming channel never closed")
	}

	// More sends than the outgoing buffer holds must all return; a
	// caller must never block on a connection nothing is draining.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			c.Send(protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r"}))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a dead connection")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient(echoServer(t))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	c.Close()
	c.Close()
	// Send against a closed client must not block.
	c.Send(protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: "r"}))
}
