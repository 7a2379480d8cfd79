package signaling

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Emmyhack/TFN/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// State describes the signaling connection lifecycle.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChange is emitted on every connection-state transition. Err carries
// the transport error that caused a StateClosed transition, if any.
type StateChange struct {
	State State
	Err   error
}

// Client manages the websocket connection to the room coordinator. Send is
// fire-and-forget; inbound messages arrive on Incoming in arrival order.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	states    chan StateChange
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new signaling client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Message, 32),
		outgoing:  make(chan *protocol.Message, 32),
		states:    make(chan StateChange, 4),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection to the coordinator and
// starts the read/write pumps. The state channel observes the
// connecting -> open transition, or connecting -> closed on failure.
func (c *Client) Connect() error {
	c.setState(StateConnecting, nil)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		err = fmt.Errorf("invalid server URL: %w", err)
		c.setState(StateClosed, err)
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		err = fmt.Errorf("failed to connect: %w", err)
		c.setState(StateClosed, err)
		return err
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	c.setState(StateOpen, nil)
	return nil
}

// readPump reads messages from the websocket connection until it fails or
// is closed, then emits the closed state.
func (c *Client) readPump() {
	var readErr error

	defer func() {
		// Unblock any Send waiting on a connection that died from the
		// transport side.
		c.Close()
		c.conn.Close()
		close(c.incoming)
		c.setState(StateClosed, readErr)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				readErr = err
			}
			return
		}

		c.incoming <- &msg
	}
}

// writePump writes outbound messages and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a message for delivery to the coordinator. Delivery is
// fire-and-forget: a message queued against a dying connection is lost.
func (c *Client) Send(msg *protocol.Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Incoming returns the channel of inbound messages. The channel is closed
// when the connection is lost.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// States returns the connection-state transition channel.
func (c *Client) States() <-chan StateChange {
	return c.states
}

// Close shuts down the websocket connection and releases resources. Safe
// to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) setState(s State, err error) {
	select {
	case c.states <- StateChange{State: s, Err: err}:
	default:
		// Consumer stopped draining; drop rather than block the pumps.
	}
}
