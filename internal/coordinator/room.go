package coordinator

import (
	"fmt"
	"time"
)

// Room groups the clients currently joined to one conference session.
// Members are kept in join order so participant lists render
// deterministically on every client.
type Room struct {
	// ID is the client-chosen identifier for the room.
	ID string

	// Title is the display title announced to joiners.
	Title string

	// CreatedAt is when the first member joined.
	CreatedAt time.Time

	// Members holds the current clients in join order.
	Members []*Client
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		Title:     fmt.Sprintf("Conference %s", id),
		CreatedAt: time.Now(),
	}
}

// addMember appends a client to the room's membership.
func (r *Room) addMember(c *Client) {
	r.Members = append(r.Members, c)
}

// removeMember removes a client, preserving join order. It reports whether
// the client was a member.
func (r *Room) removeMember(c *Client) bool {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// member returns the client with the given participant id, or nil.
func (r *Room) member(id string) *Client {
	for _, m := range r.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// empty reports whether the room has no members left.
func (r *Room) empty() bool {
	return len(r.Members) == 0
}
