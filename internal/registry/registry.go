// Package registry is the client-local mirror of room membership. It is
// kept eventually consistent with the coordinator's broadcasts: every
// mutation is an idempotent upsert or delete keyed by participant id, so
// replayed or reordered events converge to the same state.
package registry

import (
	"sync"

	"github.com/Emmyhack/TFN/internal/media"
	"github.com/Emmyhack/TFN/internal/protocol"
)

// Participant is one registry entry: the coordinator-announced identity
// and media flags, plus the remote stream handle once the peer session
// for this participant connects.
type Participant struct {
	protocol.Participant

	// Stream is the remote media stream, nil until negotiation
	// completes or after the peer session ends.
	Stream *media.Stream
}

// Update is a partial-flags patch. Nil fields are left untouched.
type Update struct {
	IsMuted     *bool
	IsVideoOff  *bool
	IsSpeaking  *bool
	IsHost      *bool
	Stream      *media.Stream
	ClearStream bool
}

// Registry tracks the known participants of the joined room, ordered by
// join time for deterministic rendering.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	order        []string
	subs         map[int]chan struct{}
	nextSub      int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		participants: make(map[string]*Participant),
		subs:         make(map[int]chan struct{}),
	}
}

// Add upserts a participant. A re-add refreshes identity and flags but
// keeps the original join position and any attached stream.
func (r *Registry) Add(info protocol.Participant) {
	r.mu.Lock()
	if existing, ok := r.participants[info.ID]; ok {
		existing.Participant = info
	} else {
		r.participants[info.ID] = &Participant{Participant: info}
		r.order = append(r.order, info.ID)
	}
	r.mu.Unlock()
	r.notify()
}

// Remove deletes a participant. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.participants[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.participants, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.notify()
}

// Update applies a partial patch to a participant. It reports whether the
// participant was known; patches for unknown ids are dropped, since the
// coordinator has not announced them (or has already retired them).
func (r *Registry) Update(id string, u Update) bool {
	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if u.IsMuted != nil {
		p.IsMuted = *u.IsMuted
	}
	if u.IsVideoOff != nil {
		p.IsVideoOff = *u.IsVideoOff
	}
	if u.IsSpeaking != nil {
		p.IsSpeaking = *u.IsSpeaking
	}
	if u.IsHost != nil {
		p.IsHost = *u.IsHost
	}
	if u.ClearStream {
		p.Stream = nil
	} else if u.Stream != nil {
		p.Stream = u.Stream
	}
	r.mu.Unlock()
	r.notify()
	return true
}

// SetHost marks the given participant as host and clears the flag on
// everyone else.
func (r *Registry) SetHost(id string) {
	r.mu.Lock()
	for pid, p := range r.participants {
		p.IsHost = pid == id
	}
	r.mu.Unlock()
	r.notify()
}

// Get returns a copy of one participant entry.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// List returns a snapshot of all participants in join order.
func (r *Registry) List() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// Len returns the current participant count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Clear drops every entry, for use when leaving a room.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.participants = make(map[string]*Participant)
	r.order = nil
	r.mu.Unlock()
	r.notify()
}

// Subscribe registers a change listener. The returned channel receives a
// coalesced tick after each mutation; the cancel function unregisters it.
// Consumers read the state itself through List.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan struct{}, 1)
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Registry) notify() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Bool is a convenience for building Update patches.
func Bool(v bool) *bool {
	return &v
}
