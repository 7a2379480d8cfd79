// Package media models the streams and tracks a conference participant
// sends and receives. Real platform capture (camera, microphone, screen)
// is supplied by a Device implementation; the conference core only cares
// about track identity and enablement.
package media

import (
	"sync"

	"github.com/google/uuid"
)

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track is one media track. Enablement is the mute/unmute toggle: a
// disabled track stays negotiated but transmits nothing.
type Track struct {
	ID    string
	Kind  TrackKind
	Label string

	mu      sync.Mutex
	enabled bool
}

// NewTrack creates an enabled track of the given kind.
func NewTrack(kind TrackKind, label string) *Track {
	return NewTrackWithID(uuid.NewString(), kind, label)
}

// NewTrackWithID creates an enabled track with a caller-supplied id, for
// mirroring remote tracks whose identity the peer already assigned.
func NewTrackWithID(id string, kind TrackKind, label string) *Track {
	return &Track{
		ID:      id,
		Kind:    kind,
		Label:   label,
		enabled: true,
	}
}

// Enabled reports whether the track is currently transmitting.
func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled toggles transmission without renegotiation.
func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stream is a bundle of tracks owned by one participant. A participant
// owns at most one outbound local stream; remote streams are handles
// produced by peer sessions once negotiation completes.
type Stream struct {
	ID string

	mu     sync.Mutex
	tracks []*Track
}

// NewStream creates a stream from the given tracks.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{
		ID:     uuid.NewString(),
		tracks: tracks,
	}
}

// Tracks returns a snapshot of the stream's tracks.
func (s *Stream) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// AudioTrack returns the first audio track, or nil.
func (s *Stream) AudioTrack() *Track {
	return s.firstOfKind(TrackKindAudio)
}

// VideoTrack returns the first video track, or nil.
func (s *Stream) VideoTrack() *Track {
	return s.firstOfKind(TrackKindVideo)
}

func (s *Stream) firstOfKind(kind TrackKind) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.Kind == kind {
			return t
		}
	}
	return nil
}

// AddTrack appends a track to the stream. Remote streams grow as tracks
// arrive from the transport.
func (s *Stream) AddTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

// ReplaceVideoTrack swaps the stream's video track, returning the previous
// one (nil if the stream had none). Used when screen share swaps the
// outbound video source.
func (s *Stream) ReplaceVideoTrack(t *Track) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, old := range s.tracks {
		if old.Kind == TrackKindVideo {
			s.tracks[i] = t
			return old
		}
	}
	s.tracks = append(s.tracks, t)
	return nil
}
