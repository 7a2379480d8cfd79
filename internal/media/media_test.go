package media

import "testing"

func TestNewTrackWithIDKeepsIdentity(t *testing.T) {
	tr := NewTrackWithID("rtp-track-7", TrackKindVideo, "stream-3")
	if tr.ID != "rtp-track-7" {
		t.Fatalf("id = %q, want the caller-supplied one", tr.ID)
	}
	if tr.Kind != TrackKindVideo || tr.Label != "stream-3" {
		t.Fatalf("track = %+v", tr)
	}
	if !tr.Enabled() {
		t.Fatal("new track not enabled")
	}
}

func TestNewTrackGeneratesDistinctIDs(t *testing.T) {
	a := NewTrack(TrackKindAudio, "mic")
	b := NewTrack(TrackKindAudio, "mic")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids = %q, %q", a.ID, b.ID)
	}
}

func TestReplaceVideoTrack(t *testing.T) {
	camera := NewTrack(TrackKindVideo, "camera")
	mic := NewTrack(TrackKindAudio, "mic")
	s := NewStream(mic, camera)

	screen := NewTrack(TrackKindVideo, "screen")
	prev := s.ReplaceVideoTrack(screen)
	if prev != camera {
		t.Fatal("previous video track not returned")
	}
	if s.VideoTrack() != screen {
		t.Fatal("video track not swapped")
	}
	if s.AudioTrack() != mic {
		t.Fatal("audio track disturbed by video swap")
	}

	// A stream without video appends and reports no previous track.
	audioOnly := NewStream(NewTrack(TrackKindAudio, "mic"))
	if prev := audioOnly.ReplaceVideoTrack(screen); prev != nil {
		t.Fatalf("previous = %v, want nil", prev)
	}
	if audioOnly.VideoTrack() != screen {
		t.Fatal("video track not added")
	}
}
