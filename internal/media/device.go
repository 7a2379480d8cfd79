package media

import "errors"

// ErrUnavailable is returned by a Device when capture permission is denied
// or the requested hardware is absent.
var ErrUnavailable = errors.New("media device unavailable")

// Device acquires local capture streams. Implementations are platform
// specific; the conference core treats them as an external collaborator.
type Device interface {
	// Capture acquires a local stream with the requested track kinds.
	// Requesting neither kind yields a stream-less participant.
	Capture(audio, video bool) (*Stream, error)

	// CaptureScreen acquires a screen-capture video track.
	CaptureScreen() (*Track, error)
}

// SyntheticDevice is a Device that always succeeds, producing tracks with
// no backing hardware. Used by headless clients and tests.
type SyntheticDevice struct{}

func (SyntheticDevice) Capture(audio, video bool) (*Stream, error) {
	var tracks []*Track
	if audio {
		tracks = append(tracks, NewTrack(TrackKindAudio, "synthetic-mic"))
	}
	if video {
		tracks = append(tracks, NewTrack(TrackKindVideo, "synthetic-cam"))
	}
	return NewStream(tracks...), nil
}

func (SyntheticDevice) CaptureScreen() (*Track, error) {
	return NewTrack(TrackKindVideo, "synthetic-screen"), nil
}

// UnavailableDevice is a Device that always fails with ErrUnavailable.
// It stands in for platforms where capture is denied or absent.
type UnavailableDevice struct{}

func (UnavailableDevice) Capture(audio, video bool) (*Stream, error) {
	return nil, ErrUnavailable
}

func (UnavailableDevice) CaptureScreen() (*Track, error) {
	return nil, ErrUnavailable
}
