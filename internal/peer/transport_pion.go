package peer

import (
	"encoding/json"
	"fmt"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/Emmyhack/TFN/internal/config"
	"github.com/Emmyhack/TFN/internal/media"
)

// signalEnvelope is the negotiation payload format carried opaquely
// through the coordinator: an SDP description or one ICE candidate.
type signalEnvelope struct {
	Type      string                 `json:"type,omitempty"`
	SDP       string                 `json:"sdp,omitempty"`
	Candidate *pion.ICECandidateInit `json:"candidate,omitempty"`
}

// pionTransport implements Transport on a pion PeerConnection.
type pionTransport struct {
	pc     *pion.PeerConnection
	events Events

	mu           sync.Mutex
	control      *pion.DataChannel
	audioSender  *pion.RTPSender
	videoSender  *pion.RTPSender
	remoteStream *media.Stream
	pending      []pion.ICECandidateInit
	haveRemote   bool
}

// NewPionTransportFactory returns a TransportFactory producing pion-backed
// transports with ICE servers taken from the configuration.
func NewPionTransportFactory(cfg *config.Config) TransportFactory {
	return func(events Events) (Transport, error) {
		return newPionTransport(cfg, events)
	}
}

func newPionTransport(cfg *config.Config, events Events) (*pionTransport, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &pionTransport{
		pc:           pc,
		events:       events,
		remoteStream: media.NewStream(),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		t.emitSignal(signalEnvelope{Candidate: &init})
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		switch state {
		case pion.PeerConnectionStateConnected:
			events.Connected(t.remoteStream)
		case pion.PeerConnectionStateFailed:
			events.Disconnected(fmt.Errorf("peer connection failed"))
		case pion.PeerConnectionStateClosed:
			events.Disconnected(nil)
		}
	})

	pc.OnTrack(func(remote *pion.TrackRemote, receiver *pion.RTPReceiver) {
		kind := media.TrackKindAudio
		if remote.Kind() == pion.RTPCodecTypeVideo {
			kind = media.TrackKindVideo
		}
		// Keep the peer-assigned track id so registry consumers can
		// correlate the entry with the RTP track.
		t.remoteStream.AddTrack(media.NewTrackWithID(remote.ID(), kind, remote.StreamID()))
	})

	// The responding side receives the control channel the initiator
	// created.
	pc.OnDataChannel(func(dc *pion.DataChannel) {
		t.bindControl(dc)
	})

	return t, nil
}

func (t *pionTransport) Initiate() error {
	dc, err := t.pc.CreateDataChannel("control", nil)
	if err != nil {
		return fmt.Errorf("create control channel: %w", err)
	}
	t.bindControl(dc)

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	local := t.pc.LocalDescription()
	t.emitSignal(signalEnvelope{Type: local.Type.String(), SDP: local.SDP})
	return nil
}

func (t *pionTransport) HandleSignal(signal json.RawMessage) error {
	var env signalEnvelope
	if err := json.Unmarshal(signal, &env); err != nil {
		return fmt.Errorf("parse signal: %w", err)
	}

	if env.Candidate != nil {
		return t.addCandidate(*env.Candidate)
	}

	switch env.Type {
	case "offer":
		desc := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: env.SDP}
		if err := t.setRemoteDescription(desc); err != nil {
			return err
		}

		answer, err := t.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := t.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}

		local := t.pc.LocalDescription()
		t.emitSignal(signalEnvelope{Type: local.Type.String(), SDP: local.SDP})
		return nil

	case "answer":
		desc := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: env.SDP}
		return t.setRemoteDescription(desc)

	default:
		return fmt.Errorf("unexpected signal type %q", env.Type)
	}
}

func (t *pionTransport) AttachLocalStream(s *media.Stream) error {
	for _, track := range s.Tracks() {
		local, err := newStaticTrack(track, s.ID)
		if err != nil {
			return err
		}

		sender, err := t.pc.AddTrack(local)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind, err)
		}

		t.mu.Lock()
		if track.Kind == media.TrackKindVideo {
			t.videoSender = sender
		} else {
			t.audioSender = sender
		}
		t.mu.Unlock()
	}
	return nil
}

func (t *pionTransport) ReplaceVideoTrack(track *media.Track) error {
	t.mu.Lock()
	sender := t.videoSender
	t.mu.Unlock()

	if sender == nil {
		return fmt.Errorf("replace video track: no negotiated video sender")
	}

	local, err := newStaticTrack(track, track.ID)
	if err != nil {
		return err
	}
	if err := sender.ReplaceTrack(local); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}
	return nil
}

func (t *pionTransport) SendControl(data []byte) error {
	t.mu.Lock()
	dc := t.control
	t.mu.Unlock()

	if dc == nil {
		return fmt.Errorf("control channel not open")
	}
	return dc.Send(data)
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}

func (t *pionTransport) bindControl(dc *pion.DataChannel) {
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		t.events.Control(msg.Data)
	})

	t.mu.Lock()
	t.control = dc
	t.mu.Unlock()
}

func (t *pionTransport) emitSignal(env signalEnvelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	t.events.OutboundSignal(b)
}

// setRemoteDescription applies the remote SDP and flushes any ICE
// candidates that arrived ahead of it.
func (t *pionTransport) setRemoteDescription(desc pion.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.haveRemote = true
	t.mu.Unlock()

	for _, c := range pending {
		if err := t.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add buffered ICE candidate: %w", err)
		}
	}
	return nil
}

// addCandidate applies an ICE candidate, buffering it if the remote
// description has not arrived yet.
func (t *pionTransport) addCandidate(c pion.ICECandidateInit) error {
	t.mu.Lock()
	if !t.haveRemote {
		t.pending = append(t.pending, c)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func newStaticTrack(track *media.Track, streamID string) (*pion.TrackLocalStaticSample, error) {
	capability := pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}
	if track.Kind == media.TrackKindVideo {
		capability = pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}
	}

	local, err := pion.NewTrackLocalStaticSample(capability, track.ID, streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", track.Kind, err)
	}
	return local, nil
}
