// Package conference is the client-side orchestration layer: it joins a
// room through the signaling channel, maintains one peer session per
// remote participant, and exposes media intents to the UI layer.
package conference

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Emmyhack/TFN/internal/config"
	"github.com/Emmyhack/TFN/internal/media"
	"github.com/Emmyhack/TFN/internal/peer"
	"github.com/Emmyhack/TFN/internal/protocol"
	"github.com/Emmyhack/TFN/internal/registry"
	"github.com/Emmyhack/TFN/internal/signaling"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 8 * time.Second
	rejoinTimeout      = 10 * time.Second
)

// UserInfo identifies the local user to the rest of the room. Identity is
// supplied by an external provider and not verified here.
type UserInfo struct {
	Name  string
	Email string
}

// Controller orchestrates one client's participation in a conference. All
// remote events are processed on a single dispatch goroutine, mirroring
// the event-loop model of the signaling channel.
type Controller struct {
	cfg     *config.Config
	device  media.Device
	factory peer.TransportFactory

	registry *registry.Registry
	states   chan signaling.StateChange

	mu          sync.Mutex
	gen         uint64
	client      *signaling.Client
	handler     *signaling.Handler
	sessions    map[string]*peer.Session
	selfID      string
	roomID      string
	title       string
	isHost      bool
	userInfo    UserInfo
	localStream *media.Stream
	cameraTrack *media.Track
	audioMuted  bool
	videoOff    bool
	sharing     bool
	joined      bool
	leaving     bool
}

// New creates a controller. The transport factory decides how peer
// sessions negotiate media; pass peer.NewPionTransportFactory(cfg) for
// production use.
func New(cfg *config.Config, device media.Device, factory peer.TransportFactory) *Controller {
	return &Controller{
		cfg:      cfg,
		device:   device,
		factory:  factory,
		registry: registry.New(),
		states:   make(chan signaling.StateChange, 8),
		sessions: make(map[string]*peer.Session),
	}
}

// Registry returns the participant registry for UI observation.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// ConnStates returns connection-state transitions for UI observation.
func (c *Controller) ConnStates() <-chan signaling.StateChange {
	return c.states
}

// SelfID returns the coordinator-assigned participant id, or "".
func (c *Controller) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// RoomID returns the joined room id, or "".
func (c *Controller) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Title returns the room display title.
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// IsHost reports whether the local participant currently holds host
// status.
func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

// Self returns the local participant's announced state.
func (c *Controller) Self() protocol.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.Participant{
		ID:         c.selfID,
		Name:       c.userInfo.Name,
		Email:      c.userInfo.Email,
		IsHost:     c.isHost,
		IsMuted:    c.audioMuted,
		IsVideoOff: c.videoOff,
	}
}

// JoinRoom connects to the coordinator, joins the room, and starts the
// event dispatch loop. It returns once membership is confirmed. The
// context bounds the wait for the signaling channel and the join ack.
//
// Media acquisition failure does not abort the join: the controller falls
// back to audio-only, then to a stream-less participant.
func (c *Controller) JoinRoom(ctx context.Context, roomID string, info UserInfo) error {
	if info.Name == "" {
		return WrapError("join room", ErrInvalidParticipant, "display name is required")
	}
	if roomID == "" {
		return WrapError("join room", ErrInvalidParticipant, "room id is required")
	}

	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		// A connection belongs to one room at a time; joining again
		// is a state transition, not additive membership.
		c.LeaveRoom()
		c.mu.Lock()
	}
	c.leaving = false
	c.userInfo = info
	c.mu.Unlock()

	c.acquireLocalMedia()

	client := signaling.NewClient(c.cfg.WebSocketURL)
	handler := signaling.NewHandler(client)

	if err := connectWithContext(ctx, client); err != nil {
		return NewError("join room", errors.Join(ErrSignalingUnavailable, err))
	}
	go handler.Start()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.client = client
	c.handler = handler
	c.mu.Unlock()

	c.sendJoin(roomID)

	if err := c.awaitJoinSuccess(ctx, client, handler, roomID); err != nil {
		client.Close()
		return err
	}

	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()

	go c.run(gen)
	return nil
}

// LeaveRoom closes every peer session, announces the leave, and clears
// local state. Idempotent, safe in any controller state, and never fails.
func (c *Controller) LeaveRoom() {
	c.mu.Lock()
	if c.leaving || (!c.joined && c.client == nil) {
		c.mu.Unlock()
		return
	}
	c.leaving = true
	c.joined = false
	c.gen++
	client := c.client
	roomID := c.roomID
	sessions := c.takeSessionsLocked()
	c.client = nil
	c.handler = nil
	c.selfID = ""
	c.roomID = ""
	c.title = ""
	c.isHost = false
	stream := c.localStream
	c.localStream = nil
	c.cameraTrack = nil
	c.sharing = false
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	if stream != nil {
		for _, t := range stream.Tracks() {
			t.SetEnabled(false)
		}
	}

	if client != nil {
		if roomID != "" {
			client.Send(protocol.MustMessage(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: roomID}))
		}
		client.Close()
	}

	c.registry.Clear()
}

// ToggleAudio flips the local audio mute state and announces it. No-op if
// no local stream exists yet. It returns the new muted state.
func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	if c.localStream == nil {
		muted := c.audioMuted
		c.mu.Unlock()
		return muted
	}
	track := c.localStream.AudioTrack()
	if track == nil {
		muted := c.audioMuted
		c.mu.Unlock()
		return muted
	}
	c.audioMuted = !c.audioMuted
	track.SetEnabled(!c.audioMuted)
	muted := c.audioMuted
	c.mu.Unlock()

	c.sendMediaState()
	return muted
}

// ToggleVideo flips the local video state and announces it. No-op if no
// local stream exists yet. It returns the new video-off state.
func (c *Controller) ToggleVideo() bool {
	c.mu.Lock()
	if c.localStream == nil {
		off := c.videoOff
		c.mu.Unlock()
		return off
	}
	track := c.localStream.VideoTrack()
	if track == nil {
		off := c.videoOff
		c.mu.Unlock()
		return off
	}
	c.videoOff = !c.videoOff
	track.SetEnabled(!c.videoOff)
	off := c.videoOff
	c.mu.Unlock()

	c.sendMediaState()
	return off
}

// StartScreenShare swaps the outbound video track on every live peer
// session for a screen-capture track. Replacement is sequential and
// best-effort: sessions that fail keep the camera track, the rest switch.
func (c *Controller) StartScreenShare() error {
	screen, err := c.device.CaptureScreen()
	if err != nil {
		return WrapError("start screen share", ErrMediaUnavailable, err.Error())
	}

	c.mu.Lock()
	if c.sharing {
		c.mu.Unlock()
		return nil
	}
	if c.localStream == nil {
		c.mu.Unlock()
		return WrapError("start screen share", ErrMediaUnavailable, "no local stream")
	}
	c.sharing = true
	c.cameraTrack = c.localStream.ReplaceVideoTrack(screen)
	sessions := c.liveSessionsLocked()
	c.mu.Unlock()

	return c.replaceVideoTrack(sessions, screen, "start screen share")
}

// StopScreenShare restores the camera track on every live peer session.
func (c *Controller) StopScreenShare() error {
	c.mu.Lock()
	if !c.sharing {
		c.mu.Unlock()
		return nil
	}
	c.sharing = false
	camera := c.cameraTrack
	c.cameraTrack = nil
	if camera == nil {
		camera = media.NewTrack(media.TrackKindVideo, "camera")
	}
	if c.localStream != nil {
		c.localStream.ReplaceVideoTrack(camera)
	}
	sessions := c.liveSessionsLocked()
	c.mu.Unlock()

	return c.replaceVideoTrack(sessions, camera, "stop screen share")
}

// SetSpeaking reports local voice activity to every connected peer over
// the sessions' control channels.
func (c *Controller) SetSpeaking(speaking bool) {
	c.mu.Lock()
	sessions := c.liveSessionsLocked()
	c.mu.Unlock()

	for _, s := range sessions {
		s.SendSpeaking(speaking)
	}
}

// acquireLocalMedia captures the local stream, degrading to audio-only
// and then to stream-less when the device refuses.
func (c *Controller) acquireLocalMedia() {
	stream, err := c.device.Capture(true, true)
	if err != nil {
		slog.Warn("camera capture failed, trying audio only", "err", err)
		stream, err = c.device.Capture(true, false)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		slog.Warn("media capture failed, joining without a stream", "err", err)
		c.localStream = nil
		c.audioMuted = true
		c.videoOff = true
		return
	}
	c.localStream = stream
	c.audioMuted = stream.AudioTrack() == nil
	c.videoOff = stream.VideoTrack() == nil
}

func (c *Controller) sendJoin(roomID string) {
	c.mu.Lock()
	client := c.client
	user := protocol.Participant{
		Name:       c.userInfo.Name,
		Email:      c.userInfo.Email,
		IsMuted:    c.audioMuted,
		IsVideoOff: c.videoOff,
	}
	c.mu.Unlock()

	client.Send(protocol.MustMessage(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: roomID,
		User:   user,
	}))
}

// awaitJoinSuccess blocks until the coordinator confirms or rejects the
// join, the connection closes, or the context expires.
func (c *Controller) awaitJoinSuccess(ctx context.Context, client *signaling.Client, handler *signaling.Handler, roomID string) error {
	for {
		select {
		case ack := <-handler.JoinSuccess:
			c.mu.Lock()
			c.selfID = ack.ParticipantID
			c.roomID = ack.RoomID
			c.title = ack.Title
			c.isHost = ack.IsHost
			c.mu.Unlock()
			return nil

		case reason := <-handler.Error:
			return WrapError("join room", ErrInvalidParticipant, reason)

		case sc := <-client.States():
			c.publishState(sc)
			if sc.State == signaling.StateClosed {
				return NewError("join room", ErrSignalingUnavailable)
			}

		case <-ctx.Done():
			return NewError("join room", ctx.Err())
		}
	}
}

// run is the controller's dispatch loop for one join generation. It
// processes signaling events in arrival order on this single goroutine,
// and survives reconnects by swapping in the new client and handler. The
// generation token ties the loop to the JoinRoom that spawned it; any
// later LeaveRoom or JoinRoom bumps the generation and orphans this loop.
func (c *Controller) run(gen uint64) {
	for {
		c.mu.Lock()
		client, handler := c.client, c.handler
		owner := c.gen == gen
		c.mu.Unlock()
		if client == nil || !owner {
			return
		}

		reason := c.dispatch(client, handler)
		client.Close()

		c.mu.Lock()
		stale := c.leaving || c.gen != gen || c.client != client
		c.mu.Unlock()
		if stale {
			return
		}

		if !c.reconnect(reason, gen) {
			return
		}
	}
}

// dispatch consumes events from one signaling connection until it closes.
func (c *Controller) dispatch(client *signaling.Client, handler *signaling.Handler) error {
	for {
		select {
		case list := <-handler.ParticipantsList:
			// Existing members joined first, so they initiate and
			// we respond.
			for _, p := range list {
				c.registry.Add(p)
				c.ensureSession(p.ID, false)
			}

		case p := <-handler.UserJoined:
			if p == nil {
				continue
			}
			c.registry.Add(*p)
			c.createSession(p.ID, true)

		case id := <-handler.UserLeft:
			c.dropSession(id)
			c.registry.Remove(id)

		case sig := <-handler.Signal:
			if sig == nil {
				continue
			}
			c.handleSignal(sig)

		case ms := <-handler.MediaState:
			if ms == nil {
				continue
			}
			c.registry.Update(ms.ParticipantID, registry.Update{
				IsMuted:    registry.Bool(!ms.Audio),
				IsVideoOff: registry.Bool(!ms.Video),
			})

		case id := <-handler.HostChanged:
			c.registry.SetHost(id)
			c.mu.Lock()
			c.isHost = id == c.selfID
			c.mu.Unlock()

		case reason := <-handler.Error:
			slog.Warn("coordinator error", "reason", reason)

		case sc := <-client.States():
			c.publishState(sc)
			if sc.State == signaling.StateClosed {
				return sc.Err
			}
		}
	}
}

// handleSignal feeds a relayed negotiation payload into the matching peer
// session, creating the responding session on demand when the offer beats
// the membership bookkeeping.
func (c *Controller) handleSignal(sig *protocol.SignalPayload) {
	c.mu.Lock()
	s := c.sessions[sig.From]
	c.mu.Unlock()

	if s == nil || !s.Live() {
		s = c.createSession(sig.From, false)
		if s == nil {
			return
		}
	}

	if err := s.Signal(sig.Signal); err != nil {
		slog.Warn("peer signal failed", "remote", sig.From, "err", err)
	}
}

// ensureSession creates a session for the remote participant unless a
// live one already exists.
func (c *Controller) ensureSession(remoteID string, initiator bool) {
	c.mu.Lock()
	existing := c.sessions[remoteID]
	c.mu.Unlock()
	if existing != nil && existing.Live() {
		return
	}
	c.createSession(remoteID, initiator)
}

// createSession replaces any previous session with the remote participant
// with a fresh one. At most one live session exists per remote peer; a
// superseded session is closed before its replacement is created.
func (c *Controller) createSession(remoteID string, initiator bool) *peer.Session {
	c.mu.Lock()
	old := c.sessions[remoteID]
	delete(c.sessions, remoteID)
	stream := c.localStream
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	s, err := peer.NewSession(remoteID, initiator, c.factory, peer.Callbacks{
		OnSignal:    c.relaySignal,
		OnConnected: c.peerConnected,
		OnControl:   c.peerControl,
		OnClosed:    c.peerClosed,
		OnFailed:    c.peerFailed,
	})
	if err != nil {
		slog.Error("failed to create peer session", "remote", remoteID, "err", err)
		return nil
	}

	if stream != nil {
		if err := s.AttachLocalStream(stream); err != nil {
			slog.Warn("failed to attach local stream", "remote", remoteID, "err", err)
		}
	}

	c.mu.Lock()
	c.sessions[remoteID] = s
	c.mu.Unlock()

	if initiator {
		if err := s.Initiate(); err != nil {
			slog.Warn("failed to initiate peer session", "remote", remoteID, "err", err)
		}
	}
	return s
}

// dropSession closes and forgets the session for a departed participant.
func (c *Controller) dropSession(remoteID string) {
	c.mu.Lock()
	s := c.sessions[remoteID]
	delete(c.sessions, remoteID)
	c.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (c *Controller) relaySignal(remoteID string, signal json.RawMessage) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return
	}
	client.Send(protocol.MustMessage(protocol.TypeSignal, protocol.SignalPayload{
		To:     remoteID,
		Signal: signal,
	}))
}

func (c *Controller) peerConnected(remoteID string, remote *media.Stream) {
	c.registry.Update(remoteID, registry.Update{Stream: remote})
}

func (c *Controller) peerControl(remoteID string, msg *peer.ControlMessage) {
	switch msg.Type {
	case peer.ControlTypeSpeaking:
		var p peer.SpeakingPayload
		if err := msg.DecodePayload(&p); err != nil {
			return
		}
		c.registry.Update(remoteID, registry.Update{IsSpeaking: registry.Bool(p.Speaking)})
	}
}

func (c *Controller) peerClosed(remoteID string) {
	c.registry.Update(remoteID, registry.Update{ClearStream: true})
}

// peerFailed handles a terminal negotiation failure. The failure is
// isolated to the one participant, who stays in the registry without
// media; the rest of the conference is unaffected.
func (c *Controller) peerFailed(remoteID string, err error) {
	slog.Warn("peer session failed", "remote", remoteID, "err", err)
	c.registry.Update(remoteID, registry.Update{ClearStream: true})
}

func (c *Controller) sendMediaState() {
	c.mu.Lock()
	client := c.client
	roomID := c.roomID
	audio := !c.audioMuted
	video := !c.videoOff
	c.mu.Unlock()

	if client == nil || roomID == "" {
		return
	}
	client.Send(protocol.MustMessage(protocol.TypeMediaStateChange, protocol.MediaStatePayload{
		RoomID: roomID,
		Audio:  audio,
		Video:  video,
	}))
}

// replaceVideoTrack swaps the outbound video track across sessions
// sequentially. A per-session failure is logged and skipped; partial
// application is accepted rather than rolled back.
func (c *Controller) replaceVideoTrack(sessions []*peer.Session, track *media.Track, op string) error {
	var errs []error
	for _, s := range sessions {
		if err := s.ReplaceVideoTrack(track); err != nil {
			slog.Warn("video track replacement failed", "remote", s.RemoteID(), "err", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return NewError(op, errors.Join(errs...))
	}
	return nil
}

// reconnect rebuilds the signaling connection with bounded exponential
// backoff and rejoins the room. All previous peer sessions are invalid
// once the transport closed, so they are torn down and renegotiated
// through the fresh membership exchange. The generation token guards
// ownership: a LeaveRoom or fresh JoinRoom during a backoff sleep bumps
// the generation, and this loop must not install its connection over the
// newer one's.
func (c *Controller) reconnect(cause error, gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	attempts := c.cfg.ReconnectAttempts
	roomID := c.roomID
	sessions := c.takeSessionsLocked()
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	c.registry.Clear()

	if attempts <= 0 || roomID == "" {
		slog.Warn("signaling connection lost", "err", cause)
		c.giveUp(gen)
		return false
	}

	delay := reconnectBaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		slog.Info("reconnecting to signaling server", "attempt", attempt, "delay", delay)
		time.Sleep(delay)
		if delay *= 2; delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}

		c.mu.Lock()
		if c.leaving || c.gen != gen {
			c.mu.Unlock()
			return false
		}
		c.mu.Unlock()

		client := signaling.NewClient(c.cfg.WebSocketURL)
		handler := signaling.NewHandler(client)
		if err := client.Connect(); err != nil {
			continue
		}
		go handler.Start()

		c.mu.Lock()
		if c.leaving || c.gen != gen {
			c.mu.Unlock()
			client.Close()
			return false
		}
		c.client = client
		c.handler = handler
		c.mu.Unlock()

		c.sendJoin(roomID)

		ctx, cancel := context.WithTimeout(context.Background(), rejoinTimeout)
		err := c.awaitJoinSuccess(ctx, client, handler, roomID)
		cancel()
		if err != nil {
			client.Close()
			continue
		}

		slog.Info("rejoined room after reconnect", "room", roomID)
		return true
	}

	slog.Error("giving up on signaling reconnect", "attempts", attempts)
	c.giveUp(gen)
	return false
}

// giveUp clears connection state after a failed reconnect, unless a newer
// generation owns the controller by now.
func (c *Controller) giveUp(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.joined = false
	c.client = nil
	c.handler = nil
}

// takeSessionsLocked empties the session map and returns the removed
// sessions. Caller holds c.mu.
func (c *Controller) takeSessionsLocked() []*peer.Session {
	out := make([]*peer.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	c.sessions = make(map[string]*peer.Session)
	return out
}

// liveSessionsLocked snapshots the non-terminal sessions. Caller holds
// c.mu.
func (c *Controller) liveSessionsLocked() []*peer.Session {
	out := make([]*peer.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		if s.Live() {
			out = append(out, s)
		}
	}
	return out
}

func (c *Controller) publishState(sc signaling.StateChange) {
	select {
	case c.states <- sc:
	default:
	}
}

// connectWithContext runs the blocking Connect under the caller's
// context.
func connectWithContext(ctx context.Context, client *signaling.Client) error {
	done := make(chan error, 1)
	go func() {
		done <- client.Connect()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		client.Close()
		return ctx.Err()
	}
}
