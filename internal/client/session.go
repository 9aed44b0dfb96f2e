// Package client drives the peer side of a call: one transport per
// remote participant (mesh), candidate queueing, renegotiation and
// scoped media ownership.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

var (
	ErrSessionClosed = errors.New("call session closed")
	ErrNoSuchPeer    = errors.New("no peer for remote")
)

// Signaler carries SDP and ICE toward the signaling server. Targets are
// always a single remote; the server forwards without inspecting.
type Signaler interface {
	SendOffer(target domain.UserID, roomID domain.RoomID, sdp webrtc.SessionDescription) error
	SendAnswer(target domain.UserID, roomID domain.RoomID, sdp webrtc.SessionDescription) error
	SendCandidate(target domain.UserID, roomID domain.RoomID, ci webrtc.ICECandidateInit) error
	ScreenShare(roomID domain.RoomID, started bool) error
}

// TransportFactory builds a fresh transport toward one remote.
type TransportFactory func(remote domain.UserID) (core.PeerTransport, error)

type Options struct {
	Self   domain.UserID
	RoomID domain.RoomID
	Media  domain.MediaKind

	Signaler     Signaler
	NewTransport TransportFactory
	Capture      CaptureFunc
	// CaptureScreen is optional; StartScreenShare fails without it.
	CaptureScreen ScreenCaptureFunc

	// OnRemoteTrack fires for each incoming track, tagged with the
	// remote it came from. Optional.
	OnRemoteTrack func(remote domain.UserID, track *webrtc.TrackRemote)
	// OnPeerDown fires when a peer is torn down after a failed ICE
	// restart. Optional.
	OnPeerDown func(remote domain.UserID)
}

// CallSession owns every peer connection and the local media for one
// call. All methods are safe for concurrent use.
type CallSession struct {
	mu    sync.Mutex
	opts  Options
	media MediaSource
	// screen is non-nil while a screen share is live; its video track
	// replaces the camera track on every peer.
	screen MediaSource
	peers  map[domain.UserID]*peer
	closed bool
}

// Start acquires local media and returns a session with no peers yet.
// A capture failure aborts the whole call attempt; nothing is left
// held, and the caller is expected to reject/leave over signaling.
func Start(opts Options) (*CallSession, error) {
	if opts.Signaler == nil || opts.NewTransport == nil || opts.Capture == nil {
		return nil, errors.New("client: signaler, transport factory and capture are required")
	}
	if !opts.Media.Valid() {
		return nil, fmt.Errorf("client: bad media kind %q", opts.Media)
	}

	media, err := opts.Capture(opts.Media)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	log.Info().Str("module", "client").Str("room", string(opts.RoomID)).Str("media", string(opts.Media)).Msg("call session started")
	return &CallSession{
		opts:  opts,
		media: media,
		peers: make(map[domain.UserID]*peer),
	}, nil
}

// AddPeer creates a connection toward remote and sends the initial
// offer. Used when we are the established side and a new participant
// joined, or by the callee of a private call once accepted.
func (s *CallSession) AddPeer(remote domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	p, err := s.ensurePeerLocked(remote)
	if err != nil {
		return err
	}
	return s.offerLocked(p, false)
}

// HandleOffer answers an incoming offer from remote, creating the peer
// if needed. Queued candidates are flushed as soon as the remote
// description lands, in arrival order.
func (s *CallSession) HandleOffer(remote domain.UserID, sdp webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	p, err := s.ensurePeerLocked(remote)
	if err != nil {
		return err
	}
	if err := p.transport.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote offer from %s: %w", remote, err)
	}
	p.remoteSet = true
	if err := p.flush(); err != nil {
		return fmt.Errorf("flush candidates for %s: %w", remote, err)
	}

	answer, err := p.transport.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer for %s: %w", remote, err)
	}
	if err := p.transport.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer for %s: %w", remote, err)
	}
	return s.opts.Signaler.SendAnswer(remote, s.opts.RoomID, answer)
}

// HandleAnswer completes an offer we sent earlier. Answers for unknown
// peers are dropped; the peer was removed while the answer was in
// flight.
func (s *CallSession) HandleAnswer(remote domain.UserID, sdp webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	p, ok := s.peers[remote]
	if !ok {
		log.Debug().Str("module", "client").Str("remote", string(remote)).Msg("answer for unknown peer, dropped")
		return nil
	}
	if err := p.transport.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote answer from %s: %w", remote, err)
	}
	p.remoteSet = true
	return p.flush()
}

// HandleCandidate applies or queues a remote ICE candidate. Candidates
// arriving before the peer exists are queued too, so signaling races
// cannot drop them.
func (s *CallSession) HandleCandidate(remote domain.UserID, ci webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	p, ok := s.peers[remote]
	if !ok {
		var err error
		p, err = s.ensurePeerLocked(remote)
		if err != nil {
			return err
		}
	}
	return p.queueOrApply(ci)
}

// RemovePeer tears down the connection toward one remote, leaving the
// rest of the mesh intact.
func (s *CallSession) RemovePeer(remote domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePeerLocked(remote)
}

func (s *CallSession) removePeerLocked(remote domain.UserID) {
	p, ok := s.peers[remote]
	if !ok {
		return
	}
	delete(s.peers, remote)
	_ = p.transport.Close()
	log.Info().Str("module", "client").Str("remote", string(remote)).Msg("peer removed")
}

// Peers returns the remotes we currently hold a connection toward.
func (s *CallSession) Peers() []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserID, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	return out
}

// StartScreenShare swaps the outgoing video track for a screen capture
// on every peer, renegotiates each connection and announces the share.
// The camera source stays open underneath for when the share ends.
func (s *CallSession) StartScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.screen != nil {
		return nil
	}
	if s.opts.CaptureScreen == nil {
		return fmt.Errorf("%w: no screen capture configured", ErrMediaUnavailable)
	}

	screen, err := s.opts.CaptureScreen()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	track := screen.VideoTrack()
	if track == nil {
		_ = screen.Close()
		return fmt.Errorf("%w: screen source has no video track", ErrMediaUnavailable)
	}

	s.screen = screen
	if err := s.swapVideoLocked(track); err != nil {
		s.screen = nil
		// Peers swapped before the failure still hold the screen track;
		// put the camera back before the source goes away.
		if cam := s.media.VideoTrack(); cam != nil {
			s.revertVideoLocked(cam)
		}
		_ = screen.Close()
		return err
	}
	return s.opts.Signaler.ScreenShare(s.opts.RoomID, true)
}

// StopScreenShare restores the camera video track and releases the
// screen source. No-op when no share is live.
func (s *CallSession) StopScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.screen == nil {
		return nil
	}

	screen := s.screen
	s.screen = nil
	_ = screen.Close()

	if cam := s.media.VideoTrack(); cam != nil {
		if err := s.swapVideoLocked(cam); err != nil {
			return err
		}
	}
	return s.opts.Signaler.ScreenShare(s.opts.RoomID, false)
}

// swapVideoLocked replaces the video track on every peer and sends a
// fresh offer so remotes pick up the new track parameters. Existing
// connections stay up throughout.
func (s *CallSession) swapVideoLocked(track webrtc.TrackLocal) error {
	for remote, p := range s.peers {
		if err := p.transport.ReplaceVideoTrack(track); err != nil {
			return fmt.Errorf("replace video for %s: %w", remote, err)
		}
		if err := s.offerLocked(p, false); err != nil {
			return err
		}
	}
	return nil
}

// revertVideoLocked is the best-effort error path of a failed swap:
// every peer goes back to the given track, failures only logged.
func (s *CallSession) revertVideoLocked(track webrtc.TrackLocal) {
	for remote, p := range s.peers {
		if err := p.transport.ReplaceVideoTrack(track); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("remote", string(remote)).Msg("video revert failed")
		}
	}
}

// Close tears down every peer and releases all media. Safe to call
// more than once.
func (s *CallSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for remote, p := range s.peers {
		_ = p.transport.Close()
		delete(s.peers, remote)
	}
	if s.screen != nil {
		_ = s.screen.Close()
		s.screen = nil
	}
	_ = s.media.Close()
	log.Info().Str("module", "client").Str("room", string(s.opts.RoomID)).Msg("call session closed")
}

func (s *CallSession) ensurePeerLocked(remote domain.UserID) (*peer, error) {
	if p, ok := s.peers[remote]; ok {
		return p, nil
	}

	t, err := s.opts.NewTransport(remote)
	if err != nil {
		return nil, fmt.Errorf("transport for %s: %w", remote, err)
	}
	for _, track := range s.currentTracksLocked() {
		if err := t.AddLocalTrack(track); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("add track for %s: %w", remote, err)
		}
	}

	p := &peer{remote: remote, transport: t}
	s.peers[remote] = p

	t.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if err := s.opts.Signaler.SendCandidate(remote, s.opts.RoomID, ci); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("remote", string(remote)).Msg("candidate send failed")
		}
	})
	t.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if s.opts.OnRemoteTrack != nil {
			s.opts.OnRemoteTrack(remote, track)
		}
	})
	t.OnStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed {
			s.peerFailed(remote)
		}
	})
	return p, nil
}

// currentTracksLocked is the track set a brand-new peer should carry:
// the camera/mic set, with the video slot taken by the live screen
// share if one is up.
func (s *CallSession) currentTracksLocked() []webrtc.TrackLocal {
	tracks := s.media.Tracks()
	if s.screen == nil {
		return tracks
	}
	screenVideo := s.screen.VideoTrack()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, tr := range tracks {
		if tr == s.media.VideoTrack() {
			out = append(out, screenVideo)
			continue
		}
		out = append(out, tr)
	}
	return out
}

func (s *CallSession) offerLocked(p *peer, iceRestart bool) error {
	offer, err := p.transport.CreateOffer(iceRestart)
	if err != nil {
		return fmt.Errorf("create offer for %s: %w", p.remote, err)
	}
	if err := p.transport.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer for %s: %w", p.remote, err)
	}
	return s.opts.Signaler.SendOffer(p.remote, s.opts.RoomID, offer)
}

// peerFailed runs on a transport callback goroutine. First failure
// gets one ICE restart; a repeat failure drops the peer and reports it
// as departed.
func (s *CallSession) peerFailed(remote domain.UserID) {
	s.mu.Lock()
	p, ok := s.peers[remote]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	if !p.restarted {
		p.restarted = true
		err := s.offerLocked(p, true)
		s.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Str("remote", string(remote)).Msg("ice restart failed")
		} else {
			log.Info().Str("module", "client").Str("remote", string(remote)).Msg("ice restart sent")
		}
		return
	}
	s.removePeerLocked(remote)
	s.mu.Unlock()
	if s.opts.OnPeerDown != nil {
		s.opts.OnPeerDown(remote)
	}
}
