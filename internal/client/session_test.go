package client

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

type fakeTransport struct {
	mu     sync.Mutex
	remote domain.UserID

	localTracks []webrtc.TrackLocal
	replaced    []webrtc.TrackLocal
	applied     []webrtc.ICECandidateInit

	remoteDesc     *webrtc.SessionDescription
	offers         int
	restartOffers  int
	answers        int
	closed         bool
	replaceErr     error
	onStateChange  func(webrtc.PeerConnectionState)
	appliedAfterRD bool
}

var _ core.PeerTransport = (*fakeTransport)(nil)

func (f *fakeTransport) AddLocalTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localTracks = append(f.localTracks, track)
	return nil
}

func (f *fakeTransport) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = append(f.replaced, track)
	return nil
}

func (f *fakeTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	if iceRestart {
		f.restartOffers++
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(webrtc.SessionDescription) error { return nil }

func (f *fakeTransport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteDesc = &sdp
	return nil
}

func (f *fakeTransport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteDesc == nil {
		return errors.New("candidate before remote description")
	}
	f.applied = append(f.applied, ci)
	f.appliedAfterRD = true
	return nil
}

func (f *fakeTransport) HasRemoteDescription() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteDesc != nil
}

func (f *fakeTransport) OnICECandidate(func(webrtc.ICECandidateInit)) {}

func (f *fakeTransport) OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (f *fakeTransport) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onStateChange = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) fireState(s webrtc.PeerConnectionState) {
	f.mu.Lock()
	fn := f.onStateChange
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

type sentSDP struct {
	target domain.UserID
	sdp    webrtc.SessionDescription
}

type fakeSignaler struct {
	mu         sync.Mutex
	offers     []sentSDP
	answers    []sentSDP
	candidates []domain.UserID
	shares     []bool
}

func (s *fakeSignaler) SendOffer(target domain.UserID, _ domain.RoomID, sdp webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, sentSDP{target, sdp})
	return nil
}

func (s *fakeSignaler) SendAnswer(target domain.UserID, _ domain.RoomID, sdp webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, sentSDP{target, sdp})
	return nil
}

func (s *fakeSignaler) SendCandidate(target domain.UserID, _ domain.RoomID, _ webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, target)
	return nil
}

func (s *fakeSignaler) ScreenShare(_ domain.RoomID, started bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares = append(s.shares, started)
	return nil
}

type fakeMedia struct {
	mu     sync.Mutex
	audio  webrtc.TrackLocal
	video  webrtc.TrackLocal
	closed bool
}

func newFakeMedia(t *testing.T, withVideo bool) *fakeMedia {
	t.Helper()
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "test")
	require.NoError(t, err)
	m := &fakeMedia{audio: audio}
	if withVideo {
		video, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", "test")
		require.NoError(t, err)
		m.video = video
	}
	return m
}

// newFakeScreen builds a video-only source with a track id distinct
// from the camera fake, so track assertions compare the right thing.
func newFakeScreen(t *testing.T) *fakeMedia {
	t.Helper()
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"screen", "test-screen")
	require.NoError(t, err)
	return &fakeMedia{video: video}
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if m.audio != nil {
		out = append(out, m.audio)
	}
	if m.video != nil {
		out = append(out, m.video)
	}
	return out
}

func (m *fakeMedia) VideoTrack() webrtc.TrackLocal { return m.video }

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type env struct {
	session    *CallSession
	signaler   *fakeSignaler
	media      *fakeMedia
	screen     *fakeMedia
	transports map[domain.UserID]*fakeTransport
	peersDown  []domain.UserID
	mu         sync.Mutex
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		signaler:   &fakeSignaler{},
		transports: make(map[domain.UserID]*fakeTransport),
	}
	e.media = newFakeMedia(t, true)

	sess, err := Start(Options{
		Self:     "alice",
		RoomID:   "room1",
		Media:    domain.MediaVideo,
		Signaler: e.signaler,
		NewTransport: func(remote domain.UserID) (core.PeerTransport, error) {
			tr := &fakeTransport{remote: remote}
			e.mu.Lock()
			e.transports[remote] = tr
			e.mu.Unlock()
			return tr, nil
		},
		Capture: func(domain.MediaKind) (MediaSource, error) { return e.media, nil },
		CaptureScreen: func() (MediaSource, error) {
			e.screen = newFakeScreen(t)
			return e.screen, nil
		},
		OnPeerDown: func(remote domain.UserID) {
			e.mu.Lock()
			e.peersDown = append(e.peersDown, remote)
			e.mu.Unlock()
		},
	})
	require.NoError(t, err)
	e.session = sess
	t.Cleanup(sess.Close)
	return e
}

func (e *env) transport(t *testing.T, remote domain.UserID) *fakeTransport {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.transports[remote]
	require.True(t, ok, "no transport for %s", remote)
	return tr
}

func offer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote-offer"}
}

func answer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote-answer"}
}

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestStartCaptureFailureAbortsSetup(t *testing.T) {
	_, err := Start(Options{
		Self:         "alice",
		Media:        domain.MediaVideo,
		Signaler:     &fakeSignaler{},
		NewTransport: func(domain.UserID) (core.PeerTransport, error) { return &fakeTransport{}, nil },
		Capture:      func(domain.MediaKind) (MediaSource, error) { return nil, errors.New("no camera") },
	})
	assert.ErrorIs(t, err, ErrMediaUnavailable)
}

func TestAddPeerSendsOfferWithLocalTracks(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.session.AddPeer("bob"))

	tr := e.transport(t, "bob")
	assert.Len(t, tr.localTracks, 2, "audio and video attached before the offer")
	assert.Equal(t, 1, tr.offers)

	require.Len(t, e.signaler.offers, 1)
	assert.Equal(t, domain.UserID("bob"), e.signaler.offers[0].target)
}

func TestCandidatesQueuedUntilRemoteDescription(t *testing.T) {
	e := newEnv(t)

	// Candidates race ahead of the offer; none may touch the transport yet.
	require.NoError(t, e.session.HandleCandidate("bob", cand("c1")))
	require.NoError(t, e.session.HandleCandidate("bob", cand("c2")))
	require.NoError(t, e.session.HandleCandidate("bob", cand("c3")))

	tr := e.transport(t, "bob")
	assert.Empty(t, tr.applied)

	require.NoError(t, e.session.HandleOffer("bob", offer()))

	require.Len(t, tr.applied, 3)
	assert.Equal(t, "c1", tr.applied[0].Candidate)
	assert.Equal(t, "c2", tr.applied[1].Candidate)
	assert.Equal(t, "c3", tr.applied[2].Candidate)
	assert.True(t, tr.appliedAfterRD)

	// Later candidates apply straight away.
	require.NoError(t, e.session.HandleCandidate("bob", cand("c4")))
	require.Len(t, tr.applied, 4)
	assert.Equal(t, "c4", tr.applied[3].Candidate)
}

func TestHandleOfferAnswers(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.session.HandleOffer("bob", offer()))

	tr := e.transport(t, "bob")
	assert.Equal(t, 1, tr.answers)
	assert.Len(t, tr.localTracks, 2)

	require.Len(t, e.signaler.answers, 1)
	assert.Equal(t, domain.UserID("bob"), e.signaler.answers[0].target)
}

func TestHandleAnswerFlushesQueue(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.HandleCandidate("bob", cand("c1")))
	require.NoError(t, e.session.HandleCandidate("bob", cand("c2")))

	tr := e.transport(t, "bob")
	assert.Empty(t, tr.applied)

	require.NoError(t, e.session.HandleAnswer("bob", answer()))

	require.Len(t, tr.applied, 2)
	assert.Equal(t, "c1", tr.applied[0].Candidate)
	assert.Equal(t, "c2", tr.applied[1].Candidate)
}

func TestHandleAnswerUnknownPeerDropped(t *testing.T) {
	e := newEnv(t)
	assert.NoError(t, e.session.HandleAnswer("ghost", answer()))
}

func TestRemovePeerLeavesOthersIntact(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.AddPeer("carol"))

	e.session.RemovePeer("bob")

	assert.True(t, e.transport(t, "bob").closed)
	assert.False(t, e.transport(t, "carol").closed)
	assert.Equal(t, []domain.UserID{"carol"}, e.session.Peers())
}

func TestScreenShareSwapsTrackAndRenegotiates(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.AddPeer("carol"))

	require.NoError(t, e.session.StartScreenShare())

	for _, remote := range []domain.UserID{"bob", "carol"} {
		tr := e.transport(t, remote)
		require.Len(t, tr.replaced, 1)
		assert.Equal(t, e.screen.video, tr.replaced[0])
		assert.Equal(t, 2, tr.offers, "one initial offer, one renegotiation")
		assert.False(t, tr.closed, "share must not tear the connection down")
	}
	assert.Equal(t, []bool{true}, e.signaler.shares)

	// Starting again while live is a no-op.
	require.NoError(t, e.session.StartScreenShare())
	assert.Equal(t, []bool{true}, e.signaler.shares)

	screen := e.screen
	require.NoError(t, e.session.StopScreenShare())

	assert.True(t, screen.closed)
	assert.False(t, e.media.closed)
	tr := e.transport(t, "bob")
	require.Len(t, tr.replaced, 2)
	assert.Equal(t, e.media.video, tr.replaced[1], "camera track restored")
	assert.Equal(t, []bool{true, false}, e.signaler.shares)
}

func TestScreenShareCaptureFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	e.session.opts.CaptureScreen = func() (MediaSource, error) { return nil, errors.New("denied") }

	err := e.session.StartScreenShare()
	assert.ErrorIs(t, err, ErrMediaUnavailable)
	assert.Empty(t, e.transport(t, "bob").replaced)
	assert.Empty(t, e.signaler.shares)
}

func TestScreenShareSwapFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.AddPeer("carol"))
	e.transport(t, "carol").replaceErr = errors.New("sender gone")

	err := e.session.StartScreenShare()
	require.Error(t, err)

	assert.True(t, e.screen.closed, "failed share must release the screen source")
	assert.Empty(t, e.signaler.shares, "failed share must not be announced")

	// Whichever peers got the screen track before the failure are back
	// on the camera.
	bob := e.transport(t, "bob")
	if n := len(bob.replaced); n > 0 {
		assert.Equal(t, e.media.video, bob.replaced[n-1])
	}

	// The session is not stuck in a half-shared state.
	require.NoError(t, e.session.StopScreenShare())
	assert.Empty(t, e.signaler.shares)
}

func TestNewPeerDuringShareGetsScreenTrack(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.StartScreenShare())

	require.NoError(t, e.session.AddPeer("carol"))

	tr := e.transport(t, "carol")
	assert.Contains(t, tr.localTracks, e.screen.video)
	assert.NotContains(t, tr.localTracks, e.media.video)
}

func TestPeerFailureRestartsIceOnce(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	tr := e.transport(t, "bob")

	tr.fireState(webrtc.PeerConnectionStateFailed)

	assert.Equal(t, 1, tr.restartOffers)
	assert.False(t, tr.closed)

	tr.fireState(webrtc.PeerConnectionStateFailed)

	assert.Equal(t, 1, tr.restartOffers, "no second restart")
	assert.True(t, tr.closed)
	assert.Equal(t, []domain.UserID{"bob"}, e.peersDown)
	assert.Empty(t, e.session.Peers())
}

func TestCloseReleasesEverything(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.session.AddPeer("bob"))
	require.NoError(t, e.session.StartScreenShare())
	screen := e.screen

	e.session.Close()

	assert.True(t, e.media.closed)
	assert.True(t, screen.closed)
	assert.True(t, e.transport(t, "bob").closed)

	assert.ErrorIs(t, e.session.AddPeer("carol"), ErrSessionClosed)
	e.session.Close() // idempotent
}
