// Package rtc wraps a pion PeerConnection as a core.PeerTransport.
package rtc

import (
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
)

var ErrNoVideoSender = errors.New("no video sender on connection")

type Transport struct {
	pc     *webrtc.PeerConnection
	remote domain.UserID
}

func DefaultConfig(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
}

func New(cfg webrtc.Configuration, remote domain.UserID) (*Transport, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Transport{pc: pc, remote: remote}, nil
}

func (t *Transport) AddLocalTrack(track webrtc.TrackLocal) error {
	_, err := t.pc.AddTrack(track)
	return err
}

// ReplaceVideoTrack swaps the outgoing video track in place. The
// connection stays up; no new ICE gathering cycle starts.
func (t *Transport) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	for _, sender := range t.pc.GetSenders() {
		cur := sender.Track()
		if cur != nil && cur.Kind() == webrtc.RTPCodecTypeVideo {
			return sender.ReplaceTrack(track)
		}
	}
	return ErrNoVideoSender
}

func (t *Transport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	return t.pc.CreateOffer(opts)
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

func (t *Transport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(ci)
}

func (t *Transport) HasRemoteDescription() bool {
	return t.pc.RemoteDescription() != nil
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (t *Transport) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("remote", string(t.remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		fn(track, receiver)
	})
}

func (t *Transport) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("remote", string(t.remote)).Str("state", s.String()).Msg("peer state")
		fn(s)
	})
}

func (t *Transport) Close() error {
	err := t.pc.Close()
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", string(t.remote)).Msg("close error")
	}
	return err
}
