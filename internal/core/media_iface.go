package core

import "github.com/pion/webrtc/v4"

// PeerTransport abstracts one peer connection toward a single remote
// participant. The call session owns candidate ordering and
// renegotiation policy; the transport only moves SDP/ICE.
type PeerTransport interface {
	// AddLocalTrack attaches an outgoing track. Must be called before
	// the offer/answer that should carry it.
	AddLocalTrack(track webrtc.TrackLocal) error
	// ReplaceVideoTrack substitutes the outgoing video track in place,
	// without tearing the connection down.
	ReplaceVideoTrack(track webrtc.TrackLocal) error

	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote candidate. Callers must ensure
	// the remote description is already set.
	AddICECandidate(webrtc.ICECandidateInit) error
	HasRemoteDescription() bool

	// OnICECandidate sets a callback for newly gathered local candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback for incoming remote tracks.
	OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	OnStateChange(func(webrtc.PeerConnectionState))

	Close() error
}
