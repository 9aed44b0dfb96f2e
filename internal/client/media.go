package client

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/avrek/huddle/internal/domain"
)

// ErrMediaUnavailable wraps any capture failure (no device, permission
// denied). Callers treat it as a hard abort of the call attempt.
var ErrMediaUnavailable = errors.New("media unavailable")

// MediaSource owns a set of local tracks for the duration of one call.
// Close must release the underlying device or generator; the session
// calls it on every exit path.
type MediaSource interface {
	// Tracks returns every outgoing track, audio first.
	Tracks() []webrtc.TrackLocal
	// VideoTrack returns the video track, or nil for audio-only sources.
	VideoTrack() webrtc.TrackLocal
	Close() error
}

// CaptureFunc acquires camera/microphone media for the given kind.
type CaptureFunc func(kind domain.MediaKind) (MediaSource, error)

// ScreenCaptureFunc acquires a screen capture source. Its video track
// replaces the camera track for the share's duration.
type ScreenCaptureFunc func() (MediaSource, error)
