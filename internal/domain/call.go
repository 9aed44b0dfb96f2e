package domain

import "errors"

type CallKind string

const (
	KindPrivate CallKind = "private"
	KindGroup   CallKind = "group"
)

// MediaKind is fixed for a room's lifetime. Screen share is a track
// substitution, not a media kind change.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

func (m MediaKind) Valid() bool {
	return m == MediaVideo || m == MediaAudio
}

// CallState is the explicit private-call state machine. Group rooms do
// not use it beyond Active (membership is presence-based).
type CallState string

const (
	StateRinging    CallState = "ringing"
	StateConnecting CallState = "connecting"
	StateActive     CallState = "active"
	StateEnded      CallState = "ended"
)

var ErrBadTransition = errors.New("invalid call state transition")

// Transition validates a state change; handlers must go through it
// instead of inferring state from which event fired.
func (s CallState) Transition(next CallState) (CallState, error) {
	ok := false
	switch s {
	case StateRinging:
		ok = next == StateConnecting || next == StateEnded
	case StateConnecting:
		ok = next == StateActive || next == StateEnded
	case StateActive:
		ok = next == StateEnded
	}
	if !ok {
		return s, ErrBadTransition
	}
	return next, nil
}

type CallOutcome string

const (
	OutcomeAnswered CallOutcome = "answered"
	OutcomeMissed   CallOutcome = "missed"
	OutcomeRejected CallOutcome = "rejected"
)

// CallRecord is the terminal summary handed to the durable sink once a
// private call finishes. Duration is derived from server timestamps,
// never from a client-reported value.
type CallRecord struct {
	From            UserID      `json:"fromUserId"`
	To              UserID      `json:"toUserId"`
	Media           MediaKind   `json:"callType"`
	DurationSeconds int         `json:"durationSeconds"`
	Outcome         CallOutcome `json:"outcome"`
}
