// Package wire defines the signaling protocol: event names and the
// JSON payloads exchanged over the persistent per-client channel. Every
// frame is a JSON object whose "type" field selects the event.
package wire

import (
	"encoding/json"

	"github.com/avrek/huddle/internal/domain"
)

// Client -> server events.
const (
	EvUserJoin        = "user:join"
	EvUserCheckOnline = "user:check-online"

	EvCallInitiate = "call:initiate"
	EvCallAccept   = "call:accept"
	EvCallReject   = "call:reject"
	EvCallEnd      = "call:end"

	EvGroupInitiate    = "group-call:initiate"
	EvGroupJoin        = "group-call:join"
	EvGroupLeave       = "group-call:leave"
	EvGroupCheckActive = "group-call:check-active"

	EvOffer     = "webrtc:offer"
	EvAnswer    = "webrtc:answer"
	EvCandidate = "webrtc:ice-candidate"

	EvGroupOffer     = "group-call:offer"
	EvGroupAnswer    = "group-call:answer"
	EvGroupCandidate = "group-call:ice-candidate"

	EvScreenShareStarted = "group-call:screen-share-started"
	EvScreenShareStopped = "group-call:screen-share-stopped"
)

// Server -> client events.
const (
	EvUserOnline       = "user:online"
	EvUserOffline      = "user:offline"
	EvUserOnlineStatus = "user:online-status"

	EvCallIncoming    = "call:incoming"
	EvCallRoomCreated = "call:room-created"
	EvCallUserOffline = "call:user-offline"
	EvCallAccepted    = "call:accepted"
	EvCallRejected    = "call:rejected"
	EvCallEnded       = "call:ended"
	EvCallError       = "call:error"

	EvGroupIncoming             = "group-call:incoming"
	EvGroupActiveStatus         = "group-call:active-status"
	EvGroupExistingParticipants = "group-call:existing-participants"
	EvGroupUserJoined           = "group-call:user-joined"
	EvGroupUserLeft             = "group-call:user-left"
)

// Envelope carries only the event discriminator; handlers re-decode the
// full payload once the type is known.
type Envelope struct {
	Type string `json:"type"`
}

type UserJoin struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type CheckOnline struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type OnlineStatus struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Online bool          `json:"isOnline"`
}

type PresenceChange struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type CallInitiate struct {
	Type         string           `json:"type"`
	CallerID     domain.UserID    `json:"callerId"`
	CallerName   string           `json:"callerName"`
	CallerAvatar string           `json:"callerAvatar,omitempty"`
	ReceiverID   domain.UserID    `json:"receiverId"`
	CallType     domain.MediaKind `json:"callType"`
}

type CallIncoming struct {
	Type         string           `json:"type"`
	RoomID       domain.RoomID    `json:"roomId"`
	CallerID     domain.UserID    `json:"callerId"`
	CallerName   string           `json:"callerName"`
	CallerAvatar string           `json:"callerAvatar,omitempty"`
	CallType     domain.MediaKind `json:"callType"`
}

type RoomCreated struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type UserUnreachable struct {
	Type       string        `json:"type"`
	ReceiverID domain.UserID `json:"receiverId"`
}

type CallAccept struct {
	Type           string        `json:"type"`
	RoomID         domain.RoomID `json:"roomId"`
	AccepterID     domain.UserID `json:"accepterId"`
	AccepterName   string        `json:"accepterName,omitempty"`
	AccepterAvatar string        `json:"accepterAvatar,omitempty"`
}

type CallAccepted struct {
	Type       string        `json:"type"`
	RoomID     domain.RoomID `json:"roomId"`
	AccepterID domain.UserID `json:"accepterId"`
}

type CallReject struct {
	Type       string        `json:"type"`
	RoomID     domain.RoomID `json:"roomId"`
	RejecterID domain.UserID `json:"rejecterId"`
}

type CallRejected struct {
	Type       string        `json:"type"`
	RoomID     domain.RoomID `json:"roomId"`
	RejecterID domain.UserID `json:"rejecterId"`
}

// CallEnd carries a client-claimed duration for compatibility with old
// clients; the persisted record always uses the server-derived value.
type CallEnd struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	Duration int           `json:"duration,omitempty"`
}

type CallEnded struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	EndedBy  domain.UserID `json:"endedBy"`
	Duration int           `json:"duration"`
	Reason   string        `json:"reason,omitempty"`
}

type CallError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type GroupInitiate struct {
	Type         string           `json:"type"`
	CallerID     domain.UserID    `json:"callerId"`
	CallerName   string           `json:"callerName"`
	CallerAvatar string           `json:"callerAvatar,omitempty"`
	GroupID      domain.GroupID   `json:"groupId"`
	GroupName    string           `json:"groupName,omitempty"`
	MemberIDs    []domain.UserID  `json:"memberIds"`
	CallType     domain.MediaKind `json:"callType"`
}

type GroupIncoming struct {
	Type         string           `json:"type"`
	RoomID       domain.RoomID    `json:"roomId"`
	CallerID     domain.UserID    `json:"callerId"`
	CallerName   string           `json:"callerName"`
	CallerAvatar string           `json:"callerAvatar,omitempty"`
	GroupID      domain.GroupID   `json:"groupId"`
	GroupName    string           `json:"groupName,omitempty"`
	CallType     domain.MediaKind `json:"callType"`
}

type GroupCheckActive struct {
	Type    string         `json:"type"`
	GroupID domain.GroupID `json:"groupId"`
}

type GroupActiveStatus struct {
	Type          string               `json:"type"`
	GroupID       domain.GroupID       `json:"groupId"`
	HasActiveCall bool                 `json:"hasActiveCall"`
	RoomID        domain.RoomID        `json:"roomId,omitempty"`
	Participants  []domain.Participant `json:"participants,omitempty"`
	CallType      domain.MediaKind     `json:"callType,omitempty"`
}

type GroupJoin struct {
	Type       string        `json:"type"`
	RoomID     domain.RoomID `json:"roomId"`
	UserID     domain.UserID `json:"userId"`
	UserName   string        `json:"userName"`
	UserAvatar string        `json:"userAvatar,omitempty"`
}

type GroupExistingParticipants struct {
	Type         string               `json:"type"`
	RoomID       domain.RoomID        `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type GroupUserJoined struct {
	Type       string        `json:"type"`
	RoomID     domain.RoomID `json:"roomId"`
	UserID     domain.UserID `json:"userId"`
	UserName   string        `json:"userName"`
	UserAvatar string        `json:"userAvatar,omitempty"`
}

type GroupLeave struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type GroupUserLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

// Relay is the shape of every blindly-forwarded signaling message:
// offers, answers and ICE candidates, both private and group. Payload
// is opaque to the broker. FromUserID is stamped server-side from the
// authenticated session, never trusted from the sender.
type Relay struct {
	Type         string          `json:"type"`
	RoomID       domain.RoomID   `json:"roomId"`
	Payload      json.RawMessage `json:"payload"`
	TargetUserID domain.UserID   `json:"targetUserId,omitempty"`
	FromUserID   domain.UserID   `json:"fromUserId,omitempty"`
	SenderName   string          `json:"senderName,omitempty"`
}

type ScreenShare struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName,omitempty"`
}
