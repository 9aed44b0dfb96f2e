package app

import "github.com/avrek/huddle/internal/domain"

type BackpressureAction int

const (
	// ActionDrop loses the frame; the peer will learn about the state
	// it missed through later events.
	ActionDrop BackpressureAction = iota
	// ActionDisconnect treats the slow connection as dead and runs the
	// normal disconnect reconciliation for it.
	ActionDisconnect
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnSendFailure(id domain.UserID, err error) BackpressureAction
}

// DropPolicy never escalates; notifications are best-effort anyway.
type DropPolicy struct{}

func (DropPolicy) OnSendFailure(domain.UserID, error) BackpressureAction { return ActionDrop }

// DisconnectPolicy kicks a client that cannot drain its send buffer.
type DisconnectPolicy struct{}

func (DisconnectPolicy) OnSendFailure(domain.UserID, error) BackpressureAction {
	return ActionDisconnect
}
