package app

import (
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

// InitiateGroup starts or joins the active call for a group. The room
// is looked up by group first: if one exists the caller joins it like
// anyone else, otherwise the caller becomes initiator and fans
// invitations to every member that is currently present. Absent
// members never see it; group calls keep no missed-call records.
func (b *Broker) InitiateGroup(caller domain.Participant, group domain.GroupID, groupName string, members []domain.UserID, media domain.MediaKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limiter != nil && !b.limiter.Allow(caller.ID) {
		log.Warn().Str("module", "app.broker").Str("caller", string(caller.ID)).Msg("group initiate rate limited")
		b.sendTo(caller.ID, wire.CallError{Type: wire.EvCallError, Reason: "rate_limited"})
		return
	}
	if !media.Valid() {
		media = domain.MediaVideo
	}

	room, created := b.rooms.GetOrCreateGroup(group, groupName, media)
	if !created {
		b.joinGroupLocked(room, caller)
		return
	}

	if err := b.rooms.AddParticipant(room.ID, caller); err != nil {
		log.Warn().Err(err).Str("module", "app.broker").Str("room", string(room.ID)).Msg("group initiate add caller")
		return
	}

	invite := wire.GroupIncoming{
		Type:         wire.EvGroupIncoming,
		RoomID:       room.ID,
		CallerID:     caller.ID,
		CallerName:   caller.Username,
		CallerAvatar: caller.Avatar,
		GroupID:      group,
		GroupName:    groupName,
		CallType:     media,
	}
	for _, member := range members {
		if member == caller.ID {
			continue
		}
		b.sendTo(member, invite)
	}
	b.sendTo(caller.ID, wire.RoomCreated{Type: wire.EvCallRoomCreated, RoomID: room.ID})
}

// JoinGroup adds a participant to an existing group call. A missing
// room means the call ended while the join was in flight; dropped.
func (b *Broker) JoinGroup(roomID domain.RoomID, joiner domain.Participant) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok || room.Kind != domain.KindGroup {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("join on missing room ignored")
		return
	}
	b.joinGroupLocked(room, joiner)
}

// joinGroupLocked sends the joiner the current participant list BEFORE
// anyone is told about the joiner. Existing participants then create
// the offers toward the new member; the joiner only answers. Breaking
// this order races the joiner's setup against "user joined" notices it
// cannot yet handle.
func (b *Broker) joinGroupLocked(room *domain.Room, joiner domain.Participant) {
	if room.Has(joiner.ID) {
		log.Debug().Str("module", "app.broker").Str("room", string(room.ID)).Str("user", string(joiner.ID)).Msg("already in room")
		return
	}

	existing := room.DisplayList()
	b.sendTo(joiner.ID, wire.GroupExistingParticipants{
		Type:         wire.EvGroupExistingParticipants,
		RoomID:       room.ID,
		Participants: existing,
	})

	if err := b.rooms.AddParticipant(room.ID, joiner); err != nil {
		log.Warn().Err(err).Str("module", "app.broker").Str("room", string(room.ID)).Msg("group join add participant")
		return
	}

	joined := wire.GroupUserJoined{
		Type:       wire.EvGroupUserJoined,
		RoomID:     room.ID,
		UserID:     joiner.ID,
		UserName:   joiner.Username,
		UserAvatar: joiner.Avatar,
	}
	for _, p := range existing {
		b.sendTo(p.ID, joined)
	}
}

// LeaveGroup removes a participant; every remaining member is told so
// it tears down its peer connection to the departed identity.
func (b *Broker) LeaveGroup(roomID domain.RoomID, uid domain.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("leave on missing room ignored")
		return
	}
	b.leaveGroupLocked(room, uid)
}

func (b *Broker) leaveGroupLocked(room *domain.Room, uid domain.UserID) {
	remaining, deleted, err := b.rooms.RemoveParticipant(room.ID, uid)
	if err != nil {
		return
	}
	left := wire.GroupUserLeft{Type: wire.EvGroupUserLeft, RoomID: room.ID, UserID: uid}
	for _, r := range remaining {
		b.sendTo(r, left)
	}
	if deleted {
		log.Info().Str("module", "app.broker").Str("room", string(room.ID)).Msg("group call ended")
	}
}

// CheckActiveGroup answers the joinable-call discovery query on the
// requester's own connection.
func (b *Broker) CheckActiveGroup(requester domain.UserID, group domain.GroupID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := wire.GroupActiveStatus{Type: wire.EvGroupActiveStatus, GroupID: group}
	if room, ok := b.rooms.ActiveGroupRoom(group); ok {
		status.HasActiveCall = true
		status.RoomID = room.ID
		status.Participants = room.DisplayList()
		status.CallType = room.Media
	}
	b.sendTo(requester, status)
}
