package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

func (ctl *Controller) handleGroupInitiate(sess *session, data []byte) {
	var p wire.GroupInitiate
	if err := json.Unmarshal(data, &p); err != nil || p.GroupID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad group-call:initiate payload")
		ctl.sendJSON(sess.conn, wire.CallError{Type: wire.EvCallError, Reason: "bad_payload"})
		return
	}
	caller := domain.Participant{ID: sess.uid, Username: p.CallerName, Avatar: p.CallerAvatar}
	log.Info().Str("module", "signal").Str("caller", string(sess.uid)).Str("group", string(p.GroupID)).Msg("group call initiate")
	ctl.Broker.InitiateGroup(caller, p.GroupID, p.GroupName, p.MemberIDs, p.CallType)
}

func (ctl *Controller) handleGroupJoin(sess *session, data []byte) {
	var p wire.GroupJoin
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad group-call:join payload")
		return
	}
	ctl.Broker.JoinGroup(p.RoomID, domain.Participant{
		ID:       sess.uid,
		Username: p.UserName,
		Avatar:   p.UserAvatar,
	})
}

func (ctl *Controller) handleGroupLeave(sess *session, data []byte) {
	var p wire.GroupLeave
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad group-call:leave payload")
		return
	}
	ctl.Broker.LeaveGroup(p.RoomID, sess.uid)
}

func (ctl *Controller) handleGroupCheckActive(sess *session, data []byte) {
	var p wire.GroupCheckActive
	if err := json.Unmarshal(data, &p); err != nil || p.GroupID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad group-call:check-active payload")
		return
	}
	ctl.Broker.CheckActiveGroup(sess.uid, p.GroupID)
}
