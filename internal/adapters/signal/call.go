package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

func (ctl *Controller) handleCallInitiate(sess *session, data []byte) {
	var p wire.CallInitiate
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call:initiate payload")
		ctl.sendJSON(sess.conn, wire.CallError{Type: wire.EvCallError, Reason: "bad_payload"})
		return
	}
	caller := domain.Participant{
		// Identity comes from the session, never from the payload.
		ID:       sess.uid,
		Username: p.CallerName,
		Avatar:   p.CallerAvatar,
	}
	log.Info().Str("module", "signal").Str("caller", string(sess.uid)).Str("callee", string(p.ReceiverID)).Msg("call initiate")
	ctl.Broker.InitiatePrivate(caller, p.ReceiverID, p.CallType)
}

func (ctl *Controller) handleCallAccept(sess *session, data []byte) {
	var p wire.CallAccept
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call:accept payload")
		return
	}
	ctl.Broker.Accept(p.RoomID, domain.Participant{
		ID:       sess.uid,
		Username: p.AccepterName,
		Avatar:   p.AccepterAvatar,
	})
}

func (ctl *Controller) handleCallReject(sess *session, data []byte) {
	var p wire.CallReject
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call:reject payload")
		return
	}
	ctl.Broker.Reject(p.RoomID, sess.uid)
}

func (ctl *Controller) handleCallEnd(sess *session, data []byte) {
	var p wire.CallEnd
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad call:end payload")
		return
	}
	ctl.Broker.End(p.RoomID, sess.uid, p.Duration)
}
