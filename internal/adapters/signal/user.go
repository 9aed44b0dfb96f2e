package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/wire"
)

func (ctl *Controller) handleUserJoin(sess *session, data []byte) {
	var p wire.UserJoin
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad user:join payload")
		ctl.sendJSON(sess.conn, wire.CallError{Type: wire.EvCallError, Reason: "bad_payload"})
		return
	}
	log.Info().Str("module", "signal").Str("sid", sess.sid).Str("user", string(p.UserID)).Msg("user joined")
	sess.uid = p.UserID
	ctl.Broker.Connect(p.UserID, sess.conn)
}

// handleCheckOnline answers synchronously on the asking connection; it
// is a memory lookup, not a round trip.
func (ctl *Controller) handleCheckOnline(sess *session, data []byte) {
	var p wire.CheckOnline
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad user:check-online payload")
		return
	}
	ctl.sendJSON(sess.conn, wire.OnlineStatus{
		Type:   wire.EvUserOnlineStatus,
		UserID: p.UserID,
		Online: ctl.Presence.Online(p.UserID),
	})
}
