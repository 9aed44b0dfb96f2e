package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/wire"
)

// handleRelay covers every blindly-forwarded signaling message: private
// and group offers, answers and ICE candidates. The broker stamps the
// sender; the payload stays opaque.
func (ctl *Controller) handleRelay(sess *session, event string, data []byte) {
	var p wire.Relay
	if err := json.Unmarshal(data, &p); err != nil || p.TargetUserID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("event", event).Msg("bad relay payload")
		return
	}
	ctl.Broker.Relay(sess.uid, p.SenderName, event, p.RoomID, p.TargetUserID, p.Payload)
}

func (ctl *Controller) handleScreenShare(sess *session, data []byte, started bool) {
	var p wire.ScreenShare
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad screen-share payload")
		return
	}
	ctl.Broker.ScreenShare(sess.uid, p.UserName, p.RoomID, started)
}
