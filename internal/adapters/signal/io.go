package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/wire"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the connection. On any exit (clean close, network
// drop, context cancel) the disconnect reconciler runs exactly once
// for the identity this socket had announced.
func (ctl *Controller) readPump(ctx context.Context, sess *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", sess.sid).Str("user", string(sess.uid)).Msg("readPump closing")
		if sess.uid != "" {
			ctl.Broker.Disconnect(sess.uid, sess.conn)
		}
		sess.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := sess.conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", sess.sid).Msg("readPump read error")
				return
			}
			ctl.handleSignal(sess, data)
		}
	}
}

func (ctl *Controller) handleSignal(sess *session, data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	// Everything beyond presence registration requires an announced
	// identity; a message arriving before user:join is a client bug.
	switch env.Type {
	case wire.EvUserJoin:
		ctl.handleUserJoin(sess, data)
		return
	case wire.EvUserCheckOnline:
		ctl.handleCheckOnline(sess, data)
		return
	}
	if sess.uid == "" {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("event before user:join ignored")
		ctl.sendJSON(sess.conn, wire.CallError{Type: wire.EvCallError, Reason: "not_joined"})
		return
	}

	switch env.Type {
	case wire.EvCallInitiate:
		ctl.handleCallInitiate(sess, data)
	case wire.EvCallAccept:
		ctl.handleCallAccept(sess, data)
	case wire.EvCallReject:
		ctl.handleCallReject(sess, data)
	case wire.EvCallEnd:
		ctl.handleCallEnd(sess, data)
	case wire.EvGroupInitiate:
		ctl.handleGroupInitiate(sess, data)
	case wire.EvGroupJoin:
		ctl.handleGroupJoin(sess, data)
	case wire.EvGroupLeave:
		ctl.handleGroupLeave(sess, data)
	case wire.EvGroupCheckActive:
		ctl.handleGroupCheckActive(sess, data)
	case wire.EvOffer, wire.EvAnswer, wire.EvCandidate,
		wire.EvGroupOffer, wire.EvGroupAnswer, wire.EvGroupCandidate:
		ctl.handleRelay(sess, env.Type, data)
	case wire.EvScreenShareStarted:
		ctl.handleScreenShare(sess, data, true)
	case wire.EvScreenShareStopped:
		ctl.handleScreenShare(sess, data, false)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
