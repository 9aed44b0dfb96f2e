package app

import (
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

// Disconnect reconciles an involuntary connection loss. The unregister
// is guarded by the connection handle: if the identity already
// reconnected with a fresher handle, the stale disconnect must not
// tear down calls the user rejoined.
//
// Every room the identity was in goes through the same teardown path
// as a voluntary end/leave, so graceful and abrupt termination cannot
// diverge in what they notify and persist.
func (b *Broker) Disconnect(id domain.UserID, conn core.SignalConn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.presence.Unregister(id, conn) {
		return
	}

	offline := wire.PresenceChange{Type: wire.EvUserOffline, UserID: id}
	for _, e := range b.presence.Snapshot() {
		b.send(e.ID, e.Conn, offline)
	}

	for _, roomID := range b.rooms.RoomsWith(id) {
		room, ok := b.rooms.Get(roomID)
		if !ok {
			continue
		}
		log.Info().Str("module", "app.broker").Str("user", string(id)).Str("room", string(roomID)).Msg("reconciling room after disconnect")
		if room.Kind == domain.KindPrivate {
			b.finishPrivateLocked(room, id, "disconnected")
		} else {
			b.leaveGroupLocked(room, id)
		}
	}
}
