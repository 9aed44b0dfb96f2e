package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

// Relay forwards an offer/answer/candidate verbatim to one target,
// tagged with the authenticated sender identity. If the target is not
// present the message is silently dropped: the sender will also learn
// about the departure through a leave/offline notice.
func (b *Broker) Relay(sender domain.UserID, senderName, event string, roomID domain.RoomID, target domain.UserID, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, ok := b.presence.Lookup(target)
	if !ok {
		log.Debug().Str("module", "app.broker").Str("event", event).Str("target", string(target)).Msg("relay target absent, dropped")
		return
	}
	b.send(target, conn, wire.Relay{
		Type:       event,
		RoomID:     roomID,
		Payload:    payload,
		FromUserID: sender,
		SenderName: senderName,
	})
}

// ScreenShare broadcasts a renegotiation hint to every participant of
// the room except the sharer.
func (b *Broker) ScreenShare(sender domain.UserID, senderName string, roomID domain.RoomID, started bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("screen share on missing room ignored")
		return
	}
	ev := wire.ScreenShare{Type: wire.EvScreenShareStopped, RoomID: roomID, UserID: sender}
	if started {
		ev.Type = wire.EvScreenShareStarted
		ev.UserName = senderName
	}
	for _, other := range room.Others(sender) {
		b.sendTo(other, ev)
	}
}
