package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
	"github.com/avrek/huddle/internal/wire"
)

// Broker routes signaling between connected clients and owns the
// private-call state machine. One mutex serializes every operation, so
// each inbound message is atomic with respect to room and presence
// state. Delivery itself is fire-and-forget: TrySend never blocks
// under the lock.
type Broker struct {
	mu       sync.Mutex
	presence *Presence
	rooms    *RoomStore
	records  core.RecordSink
	limiter  *CallRateLimiter
	policy   Policy

	ringTimeout time.Duration
	ringTimers  map[domain.RoomID]*time.Timer

	now func() time.Time
}

type BrokerOptions struct {
	// RingTimeout auto-ends an unanswered private call with
	// outcome=missed. Zero disables the timer.
	RingTimeout time.Duration
	Limiter     *CallRateLimiter
	Policy      Policy
}

func NewBroker(presence *Presence, rooms *RoomStore, records core.RecordSink, opt BrokerOptions) *Broker {
	policy := opt.Policy
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Broker{
		presence:    presence,
		rooms:       rooms,
		records:     records,
		limiter:     opt.Limiter,
		policy:      policy,
		ringTimeout: opt.RingTimeout,
		ringTimers:  make(map[domain.RoomID]*time.Timer),
		now:         time.Now,
	}
}

// Connect registers presence for an identity and announces it to every
// other connected client.
func (b *Broker) Connect(id domain.UserID, conn core.SignalConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presence.Register(id, conn)
	for _, e := range b.presence.Snapshot() {
		if e.ID == id {
			continue
		}
		b.send(e.ID, e.Conn, wire.PresenceChange{Type: wire.EvUserOnline, UserID: id})
	}
}

// Online answers the synchronous presence query.
func (b *Broker) Online(id domain.UserID) bool {
	return b.presence.Online(id)
}

// InitiatePrivate starts the ringing phase of a 1:1 call. An offline
// callee is a distinct, non-exceptional outcome reported back to the
// caller so the UI can say "user offline" instead of a generic error.
func (b *Broker) InitiatePrivate(caller domain.Participant, callee domain.UserID, media domain.MediaKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limiter != nil && !b.limiter.Allow(caller.ID) {
		log.Warn().Str("module", "app.broker").Str("caller", string(caller.ID)).Msg("initiate rate limited")
		b.sendTo(caller.ID, wire.CallError{Type: wire.EvCallError, Reason: "rate_limited"})
		return
	}
	if !media.Valid() {
		media = domain.MediaVideo
	}

	calleeConn, ok := b.presence.Lookup(callee)
	if !ok {
		log.Info().Str("module", "app.broker").Str("callee", string(callee)).Msg("callee offline")
		b.sendTo(caller.ID, wire.UserUnreachable{Type: wire.EvCallUserOffline, ReceiverID: callee})
		return
	}

	room := b.rooms.CreatePrivate(caller, callee, media)
	b.armRingTimer(room.ID)

	b.send(callee, calleeConn, wire.CallIncoming{
		Type:         wire.EvCallIncoming,
		RoomID:       room.ID,
		CallerID:     caller.ID,
		CallerName:   caller.Username,
		CallerAvatar: caller.Avatar,
		CallType:     media,
	})
	b.sendTo(caller.ID, wire.RoomCreated{Type: wire.EvCallRoomCreated, RoomID: room.ID})
}

// Accept moves a ringing call to connecting and tells the caller to
// begin offer creation.
func (b *Broker) Accept(roomID domain.RoomID, accepter domain.Participant) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok || room.Kind != domain.KindPrivate {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("accept on missing room ignored")
		return
	}
	next, err := room.State.Transition(domain.StateConnecting)
	if err != nil {
		log.Warn().Str("module", "app.broker").Str("room", string(roomID)).Str("state", string(room.State)).Msg("accept in wrong state")
		return
	}
	if err := b.rooms.AddParticipant(roomID, accepter); err != nil {
		log.Warn().Err(err).Str("module", "app.broker").Str("room", string(roomID)).Msg("accept add participant")
		return
	}
	b.rooms.SetState(roomID, next)
	b.disarmRingTimer(roomID)

	b.sendTo(room.CallerID, wire.CallAccepted{Type: wire.EvCallAccepted, RoomID: roomID, AccepterID: accepter.ID})
}

// Reject ends a ringing call from the callee side. Rejecting a room
// that is already gone is a benign race and must not persist a
// duplicate record; rejecting an accepted call is a stale message and
// must not override the connected session.
func (b *Broker) Reject(roomID domain.RoomID, rejecter domain.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok || room.Kind != domain.KindPrivate {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("reject on missing room ignored")
		return
	}
	next, err := room.State.Transition(domain.StateEnded)
	if err != nil || room.State != domain.StateRinging {
		log.Warn().Str("module", "app.broker").Str("room", string(roomID)).Str("state", string(room.State)).Msg("reject in wrong state")
		return
	}
	b.disarmRingTimer(roomID)

	b.sendTo(room.CallerID, wire.CallRejected{Type: wire.EvCallRejected, RoomID: roomID, RejecterID: rejecter})
	b.persist(domain.CallRecord{
		From:    room.CallerID,
		To:      room.CalleeID,
		Media:   room.Media,
		Outcome: domain.OutcomeRejected,
	})
	b.rooms.SetState(roomID, next)
	b.rooms.Delete(roomID)
}

// End finishes a call from either side. The claimed duration is
// accepted on the wire for old clients but the persisted value is
// always derived from StartedAt.
func (b *Broker) End(roomID domain.RoomID, by domain.UserID, claimed int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok {
		log.Debug().Str("module", "app.broker").Str("room", string(roomID)).Msg("end on missing room ignored")
		return
	}
	if room.Kind == domain.KindGroup {
		b.leaveGroupLocked(room, by)
		return
	}
	_ = claimed // wire compatibility only
	b.finishPrivateLocked(room, by, "")
}

// finishPrivateLocked is the single teardown path for private rooms:
// voluntary end, ring expiry and abrupt disconnect all converge here so
// records and notifications cannot diverge.
func (b *Broker) finishPrivateLocked(room *domain.Room, by domain.UserID, reason string) {
	b.disarmRingTimer(room.ID)

	duration := 0
	outcome := domain.OutcomeMissed
	if !room.StartedAt.IsZero() {
		outcome = domain.OutcomeAnswered
		if d := int(b.now().Sub(room.StartedAt).Seconds()); d > 0 {
			duration = d
		}
	}

	ended := wire.CallEnded{Type: wire.EvCallEnded, RoomID: room.ID, EndedBy: by, Duration: duration, Reason: reason}
	for _, other := range room.Others(by) {
		b.sendTo(other, ended)
	}
	if room.CalleeID != "" && !room.Has(room.CalleeID) && room.CalleeID != by {
		// Callee never accepted; it still holds a ringing UI to dismiss.
		b.sendTo(room.CalleeID, ended)
	}

	b.persist(domain.CallRecord{
		From:            room.CallerID,
		To:              room.CalleeID,
		Media:           room.Media,
		DurationSeconds: duration,
		Outcome:         outcome,
	})
	b.rooms.SetState(room.ID, domain.StateEnded)
	b.rooms.Delete(room.ID)
}

func (b *Broker) armRingTimer(roomID domain.RoomID) {
	if b.ringTimeout <= 0 {
		return
	}
	b.ringTimers[roomID] = time.AfterFunc(b.ringTimeout, func() { b.ringExpired(roomID) })
}

func (b *Broker) disarmRingTimer(roomID domain.RoomID) {
	if t, ok := b.ringTimers[roomID]; ok {
		t.Stop()
		delete(b.ringTimers, roomID)
	}
}

func (b *Broker) ringExpired(roomID domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms.Get(roomID)
	if !ok || room.State != domain.StateRinging {
		return
	}
	log.Info().Str("module", "app.broker").Str("room", string(roomID)).Msg("ring timeout, call missed")
	// Empty "ended by" marks a server-side expiry; both sides get the
	// notice since neither chose to hang up.
	b.finishPrivateLocked(room, "", "missed")
}

func (b *Broker) persist(rec domain.CallRecord) {
	if b.records == nil {
		return
	}
	if err := b.records.Save(context.Background(), rec); err != nil {
		// A sink failure never aborts teardown.
		log.Error().Err(err).Str("module", "app.broker").Msg("persist call record")
	}
}

// send marshals and fires one event at a known connection. On
// backpressure the policy decides whether the client is dropped.
func (b *Broker) send(id domain.UserID, conn core.SignalConn, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broker").Msg("marshal event")
		return
	}
	if err := conn.TrySend(core.Frame(buf)); err != nil {
		log.Warn().Err(err).Str("module", "app.broker").Str("user", string(id)).Msg("send failed")
		if b.policy.OnSendFailure(id, err) == ActionDisconnect {
			go b.Disconnect(id, conn)
		}
	}
}

// sendTo delivers to an identity's current connection, if any. A
// missing target means it raced a disconnect; the frame is dropped.
func (b *Broker) sendTo(id domain.UserID, v any) bool {
	conn, ok := b.presence.Lookup(id)
	if !ok {
		log.Debug().Str("module", "app.broker").Str("user", string(id)).Msg("target not present, dropped")
		return false
	}
	b.send(id, conn, v)
	return true
}
