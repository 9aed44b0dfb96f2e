package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

// Presence maps a logical user identity to its live connection handle.
// One entry per connected identity; a reconnect overwrites the old
// handle (last write wins, no multi-device fan-out).
type Presence struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.SignalConn
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[domain.UserID]core.SignalConn)}
}

// Register upserts the connection handle for an identity and returns
// the handle it replaced, if any. The orphaned handle simply stops
// receiving routed messages.
func (p *Presence) Register(id domain.UserID, conn core.SignalConn) (core.SignalConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, replaced := p.conns[id]
	p.conns[id] = conn
	log.Info().Str("module", "app.presence").Str("user", string(id)).Bool("replaced", replaced).Msg("registered")
	return prev, replaced
}

func (p *Presence) Lookup(id domain.UserID) (core.SignalConn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[id]
	return c, ok
}

func (p *Presence) Online(id domain.UserID) bool {
	_, ok := p.Lookup(id)
	return ok
}

// Unregister removes the entry only if conn is still the currently
// registered handle for that identity. A stale disconnect racing a
// fresher reconnect is a no-op.
func (p *Presence) Unregister(id domain.UserID, conn core.SignalConn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.conns[id]
	if !ok || cur != conn {
		log.Debug().Str("module", "app.presence").Str("user", string(id)).Msg("stale unregister ignored")
		return false
	}
	delete(p.conns, id)
	log.Info().Str("module", "app.presence").Str("user", string(id)).Msg("unregistered")
	return true
}

type presenceEntry struct {
	ID   domain.UserID
	Conn core.SignalConn
}

// Snapshot returns the current entries; safe to iterate while the map
// keeps changing.
func (p *Presence) Snapshot() []presenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]presenceEntry, 0, len(p.conns))
	for id, c := range p.conns {
		out = append(out, presenceEntry{ID: id, Conn: c})
	}
	return out
}

// OnlineIDs is the read-only view for the REST debug surface.
func (p *Presence) OnlineIDs() []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.UserID, 0, len(p.conns))
	for id := range p.conns {
		out = append(out, id)
	}
	return out
}

func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}
