package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avrek/huddle/internal/adapters/record"
	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

// seqLog is a delivery log shared across fake connections so tests can
// assert cross-connection ordering.
type seqLog struct {
	mu     sync.Mutex
	events []seqEvent
}

type seqEvent struct {
	To    domain.UserID
	Frame map[string]any
}

func (l *seqLog) add(to domain.UserID, frame map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, seqEvent{To: to, Frame: frame})
}

func (l *seqLog) all() []seqEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]seqEvent, len(l.events))
	copy(out, l.events)
	return out
}

type fakeConn struct {
	mu     sync.Mutex
	id     domain.UserID
	frames []map[string]any
	fail   error
	closed bool
	log    *seqLog
}

var _ core.SignalConn = (*fakeConn)(nil)

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	if c.log != nil {
		c.log.add(c.id, m)
	}
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) typed(event string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		if f["type"] == event {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) one(t *testing.T, event string) map[string]any {
	t.Helper()
	got := c.typed(event)
	require.Len(t, got, 1, "expected exactly one %q frame", event)
	return got[0]
}

func (c *fakeConn) none(t *testing.T, event string) {
	t.Helper()
	require.Empty(t, c.typed(event), "expected no %q frames", event)
}

type harness struct {
	broker   *Broker
	presence *Presence
	rooms    *RoomStore
	sink     *record.MemorySink
	log      *seqLog
}

func newHarness(t *testing.T, opt BrokerOptions) *harness {
	t.Helper()
	h := &harness{
		presence: NewPresence(),
		rooms:    NewRoomStore(),
		sink:     record.NewMemorySink(),
		log:      &seqLog{},
	}
	h.broker = NewBroker(h.presence, h.rooms, h.sink, opt)
	return h
}

func (h *harness) connect(id domain.UserID) *fakeConn {
	c := &fakeConn{id: id, log: h.log}
	h.broker.Connect(id, c)
	return c
}

func part(id domain.UserID, name string) domain.Participant {
	return domain.Participant{ID: id, Username: name}
}
