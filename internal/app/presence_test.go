package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avrek/huddle/internal/domain"
)

func TestPresenceRegisterLookup(t *testing.T) {
	p := NewPresence()
	c := &fakeConn{id: "alice"}

	prev, replaced := p.Register("alice", c)
	assert.Nil(t, prev)
	assert.False(t, replaced)

	got, ok := p.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, c, got.(*fakeConn))
	assert.True(t, p.Online("alice"))
	assert.False(t, p.Online("bob"))
	assert.Equal(t, 1, p.Count())
}

func TestPresenceReconnectLastWriteWins(t *testing.T) {
	p := NewPresence()
	old := &fakeConn{id: "alice"}
	fresh := &fakeConn{id: "alice"}

	p.Register("alice", old)
	prev, replaced := p.Register("alice", fresh)

	assert.True(t, replaced)
	assert.Same(t, old, prev.(*fakeConn))

	got, _ := p.Lookup("alice")
	assert.Same(t, fresh, got.(*fakeConn))
	assert.Equal(t, 1, p.Count())
}

func TestPresenceUnregisterGuardedByHandle(t *testing.T) {
	p := NewPresence()
	old := &fakeConn{id: "alice"}
	fresh := &fakeConn{id: "alice"}

	p.Register("alice", old)
	p.Register("alice", fresh)

	assert.False(t, p.Unregister("alice", old), "stale handle must not unregister")
	assert.True(t, p.Online("alice"))

	assert.True(t, p.Unregister("alice", fresh))
	assert.False(t, p.Online("alice"))

	assert.False(t, p.Unregister("alice", fresh), "double unregister is a no-op")
}

func TestPresenceOnlineIDs(t *testing.T) {
	p := NewPresence()
	p.Register("alice", &fakeConn{id: "alice"})
	p.Register("bob", &fakeConn{id: "bob"})

	assert.ElementsMatch(t, []domain.UserID{"alice", "bob"}, p.OnlineIDs())
	assert.Len(t, p.Snapshot(), 2)
}
