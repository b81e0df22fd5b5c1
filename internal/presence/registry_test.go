package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	userID int64
	events []string
}

func (f *fakeHandle) SendEvent(event string, _ interface{}) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeHandle) UserID() int64 { return f.userID }

func TestRegisterEmitsOnlineOnce(t *testing.T) {
	registry := NewRegistry()

	var transitions []bool
	registry.Subscribe(func(_ int64, online bool) {
		transitions = append(transitions, online)
	})

	phone := &fakeHandle{userID: 7}
	laptop := &fakeHandle{userID: 7}

	registry.Register(7, phone)
	registry.Register(7, laptop)

	assert.True(t, registry.IsOnline(7))
	require.Equal(t, []bool{true}, transitions, "second device must not re-announce")
}

func TestUnregisterEmitsOfflineOnLastDevice(t *testing.T) {
	registry := NewRegistry()

	var transitions []bool
	registry.Subscribe(func(_ int64, online bool) {
		transitions = append(transitions, online)
	})

	phone := &fakeHandle{userID: 7}
	laptop := &fakeHandle{userID: 7}
	registry.Register(7, phone)
	registry.Register(7, laptop)

	registry.Unregister(phone)
	assert.True(t, registry.IsOnline(7))
	require.Equal(t, []bool{true}, transitions)

	registry.Unregister(laptop)
	assert.False(t, registry.IsOnline(7))
	require.Equal(t, []bool{true, false}, transitions)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	var count int
	registry.Subscribe(func(int64, bool) { count++ })

	h := &fakeHandle{userID: 3}
	registry.Register(3, h)
	registry.Unregister(h)
	registry.Unregister(h)

	assert.False(t, registry.IsOnline(3))
	assert.Equal(t, 2, count, "online then offline, nothing more")
}

func TestConnectionsForSnapshot(t *testing.T) {
	registry := NewRegistry()

	a := &fakeHandle{userID: 1}
	b := &fakeHandle{userID: 1}
	registry.Register(1, a)
	registry.Register(1, b)

	assert.Len(t, registry.ConnectionsFor(1), 2)
	assert.Nil(t, registry.ConnectionsFor(2))
	assert.Len(t, registry.AllConnections(), 2)
}
