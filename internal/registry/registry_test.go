package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (f *fakeSender) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("dead socket")
	}
	f.frames = append(f.frames, payload)
	return nil
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSender) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRegistry() *Registry {
	return New(100 * time.Millisecond)
}

func TestRegisterAndRoomSize(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, 0, r.RoomSize("AAAA22"))

	r.Register("AAAA22", uuid.New(), &fakeSender{})
	r.Register("AAAA22", uuid.New(), &fakeSender{})
	r.Register("BBBB33", uuid.New(), &fakeSender{})

	assert.Equal(t, 2, r.RoomSize("AAAA22"))
	assert.Equal(t, 1, r.RoomSize("BBBB33"))
}

func TestRegisterEvictsPriorConnection(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	old := &fakeSender{}
	fresh := &fakeSender{}

	r.Register("AAAA22", user, old)
	r.Register("AAAA22", user, fresh)

	// One connection per (user, room): the old handle is closed and only
	// the new one receives broadcasts.
	assert.True(t, old.isClosed())
	assert.Equal(t, 1, r.RoomSize("AAAA22"))

	r.Broadcast("AAAA22", []byte(`{"n":1}`), uuid.Nil)
	assert.Equal(t, 0, old.received())
	assert.Equal(t, 1, fresh.received())
}

func TestUnregister(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	s := &fakeSender{}

	r.Register("AAAA22", user, s)
	r.Unregister("AAAA22", user, s)
	assert.Equal(t, 0, r.RoomSize("AAAA22"))

	// Absent connection: no-op.
	r.Unregister("AAAA22", user, s)
	r.Unregister("NOPE22", uuid.New(), nil)
}

func TestUnregisterIgnoresSupersededHandle(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	old := &fakeSender{}
	fresh := &fakeSender{}

	r.Register("AAAA22", user, old)
	r.Register("AAAA22", user, fresh)

	// The old connection's deferred cleanup must not tear down the
	// replacement.
	r.Unregister("AAAA22", user, old)
	assert.Equal(t, 1, r.RoomSize("AAAA22"))
}

func TestBroadcastDeliversToAll(t *testing.T) {
	r := newTestRegistry()
	a, b, c := &fakeSender{}, &fakeSender{}, &fakeSender{}
	r.Register("AAAA22", uuid.New(), a)
	r.Register("AAAA22", uuid.New(), b)
	r.Register("BBBB33", uuid.New(), c)

	r.Broadcast("AAAA22", []byte(`{"n":1}`), uuid.Nil)

	assert.Equal(t, 1, a.received())
	assert.Equal(t, 1, b.received())
	assert.Equal(t, 0, c.received(), "other rooms must not hear the event")
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := newTestRegistry()
	sender := uuid.New()
	mine, theirs := &fakeSender{}, &fakeSender{}
	r.Register("AAAA22", sender, mine)
	r.Register("AAAA22", uuid.New(), theirs)

	r.Broadcast("AAAA22", []byte(`{"n":1}`), sender)

	assert.Equal(t, 0, mine.received())
	assert.Equal(t, 1, theirs.received())
}

func TestBroadcastEvictsDeadPeer(t *testing.T) {
	r := newTestRegistry()
	good := &fakeSender{}
	dead := &fakeSender{fail: true}
	r.Register("AAAA22", uuid.New(), good)
	r.Register("AAAA22", uuid.New(), dead)

	r.Broadcast("AAAA22", []byte(`{"n":1}`), uuid.Nil)

	// The dead peer is dropped; the healthy one still got the event.
	assert.Equal(t, 1, good.received())
	assert.True(t, dead.isClosed())
	assert.Equal(t, 1, r.RoomSize("AAAA22"))
	assert.EqualValues(t, 1, r.DroppedCount())

	// Subsequent broadcasts reach only the survivor.
	r.Broadcast("AAAA22", []byte(`{"n":2}`), uuid.Nil)
	assert.Equal(t, 2, good.received())
}

func TestBroadcastEmptyRoom(t *testing.T) {
	r := newTestRegistry()
	r.Broadcast("EMPTY1", []byte(`{"n":1}`), uuid.Nil)
}

func TestSendTo(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	s := &fakeSender{}
	r.Register("AAAA22", user, s)

	r.SendTo("AAAA22", user, []byte(`{"hello":true}`))
	assert.Equal(t, 1, s.received())

	// Unknown target: silently nothing.
	r.SendTo("AAAA22", uuid.New(), []byte(`{"hello":true}`))
}

func TestConnected(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	s := &fakeSender{}

	assert.False(t, r.Connected("AAAA22", user))
	r.Register("AAAA22", user, s)
	assert.True(t, r.Connected("AAAA22", user))
	r.Unregister("AAAA22", user, s)
	assert.False(t, r.Connected("AAAA22", user))
}

func TestConcurrentRegisterBroadcast(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup
	codes := []string{"AAAA22", "BBBB33", "CCCC44"}

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := codes[i%len(codes)]
			user := uuid.New()
			s := &fakeSender{}
			r.Register(code, user, s)
			r.Broadcast(code, []byte(`{"n":1}`), uuid.Nil)
			r.Unregister(code, user, s)
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		require.Equal(t, 0, r.RoomSize(code))
	}
}
