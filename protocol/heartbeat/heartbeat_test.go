package heartbeat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func waitStatus(t *testing.T, ch <-chan PeerStatus) PeerStatus {
	t.Helper()

	select {
	case st := <-ch:
		return st
	case <-time.After(time.Second):
		t.Fatal("no status reported")
	}

	return PeerStatus{}
}

func TestHeartbeat(t *testing.T) {
	t.Run("nil pinger", func(t *testing.T) {
		_, err := NewHeartbeat(nil, "p", time.Millisecond, time.Millisecond, make(chan PeerStatus))
		assert.Error(t, err)
	})

	t.Run("pong marks peer alive", func(t *testing.T) {
		p := &MockPinger{}
		p.On("Ping").Return(nil)

		out := make(chan PeerStatus, 4)
		hb, err := NewHeartbeat(p, "peer-1", 5*time.Millisecond, time.Second, out)
		require.NoError(t, err)
		defer hb.Close()

		hb.Pong()

		assert.Equal(t, PeerStatus{Peer: "peer-1", Alive: true}, waitStatus(t, out))
	})

	t.Run("silence marks peer dead", func(t *testing.T) {
		p := &MockPinger{}
		p.On("Ping").Return(nil)

		out := make(chan PeerStatus, 4)
		hb, err := NewHeartbeat(p, "peer-2", 5*time.Millisecond, 20*time.Millisecond, out)
		require.NoError(t, err)
		defer hb.Close()

		assert.Equal(t, PeerStatus{Peer: "peer-2", Alive: false}, waitStatus(t, out))
		p.AssertCalled(t, "Ping")
	})

	t.Run("failed ping marks peer dead once", func(t *testing.T) {
		p := &MockPinger{}
		p.On("Ping").Return(errors.New("broken pipe"))

		out := make(chan PeerStatus, 4)
		hb, err := NewHeartbeat(p, "peer-3", 5*time.Millisecond, time.Second, out)
		require.NoError(t, err)

		assert.Equal(t, PeerStatus{Peer: "peer-3", Alive: false}, waitStatus(t, out))

		time.Sleep(30 * time.Millisecond)
		hb.Close()

		assert.Empty(t, out, "status is reported on change only")
	})

	t.Run("close is idempotent", func(t *testing.T) {
		p := &MockPinger{}
		p.On("Ping").Return(nil)

		hb, err := NewHeartbeat(p, "peer-4", time.Hour, time.Hour, make(chan PeerStatus))
		require.NoError(t, err)

		hb.Close()
		hb.Close()
	})
}
