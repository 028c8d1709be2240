package beacon

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.msgs = append(p.msgs, data)
	return p.err
}

func (p *recordingPublisher) published() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][]byte(nil), p.msgs...)
}

type message struct {
	from string
	data []byte
}

type chanSubscriber chan message

func (s chanSubscriber) Next(ctx context.Context) (string, []byte, error) {
	select {
	case m, ok := <-s:
		if !ok {
			return "", nil, errors.New("subscription cancelled")
		}
		return m.from, m.data, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func TestBeaconPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	source := func(ctx context.Context) (Announcement, error) {
		return Announcement{URL: "ws://10.0.0.1:8080/ws", Name: "den", Rooms: 2, Open: 1}, nil
	}

	b := NewBeacon(context.Background(), pub, 10*time.Millisecond, source, zerolog.Nop())

	require.Eventually(t, func() bool {
		return len(pub.published()) >= 2
	}, time.Second, 5*time.Millisecond)

	b.Close()

	select {
	case <-b.Done():
	default:
		t.Fatal("beacon not done after Close")
	}

	var got Announcement
	require.NoError(t, json.Unmarshal(pub.published()[0], &got))
	assert.Equal(t, Announcement{
		URL:   "ws://10.0.0.1:8080/ws",
		Name:  "den",
		Rooms: 2,
		Open:  1,
		TTL:   30 * time.Millisecond,
	}, got)
}

func TestBeaconSurvivesFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("no peers")}

	calls := 0
	var mu sync.Mutex
	source := func(ctx context.Context) (Announcement, error) {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls == 1 {
			return Announcement{}, errors.New("gateway busy")
		}
		return Announcement{URL: "ws://x/ws"}, nil
	}

	b := NewBeacon(context.Background(), pub, 5*time.Millisecond, source, zerolog.Nop())
	defer b.Close()

	require.Eventually(t, func() bool {
		return len(pub.published()) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestListen(t *testing.T) {
	sub := make(chanSubscriber, 4)
	out := make(chan Announcement, 4)

	good, err := json.Marshal(Announcement{URL: "ws://10.0.0.2:8080/ws", Name: "attic", Rooms: 1})
	require.NoError(t, err)

	sub <- message{from: "peer-a", data: []byte("not json")}
	sub <- message{from: "peer-b", data: []byte(`{"name":"no url"}`)}
	sub <- message{from: "peer-c", data: good}
	close(sub)

	err = Listen(context.Background(), sub, out, zerolog.Nop())
	assert.EqualError(t, err, "subscription cancelled")

	var got []Announcement
	for a := range out {
		got = append(got, a)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "peer-c", got[0].Peer)
	assert.Equal(t, "attic", got[0].Name)
}

func TestListenStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Announcement)

	done := make(chan error, 1)
	go func() {
		done <- Listen(ctx, make(chanSubscriber), out, zerolog.Nop())
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not stop")
	}

	_, open := <-out
	assert.False(t, open)
}
