package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine/console"
	"github.com/kuredoro/snake_duel/transport/ws"
)

func frame(t *testing.T, event string, payload interface{}) ws.Frame {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return ws.Frame{Event: event, Data: data}
}

func TestMatchPushKeepsNewest(t *testing.T) {
	m := newMatch(core.JoinedRoom{Role: "a"})

	m.push(core.GameState{Tick: 1})
	m.push(core.GameState{Tick: 2})

	assert.Equal(t, uint64(2), (<-m.states).Tick)

	m.end("bye")
	m.end("again")

	_, ok := <-m.states
	assert.False(t, ok)
	assert.Equal(t, "bye", m.reason)
}

func TestViewerRoutesFrames(t *testing.T) {
	v := newViewer(nil, console.Renderer{Width: 4, Height: 2})

	rooms := []core.RoomSummary{{ID: "r1", PlayerCount: 1}}
	v.dispatch(frame(t, core.EventUpdateRoomList, rooms))
	assert.Equal(t, rooms, v.rooms)

	v.dispatch(frame(t, core.EventJoinError, core.ErrorMessage{Message: "room is full"}))
	assert.Equal(t, "[red]room is full", v.status)

	v.dispatch(frame(t, core.EventJoinedRoom, core.JoinedRoom{Role: "queued", RoomID: "r1"}))
	require.NotNil(t, v.match)
	assert.Same(t, v.match, v.pending)

	queued := v.match
	v.dispatch(frame(t, core.EventGameState, core.GameState{Tick: 7}))
	assert.Equal(t, uint64(7), (<-queued.states).Tick)

	v.dispatch(frame(t, core.EventJoinedRoom, core.JoinedRoom{Role: "b", RoomID: "r1"}))
	assert.True(t, queued.ended)
	require.NotSame(t, queued, v.match)
	assert.Equal(t, "b", v.match.role)

	playing := v.match
	v.dispatch(frame(t, core.EventOpponentLeft, nil))
	assert.Equal(t, "opponent left, waiting for a new one", <-playing.notices)

	v.dispatch(frame(t, core.EventRoomClosed, core.RoomClosed{RoomID: "r1", Reason: "idle"}))
	assert.True(t, playing.ended)
	assert.Equal(t, "room closed: idle", playing.reason)

	// Room lists keep flowing while a game is on screen.
	v.dispatch(frame(t, core.EventUpdateRoomList, []core.RoomSummary{}))
	assert.Empty(t, v.rooms)
}
