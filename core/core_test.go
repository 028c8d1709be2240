package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionFromVector(t *testing.T) {
	for _, d := range Directions {
		v := d.Vector()
		got, ok := DirectionFromVector(v.X, v.Y)
		require.True(t, ok, d.String())
		assert.Equal(t, d, got)
		assert.Equal(t, d, d.Opposite().Opposite())
		assert.NotEqual(t, d, d.Opposite())
	}

	for _, v := range []Coord{{0, 0}, {1, 1}, {2, 0}, {0, -2}, {-1, 1}} {
		_, ok := DirectionFromVector(v.X, v.Y)
		assert.False(t, ok, "%v", v)
	}
}

func TestCoordAdd(t *testing.T) {
	c := Coord{X: 3, Y: 3}

	assert.Equal(t, Coord{X: 3, Y: 2}, c.Add(Up))
	assert.Equal(t, Coord{X: 4, Y: 3}, c.Add(Right))
	assert.Equal(t, Coord{X: 3, Y: 4}, c.Add(Down))
	assert.Equal(t, Coord{X: 2, Y: 3}, c.Add(Left))
	assert.False(t, Direction(7).Valid())
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]Role{
		{RoleNone, RoleA}, {RoleNone, RoleB}, {RoleNone, RoleSpectator}, {RoleNone, RoleQueued},
		{RoleQueued, RoleA}, {RoleQueued, RoleB}, {RoleQueued, RoleNone},
		{RoleSpectator, RoleNone}, {RoleA, RoleNone}, {RoleB, RoleNone},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%v -> %v", tr[0], tr[1])
	}

	denied := [][2]Role{
		{RoleA, RoleB}, {RoleSpectator, RoleA}, {RoleA, RoleSpectator}, {RoleSpectator, RoleQueued},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%v -> %v", tr[0], tr[1])
	}

	assert.Equal(t, "unknown", Role(42).String())
	assert.True(t, RoleB.Active())
	assert.False(t, RoleQueued.Active())
	assert.Equal(t, 1, RoleB.Side())
	assert.Equal(t, WinnerB, WinnerOf(RoleB.Side()))
}

func TestIdentityError(t *testing.T) {
	err := fmt.Errorf("join room: %w", &IdentityError{Identity: "bob", Err: ErrRoomFull})

	assert.True(t, errors.Is(err, ErrRoomFull))

	var ie *IdentityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "bob", ie.Identity)
	assert.Equal(t, "join room: identity bob: room is full", err.Error())
}
