package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuredoro/snake_duel/core"
)

func testRules() Rules {
	return Rules{
		Grid:          Grid{Width: 56, Height: 48},
		InitialLength: 2,
		FoodCount:     1,
	}
}

func newTestBoard(t *testing.T) *Board {
	t.Helper()

	b := NewBoard(testRules(), rand.New(rand.NewSource(1)))
	require.NoError(t, b.Rules().Validate())
	return b
}

// placeFood replaces the food on the board with the given cells.
func placeFood(b *Board, cells ...core.Coord) {
	b.food = append([]core.Coord(nil), cells...)
}

func TestBoardReset(t *testing.T) {
	b := newTestBoard(t)

	assert.Equal(t, []core.Coord{{X: 14, Y: 24}, {X: 13, Y: 24}}, b.Snake(SideA))
	assert.Equal(t, []core.Coord{{X: 41, Y: 24}, {X: 42, Y: 24}}, b.Snake(SideB))
	assert.Equal(t, core.Right, b.Heading(SideA))
	assert.Equal(t, core.Left, b.Heading(SideB))

	occupied := NewOccupancy(b.Snake(SideA))
	for _, c := range b.Snake(SideB) {
		assert.False(t, occupied.Has(c), "snakes overlap at %v", c)
	}

	require.Len(t, b.Food(), 1)
	assert.False(t, IsOccupied(b.Food()[0], b.Snake(SideA)))
	assert.False(t, IsOccupied(b.Food()[0], b.Snake(SideB)))
	assert.False(t, b.Over())
}

func TestBoardEnqueue(t *testing.T) {
	t.Run("reversal is rejected", func(t *testing.T) {
		b := newTestBoard(t)

		assert.ErrorIs(t, b.Enqueue(SideA, core.Left), core.ErrReversal)
		assert.Equal(t, 0, b.Pending(SideA))
	})

	t.Run("unknown direction is rejected", func(t *testing.T) {
		b := newTestBoard(t)

		assert.ErrorIs(t, b.Enqueue(SideA, core.Direction(7)), core.ErrInvalidMove)
	})

	t.Run("moves are consumed one per tick", func(t *testing.T) {
		b := newTestBoard(t)
		placeFood(b, core.Coord{X: 0, Y: 0})

		require.NoError(t, b.Enqueue(SideA, core.Up))
		require.NoError(t, b.Enqueue(SideA, core.Right))

		b.Step()
		assert.Equal(t, core.Up, b.Heading(SideA))
		assert.Equal(t, 1, b.Pending(SideA))

		b.Step()
		assert.Equal(t, core.Right, b.Heading(SideA))
		assert.Equal(t, 0, b.Pending(SideA))
	})

	t.Run("queued reversal is discarded on consumption", func(t *testing.T) {
		b := newTestBoard(t)
		placeFood(b, core.Coord{X: 0, Y: 0})

		// Down is valid against Right, but reverses Up once Up is committed.
		require.NoError(t, b.Enqueue(SideA, core.Up))
		require.NoError(t, b.Enqueue(SideA, core.Down))

		b.Step()
		b.Step()
		assert.Equal(t, core.Up, b.Heading(SideA))
	})
}

func TestBoardReversedMoveKeepsHeading(t *testing.T) {
	b := newTestBoard(t)
	placeFood(b, core.Coord{X: 0, Y: 0})

	// Heading the snake left first, then asking for right.
	b.headings[SideA] = core.Left
	b.snakes[SideA] = []core.Coord{{X: 13, Y: 24}, {X: 14, Y: 24}}

	assert.ErrorIs(t, b.Enqueue(SideA, core.Right), core.ErrReversal)

	b.Step()
	assert.Equal(t, core.Left, b.Heading(SideA))
	assert.Equal(t, core.Coord{X: 12, Y: 24}, b.Snake(SideA)[0])
}

func TestBoardEatFood(t *testing.T) {
	b := newTestBoard(t)
	placeFood(b, core.Coord{X: 15, Y: 24})

	out := b.Step()

	assert.False(t, out.Over)
	assert.True(t, out.Ate[SideA])
	assert.False(t, out.Ate[SideB])
	assert.Equal(t, 1, b.Score(SideA))
	assert.Len(t, b.Snake(SideA), 3)
	assert.Equal(t, core.Coord{X: 15, Y: 24}, b.Snake(SideA)[0])

	require.Len(t, b.Food(), 1)
	food := b.Food()[0]
	assert.NotEqual(t, core.Coord{X: 15, Y: 24}, food)
	assert.False(t, IsOccupied(food, b.Snake(SideA)))
	assert.False(t, IsOccupied(food, b.Snake(SideB)))
}

func TestBoardLengthTracksScore(t *testing.T) {
	b := newTestBoard(t)
	r := b.rules

	for i := 0; i < 200 && !b.Over(); i++ {
		for _, side := range sides {
			if b.Pending(side) == 0 {
				b.Enqueue(side, ChooseDirection(b, side))
			}
		}

		b.Step()
		if b.Over() {
			break
		}

		for _, side := range sides {
			assert.Equal(t, r.InitialLength+b.Score(side), len(b.Snake(side)))
		}

		occupied := NewOccupancy(b.Snake(SideA), b.Snake(SideB))
		for _, f := range b.Food() {
			assert.False(t, occupied.Has(f), "food spawned on a snake at %v", f)
		}
	}
}

func TestBoardCollisions(t *testing.T) {
	tests := []struct {
		name   string
		snakeA []core.Coord
		headA  core.Direction
		snakeB []core.Coord
		headB  core.Direction
		wrap   bool
		winner core.Winner
		over   bool
	}{
		{
			name:   "head to head is a draw",
			snakeA: []core.Coord{{X: 10, Y: 5}, {X: 9, Y: 5}},
			headA:  core.Right,
			snakeB: []core.Coord{{X: 12, Y: 5}, {X: 13, Y: 5}},
			headB:  core.Left,
			winner: core.WinnerDraw,
			over:   true,
		},
		{
			name:   "heads swapping cells is a draw",
			snakeA: []core.Coord{{X: 10, Y: 5}, {X: 9, Y: 5}},
			headA:  core.Right,
			snakeB: []core.Coord{{X: 11, Y: 5}, {X: 12, Y: 5}},
			headB:  core.Left,
			winner: core.WinnerDraw,
			over:   true,
		},
		{
			name:   "a leaves the grid",
			snakeA: []core.Coord{{X: 55, Y: 5}, {X: 54, Y: 5}},
			headA:  core.Right,
			snakeB: []core.Coord{{X: 30, Y: 30}, {X: 31, Y: 30}},
			headB:  core.Left,
			winner: core.WinnerB,
			over:   true,
		},
		{
			name:   "a wraps around",
			snakeA: []core.Coord{{X: 55, Y: 5}, {X: 54, Y: 5}},
			headA:  core.Right,
			snakeB: []core.Coord{{X: 30, Y: 30}, {X: 31, Y: 30}},
			headB:  core.Left,
			wrap:   true,
		},
		{
			name:   "b runs into the body of a",
			snakeA: []core.Coord{{X: 10, Y: 5}, {X: 10, Y: 6}, {X: 10, Y: 7}},
			headA:  core.Up,
			snakeB: []core.Coord{{X: 11, Y: 6}, {X: 12, Y: 6}},
			headB:  core.Left,
			winner: core.WinnerA,
			over:   true,
		},
		{
			name:   "b follows the tail of a",
			snakeA: []core.Coord{{X: 10, Y: 5}, {X: 10, Y: 6}, {X: 10, Y: 7}},
			headA:  core.Up,
			snakeB: []core.Coord{{X: 11, Y: 7}, {X: 12, Y: 7}},
			headB:  core.Left,
		},
		{
			name: "a bites itself",
			snakeA: []core.Coord{
				{X: 10, Y: 5}, {X: 11, Y: 5}, {X: 11, Y: 6}, {X: 10, Y: 6}, {X: 9, Y: 6},
			},
			headA:  core.Down,
			snakeB: []core.Coord{{X: 30, Y: 30}, {X: 31, Y: 30}},
			headB:  core.Left,
			winner: core.WinnerB,
			over:   true,
		},
		{
			name:   "both fail independently",
			snakeA: []core.Coord{{X: 0, Y: 5}, {X: 1, Y: 5}},
			headA:  core.Left,
			snakeB: []core.Coord{{X: 55, Y: 9}, {X: 54, Y: 9}},
			headB:  core.Right,
			winner: core.WinnerDraw,
			over:   true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rules := testRules()
			rules.Grid.Wrap = test.wrap

			b := NewBoard(rules, rand.New(rand.NewSource(2)))
			b.snakes = [2][]core.Coord{test.snakeA, test.snakeB}
			b.headings = [2]core.Direction{test.headA, test.headB}
			placeFood(b, core.Coord{X: 40, Y: 40})

			out := b.Step()

			assert.Equal(t, test.over, out.Over)
			assert.Equal(t, test.over, b.Over())
			assert.Equal(t, test.winner, b.Winner())
		})
	}
}

func TestBoardFrozenAfterGameOver(t *testing.T) {
	b := newTestBoard(t)
	b.snakes[SideA] = []core.Coord{{X: 55, Y: 5}, {X: 54, Y: 5}}

	b.Step()
	require.True(t, b.Over())

	before := b.State()
	assert.ErrorIs(t, b.Enqueue(SideB, core.Up), core.ErrGameNotActive)

	b.Step()
	assert.Equal(t, before, b.State())

	b.Reset()
	assert.False(t, b.Over())
	assert.Equal(t, core.WinnerNone, b.Winner())
	assert.Equal(t, 0, b.Score(SideA))
}
