package engine

import (
	"fmt"
	"math/rand"

	"github.com/kuredoro/snake_duel/core"
)

// Snake indices on a board.
const (
	SideA = 0
	SideB = 1
)

var sides = [...]int{SideA, SideB}

type Rules struct {
	Grid          Grid
	InitialLength int
	FoodCount     int
}

func (r Rules) Validate() error {
	if r.Grid.Width < 4 || r.Grid.Height < 1 {
		return fmt.Errorf("grid %dx%d is too small", r.Grid.Width, r.Grid.Height)
	}

	if r.InitialLength < 1 {
		return fmt.Errorf("initial length %d must be positive", r.InitialLength)
	}

	if r.InitialLength > r.Grid.Width/4+1 {
		return fmt.Errorf("initial length %d does not fit a grid %d cells wide", r.InitialLength, r.Grid.Width)
	}

	if r.FoodCount < 1 {
		return fmt.Errorf("food count %d must be positive", r.FoodCount)
	}

	return nil
}

// Outcome describes what a single Step did.
type Outcome struct {
	Over   bool
	Winner core.Winner
	Ate    [2]bool
}

// Board is the simulation state of one duel: two snakes stored head first, a
// FIFO of pending headings per snake, the food on the field and the scores.
// A Board is not safe for concurrent use.
type Board struct {
	rules Rules
	r     *rand.Rand

	snakes   [2][]core.Coord
	headings [2]core.Direction
	pending  [2][]core.Direction
	food     []core.Coord
	scores   [2]int

	over   bool
	winner core.Winner
}

func NewBoard(rules Rules, r *rand.Rand) *Board {
	b := &Board{
		rules: rules,
		r:     r,
	}

	b.Reset()
	return b
}

// Reset puts both snakes back at their starting cells facing each other and
// respawns the food.
func (b *Board) Reset() {
	g := b.rules.Grid
	mid := g.Height / 2
	startA := g.Width / 4
	startB := g.Width - 1 - startA

	for _, side := range sides {
		body := make([]core.Coord, b.rules.InitialLength)
		for i := range body {
			if side == SideA {
				body[i] = core.Coord{X: startA - i, Y: mid}
			} else {
				body[i] = core.Coord{X: startB + i, Y: mid}
			}
		}

		b.snakes[side] = body
		b.pending[side] = nil
		b.scores[side] = 0
	}

	b.headings[SideA] = core.Right
	b.headings[SideB] = core.Left

	b.over = false
	b.winner = core.WinnerNone

	b.food = b.food[:0]
	for i := 0; i < b.rules.FoodCount; i++ {
		b.spawnFood()
	}
}

// Enqueue validates d against the current heading of side and appends it to
// the side's pending moves.
func (b *Board) Enqueue(side int, d core.Direction) error {
	if b.over {
		return core.ErrGameNotActive
	}

	if !d.Valid() {
		return core.ErrInvalidMove
	}

	if d == b.headings[side].Opposite() {
		return core.ErrReversal
	}

	b.pending[side] = append(b.pending[side], d)
	return nil
}

// Step advances both snakes by one cell. Collisions are resolved in a fixed
// order: head to head first, then each head against walls and every occupied
// cell of both snakes. Tails that are about to move away do not count.
func (b *Board) Step() Outcome {
	if b.over {
		return Outcome{Over: true, Winner: b.winner}
	}

	var (
		heads  [2]core.Coord
		inside [2]bool
		grows  [2]bool
	)

	for _, side := range sides {
		b.consumeMove(side)

		heads[side], inside[side] = b.rules.Grid.Advance(b.snakes[side][0], b.headings[side])
		grows[side] = inside[side] && b.foodIndex(heads[side]) >= 0
	}

	if core.EqualCoord(heads[SideA], heads[SideB]) {
		b.Finish(core.WinnerDraw)
		return Outcome{Over: true, Winner: core.WinnerDraw}
	}

	var failed [2]bool
	for _, side := range sides {
		failed[side] = !inside[side] || b.blocked(heads[side], grows)
	}

	switch {
	case failed[SideA] && failed[SideB]:
		b.Finish(core.WinnerDraw)
	case failed[SideA]:
		b.Finish(core.WinnerB)
	case failed[SideB]:
		b.Finish(core.WinnerA)
	}

	if b.over {
		return Outcome{Over: true, Winner: b.winner}
	}

	// Both bodies are rebuilt from their pre-tick cells.
	var out Outcome
	next := [2][]core.Coord{}
	for _, side := range sides {
		body := b.snakes[side]
		if !grows[side] {
			body = body[:len(body)-1]
		}

		moved := make([]core.Coord, 0, len(body)+1)
		moved = append(moved, heads[side])
		next[side] = append(moved, body...)
	}
	b.snakes = next

	for _, side := range sides {
		if !grows[side] {
			continue
		}

		i := b.foodIndex(heads[side])
		b.food = append(b.food[:i], b.food[i+1:]...)
		b.scores[side]++
		out.Ate[side] = true
	}

	for _, side := range sides {
		if out.Ate[side] {
			b.spawnFood()
		}
	}

	return out
}

// Finish ends the game with the given winner.
func (b *Board) Finish(w core.Winner) {
	b.over = true
	b.winner = w

	b.pending[SideA] = nil
	b.pending[SideB] = nil
}

func (b *Board) consumeMove(side int) {
	if len(b.pending[side]) == 0 {
		return
	}

	d := b.pending[side][0]
	b.pending[side] = b.pending[side][1:]

	// The heading may have changed since d was queued.
	if d == b.headings[side].Opposite() {
		return
	}

	b.headings[side] = d
}

func (b *Board) blocked(cell core.Coord, grows [2]bool) bool {
	for _, side := range sides {
		body := b.snakes[side]
		if !grows[side] {
			body = body[:len(body)-1]
		}

		if IsOccupied(cell, body) {
			return true
		}
	}

	return false
}

func (b *Board) foodIndex(c core.Coord) int {
	for i, f := range b.food {
		if core.EqualCoord(f, c) {
			return i
		}
	}

	return -1
}

func (b *Board) spawnFood() {
	occupied := NewOccupancy(b.snakes[SideA], b.snakes[SideB], b.food)

	cell, ok := SampleFreeCell(b.r, b.rules.Grid, occupied)
	if !ok {
		return
	}

	b.food = append(b.food, cell)
}

func (b *Board) Rules() Rules {
	return b.rules
}

// Snake returns a copy of the cells of side, head first.
func (b *Board) Snake(side int) []core.Coord {
	return append([]core.Coord(nil), b.snakes[side]...)
}

func (b *Board) Heading(side int) core.Direction {
	return b.headings[side]
}

// Pending returns how many moves of side wait for consumption.
func (b *Board) Pending(side int) int {
	return len(b.pending[side])
}

func (b *Board) Food() []core.Coord {
	return append([]core.Coord(nil), b.food...)
}

func (b *Board) Score(side int) int {
	return b.scores[side]
}

func (b *Board) Over() bool {
	return b.over
}

func (b *Board) Winner() core.Winner {
	return b.winner
}

// State is the broadcast snapshot of the board.
func (b *Board) State() core.GameState {
	return core.GameState{
		SnakeA:   b.Snake(SideA),
		SnakeB:   b.Snake(SideB),
		Food:     b.Food(),
		ScoreA:   b.scores[SideA],
		ScoreB:   b.scores[SideB],
		GameOver: b.over,
		Winner:   b.winner,
	}
}
