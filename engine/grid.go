package engine

import (
	"math/rand"

	"github.com/kuredoro/snake_duel/core"
)

// sampleTries bounds random sampling before SampleFreeCell falls back to a
// full scan of the grid.
const sampleTries = 64

type Grid struct {
	Width, Height int

	// Wrap selects toroidal wraparound. Without it leaving the grid is fatal.
	Wrap bool
}

func (g Grid) Contains(c core.Coord) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

func (g Grid) Cells() int {
	return g.Width * g.Height
}

// Advance moves c one step in direction d. The second return value is false
// when the step leaves a clamped grid.
func (g Grid) Advance(c core.Coord, d core.Direction) (core.Coord, bool) {
	next := c.Add(d)
	if !g.Wrap {
		return next, g.Contains(next)
	}

	next.X = (next.X + g.Width) % g.Width
	next.Y = (next.Y + g.Height) % g.Height
	return next, true
}

// Occupancy is a set of grid cells.
type Occupancy map[core.Coord]struct{}

func NewOccupancy(groups ...[]core.Coord) Occupancy {
	occ := make(Occupancy)
	for _, cells := range groups {
		for _, c := range cells {
			occ[c] = struct{}{}
		}
	}

	return occ
}

func (o Occupancy) Has(c core.Coord) bool {
	_, ok := o[c]
	return ok
}

// SampleFreeCell returns a cell of g absent from occupied. It reports false
// only when every cell of the grid is occupied.
func SampleFreeCell(r *rand.Rand, g Grid, occupied Occupancy) (core.Coord, bool) {
	for i := 0; i < sampleTries; i++ {
		c := core.Coord{X: r.Intn(g.Width), Y: r.Intn(g.Height)}
		if !occupied.Has(c) {
			return c, true
		}
	}

	free := make([]core.Coord, 0, max(g.Cells()-len(occupied), 0))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := core.Coord{X: x, Y: y}
			if !occupied.Has(c) {
				free = append(free, c)
			}
		}
	}

	if len(free) == 0 {
		return core.Coord{}, false
	}

	return free[r.Intn(len(free))], true
}

// IsOccupied reports whether cell belongs to snake.
func IsOccupied(cell core.Coord, snake []core.Coord) bool {
	for _, c := range snake {
		if core.EqualCoord(c, cell) {
			return true
		}
	}

	return false
}
