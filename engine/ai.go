package engine

import "github.com/kuredoro/snake_duel/core"

// ChooseDirection picks the next heading for a computer controlled side.
// Headings that reverse the snake or lead straight into a collision are
// skipped; among the safe ones it takes the one closest to food. When every
// heading is unsafe the current one is kept.
func ChooseDirection(b *Board, side int) core.Direction {
	current := b.headings[side]
	if len(b.pending[side]) > 0 {
		current = b.pending[side][len(b.pending[side])-1]
	}

	head := b.snakes[side][0]
	noGrowth := [2]bool{}

	best, bestDist := current, -1
	for _, d := range candidates(current) {
		next, ok := b.rules.Grid.Advance(head, d)
		if !ok || b.blocked(next, noGrowth) {
			continue
		}

		dist := b.foodDistance(next)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d, dist
		}
	}

	return best
}

// candidates lists the current heading first, then the two turns.
func candidates(current core.Direction) []core.Direction {
	out := make([]core.Direction, 0, 3)
	out = append(out, current)
	for _, d := range core.Directions {
		if d != current && d != current.Opposite() {
			out = append(out, d)
		}
	}

	return out
}

func (b *Board) foodDistance(c core.Coord) int {
	if len(b.food) == 0 {
		return 0
	}

	best := -1
	for _, f := range b.food {
		if d := manhattan(c, f); best < 0 || d < best {
			best = d
		}
	}

	return best
}

func manhattan(a, b core.Coord) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	return dx + dy
}
