package console

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/kuredoro/snake_duel/core"
)

type Boundary struct {
	TopLeft     core.Coord
	BottomRight core.Coord
}

// Inside reports whether coord lies strictly within the border.
func (boundary Boundary) Inside(coord core.Coord) bool {
	return coord.X > boundary.TopLeft.X && coord.X < boundary.BottomRight.X &&
		coord.Y > boundary.TopLeft.Y && coord.Y < boundary.BottomRight.Y
}

var (
	defStyle    = tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)
	boxStyle    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	foodStyle   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow)

	snakeStyles = [2]tcell.Style{
		tcell.StyleDefault.Foreground(tcell.ColorLightCyan).Background(tcell.ColorBlack),
		tcell.StyleDefault.Foreground(tcell.ColorPurple).Background(tcell.ColorBlack),
	}
)

func drawText(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style, text string) {
	row := y1
	col := x1
	for _, r := range []rune(text) {
		s.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

func drawBox(s tcell.Screen, boundary Boundary, style tcell.Style) {
	x1, y1 := boundary.TopLeft.X, boundary.TopLeft.Y
	x2, y2 := boundary.BottomRight.X, boundary.BottomRight.Y
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}

	// Fill background
	for row := y1; row <= y2; row++ {
		for col := x1; col <= x2; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}

	// Draw borders
	for col := x1; col <= x2; col++ {
		s.SetContent(col, y1, tcell.RuneHLine, nil, style)
		s.SetContent(col, y2, tcell.RuneHLine, nil, style)
	}
	for row := y1 + 1; row < y2; row++ {
		s.SetContent(x1, row, tcell.RuneVLine, nil, style)
		s.SetContent(x2, row, tcell.RuneVLine, nil, style)
	}

	// Only draw corners if necessary
	if y1 != y2 && x1 != x2 {
		s.SetContent(x1, y1, tcell.RuneULCorner, nil, style)
		s.SetContent(x2, y1, tcell.RuneURCorner, nil, style)
		s.SetContent(x1, y2, tcell.RuneLLCorner, nil, style)
		s.SetContent(x2, y2, tcell.RuneLRCorner, nil, style)
	}
}

// Renderer draws game states of a Width x Height grid with a one cell
// border at the top left corner of the screen and a status line below.
type Renderer struct {
	Width, Height int
}

func (r Renderer) bound() Boundary {
	return Boundary{
		TopLeft:     core.Coord{X: 0, Y: 0},
		BottomRight: core.Coord{X: r.Width + 1, Y: r.Height + 1},
	}
}

// screenCell maps a grid cell to the screen, or returns false for cells the
// board cannot contain.
func (r Renderer) screenCell(c core.Coord) (core.Coord, bool) {
	sc := core.Coord{X: c.X + 1, Y: c.Y + 1}
	return sc, r.bound().Inside(sc)
}

func (r Renderer) drawSnake(s tcell.Screen, body []core.Coord, style tcell.Style) {
	for i := len(body) - 1; i >= 0; i-- {
		sc, ok := r.screenCell(body[i])
		if !ok {
			continue
		}

		glyph := tcell.RuneBlock
		if i == 0 {
			glyph = tcell.RuneDiamond
		}
		s.SetContent(sc.X, sc.Y, glyph, nil, style)
	}
}

// Draw paints st and status. It does not call Show.
func (r Renderer) Draw(s tcell.Screen, st core.GameState, status string) {
	s.SetStyle(defStyle)
	s.Clear()

	b := r.bound()
	drawBox(s, b, boxStyle)

	for _, f := range st.Food {
		if sc, ok := r.screenCell(f); ok {
			s.SetContent(sc.X, sc.Y, '#', nil, foodStyle)
		}
	}

	r.drawSnake(s, st.SnakeA, snakeStyles[0])
	r.drawSnake(s, st.SnakeB, snakeStyles[1])

	w, _ := s.Size()
	line := b.BottomRight.Y + 1
	drawText(s, 0, line, w, line, statusStyle, Score(st))
	if status != "" {
		drawText(s, 0, line+1, w, line+1, defStyle, status)
	}
}

// Score renders the status line of st.
func Score(st core.GameState) string {
	text := fmt.Sprintf("a %d : %d b", st.ScoreA, st.ScoreB)
	if !st.GameOver {
		return text
	}

	switch st.Winner {
	case core.WinnerDraw:
		return text + "  draw"
	case core.WinnerA, core.WinnerB:
		return text + "  " + string(st.Winner) + " won"
	}

	return text + "  game over"
}
