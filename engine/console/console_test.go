package console_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine/console"
)

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func AssertSimulationScreen(t *testing.T, got tcell.SimulationScreen, want []string) {
	t.Helper()

	gotCells, w, h := got.GetContents()
	wantCells, wantWidth, wantHeight := SimCellsFromStrings(want)

	if w != wantWidth || h != wantHeight {
		t.Fatalf("got simulation screen of size %dx%d, want %dx%d", w, h, wantWidth, wantHeight)
		return
	}

	for i := range gotCells {
		if len(gotCells[i].Runes) == 0 && len(wantCells[i].Runes) == 1 && wantCells[i].Runes[0] == ' ' {
			continue
		}

		if !runesEqual(gotCells[i].Runes, wantCells[i].Runes) {
			t.Errorf("at %dx%d got simcell with contents %q, want %q", i%w+1, i/w+1,
				string(gotCells[i].Runes), string(wantCells[i].Runes))
		}
	}
}

func SimCellsFromStrings(rows []string) ([]tcell.SimCell, int, int) {
	if len(rows) == 0 {
		return nil, 0, 0
	}

	width := len([]rune(rows[0]))
	for i := range rows {
		if n := len([]rune(rows[i])); n != width {
			panic(fmt.Sprintf("inconsistent simulation screen row dimensions: "+
				"row #1 being %d columns wide, while row #%d being %d",
				width, i+1, n))
		}
	}

	cells := make([]tcell.SimCell, len(rows)*width)
	for y := range rows {
		for x, r := range []rune(rows[y]) {
			cells[width*y+x].Runes = []rune{r}
		}
	}

	return cells, width, len(rows)
}

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()

	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	s.SetSize(w, h)

	return s
}

func sampleState() core.GameState {
	return core.GameState{
		SnakeA: []core.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}},
		SnakeB: []core.Coord{{X: 3, Y: 1}},
		Food:   []core.Coord{{X: 2, Y: 1}},
		ScoreA: 1,
	}
}

func TestRenderer(t *testing.T) {
	t.Run("draws board and score", func(t *testing.T) {
		s := newScreen(t, 16, 5)
		defer s.Fini()

		console.Renderer{Width: 4, Height: 2}.Draw(s, sampleState(), "")
		s.Show()

		AssertSimulationScreen(t, s, []string{
			"┌────┐          ",
			"│◆█  │          ",
			"│  #◆│          ",
			"└────┘          ",
			"a 1 : 0 b       ",
		})
	})

	t.Run("cells off the board are skipped", func(t *testing.T) {
		s := newScreen(t, 6, 4)
		defer s.Fini()

		st := core.GameState{SnakeA: []core.Coord{{X: -1, Y: 0}, {X: 0, Y: 0}}}
		console.Renderer{Width: 4, Height: 2}.Draw(s, st, "")
		s.Show()

		AssertSimulationScreen(t, s, []string{
			"┌────┐",
			"│█   │",
			"│    │",
			"└────┘",
		})
	})
}

func TestScore(t *testing.T) {
	cases := []struct {
		state core.GameState
		want  string
	}{
		{core.GameState{ScoreA: 2, ScoreB: 1}, "a 2 : 1 b"},
		{core.GameState{GameOver: true, Winner: core.WinnerDraw}, "a 0 : 0 b  draw"},
		{core.GameState{GameOver: true, Winner: core.WinnerB}, "a 0 : 0 b  b won"},
		{core.GameState{GameOver: true}, "a 0 : 0 b  game over"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, console.Score(tc.state))
	}
}

type recordingSession struct {
	mu       sync.Mutex
	moves    []core.Direction
	restarts int
	left     bool
}

func (s *recordingSession) Move(d core.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, d)
	return nil
}

func (s *recordingSession) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
	return nil
}

func (s *recordingSession) Leave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = true
	return nil
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func char(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestGameKeys(t *testing.T) {
	t.Run("player", func(t *testing.T) {
		sess := &recordingSession{}
		g := console.NewGame(nil, console.Renderer{}, sess, "a")

		assert.False(t, g.HandleKey(key(tcell.KeyUp)))
		assert.False(t, g.HandleKey(char('l')))
		assert.False(t, g.HandleKey(char('x')))
		assert.False(t, g.HandleKey(char('r')))

		assert.Equal(t, []core.Direction{core.Up, core.Right}, sess.moves)
		assert.Equal(t, 1, sess.restarts)

		assert.True(t, g.HandleKey(key(tcell.KeyEscape)))
		assert.True(t, sess.left)
	})

	t.Run("spectator cannot steer", func(t *testing.T) {
		sess := &recordingSession{}
		g := console.NewGame(nil, console.Renderer{}, sess, "spectator")

		g.HandleKey(key(tcell.KeyLeft))
		g.HandleKey(char('r'))

		assert.Empty(t, sess.moves)
		assert.Zero(t, sess.restarts)
	})
}

func TestGameRun(t *testing.T) {
	s := newScreen(t, 16, 6)
	defer s.Fini()

	sess := &recordingSession{}
	g := console.NewGame(s, console.Renderer{Width: 4, Height: 2}, sess, "b")

	states := make(chan core.GameState)
	notices := make(chan string)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(context.Background(), states, notices)
	}()

	states <- sampleState()
	notices <- "opponent left"
	s.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("game did not stop on Esc")
	}

	sess.mu.Lock()
	assert.True(t, sess.left)
	sess.mu.Unlock()

	cells, w, _ := s.GetContents()
	assert.Equal(t, []rune{tcell.RuneDiamond}, cells[1*w+1].Runes)
	assert.Equal(t, []rune{'o'}, cells[5*w+0].Runes, "notice on the status line")
}

func TestLobby(t *testing.T) {
	var joined, watched []core.RoomSummary
	var created []bool

	l := console.NewLobby(console.LobbyActions{
		Join:     func(rm core.RoomSummary) { joined = append(joined, rm) },
		Spectate: func(rm core.RoomSummary) { watched = append(watched, rm) },
		Create:   func(vs bool) { created = append(created, vs) },
	})

	rooms := []core.RoomSummary{
		{ID: "0123456789abcdef", PlayerCount: 1, HasPassword: true},
		{ID: "r2", PlayerCount: 2, Spectators: 3, VsComputer: true},
	}
	l.SetRooms(rooms)

	table := l.Table()
	require.Equal(t, 3, table.GetRowCount())
	assert.Equal(t, "01234567", table.GetCell(1, 0).Text)
	assert.Equal(t, "1/2", table.GetCell(1, 1).Text)
	assert.Equal(t, "yes", table.GetCell(1, 2).Text)
	assert.Equal(t, "3", table.GetCell(2, 3).Text)
	assert.Equal(t, "computer", table.GetCell(2, 4).Text)

	handle := table.InputHandler()
	noFocus := func(tview.Primitive) {}

	handle(key(tcell.KeyEnter), noFocus)
	handle(char('s'), noFocus)
	handle(char('v'), noFocus)
	handle(char('c'), noFocus)

	assert.Equal(t, rooms[:1], joined)
	assert.Equal(t, rooms[:1], watched)
	assert.Equal(t, []bool{true, false}, created)

	l.SetRooms(nil)
	assert.Equal(t, 1, table.GetRowCount())
	handle(key(tcell.KeyEnter), noFocus)
	assert.Len(t, joined, 1)
}
