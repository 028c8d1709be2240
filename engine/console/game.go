package console

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/core"
)

// Session is what the terminal game can ask of the server.
type Session interface {
	Move(d core.Direction) error
	Restart() error
	Leave() error
}

var key2Dir = map[tcell.Key]core.Direction{
	tcell.KeyLeft:  core.Left,
	tcell.KeyRight: core.Right,
	tcell.KeyUp:    core.Up,
	tcell.KeyDown:  core.Down,
}

var rune2Dir = map[rune]core.Direction{
	'h': core.Left,
	'l': core.Right,
	'k': core.Up,
	'j': core.Down,
}

// GameUI shows one room on a tcell screen. Players steer with arrows or
// hjkl, r restarts a finished game, Esc leaves the room.
type GameUI struct {
	screen   tcell.Screen
	renderer Renderer
	session  Session

	Role  string
	state core.GameState
	note  string
}

func NewGame(s tcell.Screen, r Renderer, session Session, role string) *GameUI {
	return &GameUI{
		screen:   s,
		renderer: r,
		session:  session,
		Role:     role,
	}
}

func (g *GameUI) player() bool {
	return g.Role == core.RoleA.String() || g.Role == core.RoleB.String()
}

func (g *GameUI) status() string {
	hint := "Esc leave"
	if g.player() {
		hint = "arrows move  r restart  " + hint
	}

	if g.note != "" {
		return g.note + "  |  " + hint
	}

	return "you are " + g.Role + "  |  " + hint
}

func (g *GameUI) draw() {
	g.renderer.Draw(g.screen, g.state, g.status())
	g.screen.Show()
}

// HandleKey applies one key press and reports whether the game screen should
// close.
func (g *GameUI) HandleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		if err := g.session.Leave(); err != nil {
			log.Err(err).Msg("Leave room")
		}
		return true
	}

	if !g.player() {
		return false
	}

	dir, arrow := key2Dir[ev.Key()]
	if !arrow && ev.Key() == tcell.KeyRune {
		dir, arrow = rune2Dir[ev.Rune()]
	}

	switch {
	case arrow:
		if err := g.session.Move(dir); err != nil {
			log.Err(err).Str("move", dir.String()).Msg("Key pressed")
		}
	case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
		if err := g.session.Restart(); err != nil {
			log.Err(err).Msg("Restart game")
		}
	}

	return false
}

// Notice shows text on the status line until replaced.
func (g *GameUI) Notice(text string) {
	g.note = text
}

// Run draws every state received and handles keys until the player leaves,
// closed says the room is gone, or ctx ends. The caller owns the screen.
func (g *GameUI) Run(ctx context.Context, states <-chan core.GameState, notices <-chan string) {
	done := make(chan struct{})
	defer close(done)

	eventCh := make(chan tcell.Event)
	go func() {
		for {
			e := g.screen.PollEvent()
			if e == nil {
				return
			}

			select {
			case eventCh <- e:
			case <-done:
				return
			}
		}
	}()

	g.draw()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			g.state = st
			g.draw()
		case text, ok := <-notices:
			if !ok {
				return
			}
			g.Notice(text)
			g.draw()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				g.screen.Sync()
			case *tcell.EventKey:
				if g.HandleKey(ev) {
					return
				}
			}
		}
	}
}
