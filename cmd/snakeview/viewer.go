package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine/console"
	"github.com/kuredoro/snake_duel/transport/ws"
)

// match is one stay in a room as seen by the game screen.
type match struct {
	role string

	states  chan core.GameState
	notices chan string

	ended  bool
	reason string
}

func newMatch(joined core.JoinedRoom) *match {
	return &match{
		role:    joined.Role,
		states:  make(chan core.GameState, 1),
		notices: make(chan string, 8),
	}
}

// push keeps only the newest state when the screen falls behind.
func (m *match) push(st core.GameState) {
	for {
		select {
		case m.states <- st:
			return
		default:
		}

		select {
		case <-m.states:
		default:
		}
	}
}

func (m *match) notice(text string) {
	select {
	case m.notices <- text:
	default:
	}
}

func (m *match) end(reason string) {
	if m.ended {
		return
	}

	m.ended = true
	m.reason = reason
	close(m.states)
}

// viewer alternates between the tview lobby and the tcell game screen. One
// goroutine reads frames from the server and hands them to whichever screen
// is shown.
type viewer struct {
	client   *ws.Client
	renderer console.Renderer
	lobby    *console.Lobby

	mu      sync.Mutex
	app     *tview.Application
	match   *match // receives frames while set
	pending *match // joined but not shown yet
	quit    bool
	rooms   []core.RoomSummary
	status  string
}

func newViewer(client *ws.Client, r console.Renderer) *viewer {
	v := &viewer{client: client, renderer: r}

	v.lobby = console.NewLobby(console.LobbyActions{
		Join:     v.join,
		Spectate: v.spectate,
		Create:   v.create,
		Quit: func() {
			v.mu.Lock()
			v.quit = true
			app := v.app
			v.mu.Unlock()

			app.Stop()
		},
	})

	return v
}

func (v *viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for f := range v.client.Frames() {
			v.dispatch(f)
		}
	}()

	if err := v.client.Send(core.EventListRooms, core.ClientData{}); err != nil {
		return err
	}

	for {
		m, err := v.runLobby(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}

		if err := v.runGame(ctx, m); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		if err := v.client.Err(); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
	}

	return nil
}

func (v *viewer) runLobby(ctx context.Context) (*match, error) {
	app := tview.NewApplication()

	v.mu.Lock()
	if m := v.pending; m != nil {
		v.pending = nil
		v.mu.Unlock()
		return m, nil
	}
	v.app = app
	v.lobby.SetRooms(v.rooms)
	v.lobby.SetStatus(v.status)
	v.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			app.Stop()
		case <-stop:
		}
	}()

	if err := app.SetRoot(v.lobby.Primitive(), true).Run(); err != nil {
		return nil, fmt.Errorf("run lobby: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.quit || ctx.Err() != nil {
		return nil, nil
	}

	m := v.pending
	v.pending = nil
	return m, nil
}

func (v *viewer) runGame(ctx context.Context, m *match) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer s.Fini()

	game := console.NewGame(s, v.renderer, v.client, m.role)
	game.Run(ctx, m.states, m.notices)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.match == m {
		v.match = nil
	}
	v.app = nil
	v.status = m.reason
	return nil
}

// dispatch applies one frame. Calls into tview happen after the lock is
// released, since tview callbacks take it too.
func (v *viewer) dispatch(f ws.Frame) {
	v.mu.Lock()

	var after func()
	if v.match != nil {
		after = v.inMatch(f)
	} else {
		after = v.inLobby(f)
	}

	v.mu.Unlock()

	if after != nil {
		after()
	}
}

func (v *viewer) setRooms(f ws.Frame) {
	var rooms []core.RoomSummary
	if err := f.Decode(&rooms); err != nil {
		log.Err(err).Msg("Decode room list")
		return
	}

	v.rooms = rooms
}

// refresh redraws the lobby if it is on screen. runLobby picks up the
// latest rooms and status otherwise.
func (v *viewer) refresh() func() {
	app := v.app
	if app == nil {
		return nil
	}

	return func() {
		app.QueueUpdateDraw(func() {
			v.mu.Lock()
			rooms, status := v.rooms, v.status
			v.mu.Unlock()

			v.lobby.SetRooms(rooms)
			v.lobby.SetStatus(status)
		})
	}
}

func (v *viewer) inLobby(f ws.Frame) func() {
	switch f.Event {
	case core.EventUpdateRoomList:
		v.setRooms(f)
		return v.refresh()
	case core.EventRoomCreated:
		var created core.RoomCreated
		if err := f.Decode(&created); err != nil {
			return nil
		}
		v.status = "created room " + created.RoomID
		return v.refresh()
	case core.EventJoinError:
		var msg core.ErrorMessage
		if err := f.Decode(&msg); err != nil {
			return nil
		}
		v.status = "[red]" + msg.Message
		return v.refresh()
	case core.EventJoinedRoom:
		var joined core.JoinedRoom
		if err := f.Decode(&joined); err != nil {
			log.Err(err).Msg("Decode joined room")
			return nil
		}

		// Frames from here on belong to the game screen.
		v.match = newMatch(joined)
		v.pending = v.match
		v.status = ""
		if v.app == nil {
			return nil
		}
		return v.app.Stop
	}

	return nil
}

func (v *viewer) inMatch(f ws.Frame) func() {
	m := v.match

	if f.Event == core.EventUpdateRoomList {
		v.setRooms(f)
		return nil
	}

	if m.ended {
		return nil
	}

	switch f.Event {
	case core.EventGameState:
		var st core.GameState
		if err := f.Decode(&st); err != nil {
			log.Err(err).Msg("Decode game state")
			return nil
		}
		m.push(st)
	case core.EventOpponentLeft:
		m.notice("opponent left, waiting for a new one")
	case core.EventRestartError:
		var msg core.ErrorMessage
		if err := f.Decode(&msg); err == nil {
			m.notice(msg.Message)
		}
	case core.EventJoinedRoom:
		var joined core.JoinedRoom
		if err := f.Decode(&joined); err != nil || joined.Role == m.role {
			return nil
		}

		// Promoted from the queue. The game screen reopens with the new role.
		m.end("")
		v.match = newMatch(joined)
		v.pending = v.match
	case core.EventRoomClosed:
		var rc core.RoomClosed
		if err := f.Decode(&rc); err != nil {
			log.Err(err).Msg("Decode room closed")
		}
		m.end("room closed: " + rc.Reason)
	}

	return nil
}

func (v *viewer) join(rm core.RoomSummary) {
	data := core.ClientData{RoomID: rm.ID, Queue: rm.PlayerCount >= 2}
	v.withPassword(rm.HasPassword, event{core.EventJoinRoom, data})
}

func (v *viewer) spectate(rm core.RoomSummary) {
	v.withPassword(rm.HasPassword, event{core.EventSpectateRoom, core.ClientData{RoomID: rm.ID}})
}

func (v *viewer) create(vsComputer bool) {
	if vsComputer {
		v.send(event{core.EventCreateRoom, core.ClientData{VsComputer: true}})
		return
	}

	v.withPassword(true, event{core.EventCreateRoom, core.ClientData{}})
}

type event struct {
	name string
	data core.ClientData
}

// withPassword asks for a room password before sending e. An empty password
// leaves the room open. Runs on the tview event loop.
func (v *viewer) withPassword(ask bool, e event) {
	if !ask {
		v.send(e)
		return
	}

	v.mu.Lock()
	app := v.app
	v.mu.Unlock()

	back := func() { app.SetRoot(v.lobby.Primitive(), true) }

	form := console.Prompt("Password", true, func(text string) {
		e.data.Password = text
		back()
		v.send(e)
	}, back)

	app.SetRoot(form, true)
}

func (v *viewer) send(e event) {
	if err := v.client.Send(e.name, e.data); err != nil {
		log.Err(err).Str("event", e.name).Msg("Send to server")
		v.lobby.SetStatus("[red]" + err.Error())
	}
}
