package room

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine"
)

// Identity names a participant: a registered username.
type Identity string

// Computer is the identity seated in slot b of a room played against the
// built-in heuristic. It has no connection.
const Computer Identity = "@computer"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseGameOver:
		return "game_over"
	}

	return "unknown"
}

type PlayerSession struct {
	Identity Identity
	Name     string
	Role     core.Role

	// LastDirection is the heading committed by the last tick.
	LastDirection core.Direction
}

// Room is one duel: the two slots, everybody watching or waiting, and the
// board they all look at.
type Room struct {
	id       string
	password string

	createdAt  time.Time
	lastActive time.Time

	members map[Identity]*PlayerSession
	joined  []Identity // join order of members
	slots   [2]Identity
	queue   []Identity

	board *engine.Board
	phase Phase
	task  Task
	tick  uint64

	vsComputer bool

	log zerolog.Logger
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) HasPassword() bool {
	return r.password != ""
}

func (r *Room) Phase() Phase {
	return r.phase
}

func (r *Room) Board() *engine.Board {
	return r.board
}

func (r *Room) Ticks() uint64 {
	return r.tick
}

func (r *Room) Member(id Identity) (*PlayerSession, bool) {
	s, ok := r.members[id]
	return s, ok
}

// Members lists human members in join order.
func (r *Room) Members() []Identity {
	return append([]Identity(nil), r.joined...)
}

// Slot returns the identity holding role, or "" when the slot is free.
func (r *Room) Slot(role core.Role) Identity {
	if !role.Active() {
		return ""
	}

	return r.slots[role.Side()]
}

// Queue lists identities waiting for a slot, first in line first.
func (r *Room) Queue() []Identity {
	return append([]Identity(nil), r.queue...)
}

func (r *Room) filledSlots() int {
	n := 0
	for _, id := range r.slots {
		if id != "" {
			n++
		}
	}

	return n
}

// freeRole picks b when a is taken and a otherwise.
func (r *Room) freeRole() (core.Role, bool) {
	switch {
	case r.slots[engine.SideA] == "":
		return core.RoleA, true
	case r.slots[engine.SideB] == "":
		return core.RoleB, true
	}

	return core.RoleNone, false
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}

func (r *Room) add(s *PlayerSession) {
	r.members[s.Identity] = s
	r.joined = append(r.joined, s.Identity)
}

func (r *Room) remove(id Identity) {
	delete(r.members, id)

	r.joined = without(r.joined, id)
	r.queue = without(r.queue, id)

	for side, holder := range r.slots {
		if holder == id {
			r.slots[side] = ""
		}
	}
}

// assign moves a member to role, keeping slots and queue consistent with the
// role transition table.
func (r *Room) assign(s *PlayerSession, role core.Role) error {
	if !core.CanTransition(s.Role, role) {
		return fmt.Errorf("assign %s: %s to %s is not allowed", s.Identity, s.Role, role)
	}

	if role.Active() {
		if holder := r.slots[role.Side()]; holder != "" {
			return fmt.Errorf("assign %s: slot %s is held by %s", s.Identity, role, holder)
		}
	}

	if s.Role == core.RoleQueued {
		r.queue = without(r.queue, s.Identity)
	}

	switch {
	case role.Active():
		r.slots[role.Side()] = s.Identity
	case role == core.RoleQueued:
		r.queue = append(r.queue, s.Identity)
	}

	s.Role = role
	return nil
}

func (r *Room) Summary() core.RoomSummary {
	return core.RoomSummary{
		ID:          r.id,
		PlayerCount: r.filledSlots(),
		HasPassword: r.HasPassword(),
		Spectators:  len(r.members) - r.humanPlayers(),
		VsComputer:  r.vsComputer,
	}
}

func (r *Room) humanPlayers() int {
	n := 0
	for _, id := range r.slots {
		if id != "" && id != Computer {
			n++
		}
	}

	return n
}

func (r *Room) Population() core.Population {
	return core.Population{
		Players:    r.filledSlots(),
		Spectators: len(r.members) - r.humanPlayers(),
	}
}

func (r *Room) Leaderboard() core.Leaderboard {
	rows := make([]core.LeaderboardRow, 0, 2)
	for _, role := range [...]core.Role{core.RoleA, core.RoleB} {
		holder := r.slots[role.Side()]
		if holder == "" {
			continue
		}

		name := "Computer"
		if s, ok := r.members[holder]; ok {
			name = s.Name
		}

		rows = append(rows, core.LeaderboardRow{
			Role:  role.String(),
			Name:  name,
			Score: r.board.Score(role.Side()),
		})
	}

	// Highest score first, a before b on ties.
	if len(rows) == 2 && rows[1].Score > rows[0].Score {
		rows[0], rows[1] = rows[1], rows[0]
	}

	return core.Leaderboard{Rows: rows}
}

// State is the snapshot broadcast after every tick.
func (r *Room) State() core.GameState {
	state := r.board.State()
	state.Tick = r.tick
	return state
}

func without(ids []Identity, id Identity) []Identity {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}

	return out
}
