package core

// Role is the part a member plays inside a room.
type Role int

const (
	RoleNone Role = iota
	RoleA
	RoleB
	RoleSpectator
	RoleQueued
)

var roleNames = map[Role]string{
	RoleNone:      "none",
	RoleA:         "a",
	RoleB:         "b",
	RoleSpectator: "spectator",
	RoleQueued:    "queued",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}

	return "unknown"
}

// Active reports whether r controls a snake.
func (r Role) Active() bool {
	return r == RoleA || r == RoleB
}

// Side maps an active role to the snake index it controls.
func (r Role) Side() int {
	if r == RoleB {
		return 1
	}

	return 0
}

var roleTransitions = map[Role][]Role{
	RoleNone:      {RoleA, RoleB, RoleSpectator, RoleQueued},
	RoleQueued:    {RoleA, RoleB, RoleNone},
	RoleSpectator: {RoleNone},
	RoleA:         {RoleNone},
	RoleB:         {RoleNone},
}

// CanTransition reports whether a member holding from may move to to.
func CanTransition(from, to Role) bool {
	for _, r := range roleTransitions[from] {
		if r == to {
			return true
		}
	}

	return false
}

// Winner is the outcome of a finished game.
type Winner string

const (
	WinnerNone Winner = ""
	WinnerA    Winner = "a"
	WinnerB    Winner = "b"
	WinnerDraw Winner = "draw"
)

// WinnerOf returns the winner when only the given side survives.
func WinnerOf(side int) Winner {
	if side == 1 {
		return WinnerB
	}

	return WinnerA
}
