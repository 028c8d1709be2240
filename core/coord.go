package core

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func EqualCoord(a, b Coord) bool {
	return a.X == b.X && a.Y == b.Y
}

// Add returns the cell one step away from c in direction d.
func (c Coord) Add(d Direction) Coord {
	shift := shiftMap[d]
	return Coord{X: c.X + shift.X, Y: c.Y + shift.Y}
}

type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

var shiftMap = map[Direction]Coord{
	Up:    {X: 0, Y: -1},
	Right: {X: 1, Y: 0},
	Down:  {X: 0, Y: 1},
	Left:  {X: -1, Y: 0},
}

// Directions lists every heading in a fixed order, clockwise from Up.
var Directions = [...]Direction{Up, Right, Down, Left}

func (d Direction) Valid() bool {
	_, ok := shiftMap[d]
	return ok
}

// Opposite returns the heading that reverses d.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

func (d Direction) Vector() Coord {
	return shiftMap[d]
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}

	return "unknown"
}

// DirectionFromVector accepts only the four axis-aligned unit vectors.
func DirectionFromVector(x, y int) (Direction, bool) {
	for _, d := range Directions {
		v := shiftMap[d]
		if v.X == x && v.Y == y {
			return d, true
		}
	}

	return 0, false
}
