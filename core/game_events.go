package core

// Inbound events, client to server.
const (
	EventRegisterUser = "registerUser"
	EventCreateRoom   = "createRoom"
	EventJoinRoom     = "joinRoom"
	EventSpectateRoom = "spectateRoom"
	EventLeaveRoom    = "leaveRoom"
	EventPlayerMove   = "playerMove"
	EventRestartGame  = "restartGame"
	EventListRooms    = "listRooms"
	EventPing         = "ping"
)

// Outbound events, server to client.
const (
	EventRegistered     = "registeredSuccessfully"
	EventRegisterError  = "registerError"
	EventRoomCreated    = "roomCreated"
	EventJoinedRoom     = "joinedRoom"
	EventJoinError      = "joinError"
	EventRestartError   = "restartError"
	EventUpdateRoomList = "updateRoomList"
	EventGameState      = "gameState"
	EventOpponentLeft   = "opponentLeft"
	EventPopulation     = "population"
	EventLeaderboard    = "leaderboard"
	EventRoomClosed     = "roomClosed"
	EventPong           = "pong"
)

// ClientMessage is the envelope of every inbound event. ClientData carries
// the union of all inbound payload fields; each event reads only the ones it
// needs. The protocol is small enough for this to stay readable.
type ClientMessage struct {
	Event string     `json:"event"`
	Data  ClientData `json:"data"`
}

type ClientData struct {
	Username   string `json:"username,omitempty"`
	Name       string `json:"name,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	Password   string `json:"password,omitempty"`
	Queue      bool   `json:"queue,omitempty"`
	VsComputer bool   `json:"vsComputer,omitempty"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	TS         int64  `json:"ts,omitempty"`
}

// ServerMessage is the envelope of every outbound event.
type ServerMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	HasPassword bool   `json:"hasPassword"`
	Spectators  int    `json:"spectators"`
	VsComputer  bool   `json:"vsComputer"`
}

type GameState struct {
	SnakeA   []Coord `json:"snake_a"`
	SnakeB   []Coord `json:"snake_b"`
	Food     []Coord `json:"food"`
	ScoreA   int     `json:"score_a"`
	ScoreB   int     `json:"score_b"`
	GameOver bool    `json:"game_over"`
	Winner   Winner  `json:"winner,omitempty"`
	Tick     uint64  `json:"tick"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

type JoinedRoom struct {
	Role   string `json:"role"`
	RoomID string `json:"roomId"`
	Name   string `json:"name,omitempty"`
}

// ErrorMessage is the payload of joinError, registerError and restartError.
type ErrorMessage struct {
	Message string `json:"message"`
}

type Population struct {
	Players    int `json:"players"`
	Spectators int `json:"spectators"`
}

type LeaderboardRow struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Leaderboard struct {
	Rows []LeaderboardRow `json:"rows"`
}

type RoomClosed struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type Pong struct {
	TS int64 `json:"ts"`
}
