package room

import (
	"crypto/subtle"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/engine"
)

type Settings struct {
	Rules        engine.Rules
	TickInterval time.Duration

	// IdleTimeout is how long a room may stay without a running game before
	// Sweep closes it. Zero disables the sweep.
	IdleTimeout time.Duration

	MaxNameLength int
}

// Notifier delivers outbound events. Notify to an identity without a
// connection is a no-op.
type Notifier interface {
	Notify(to Identity, event string, payload interface{})
	NotifyAll(event string, payload interface{})
}

type CreateOptions struct {
	Password   string
	Name       string
	VsComputer bool
}

type JoinOptions struct {
	Password string
	Name     string

	// Queue makes a join into a full room wait for a free slot instead of
	// failing with core.ErrRoomFull.
	Queue bool
}

// Registry owns every room and the membership of every identity. It is not
// safe for concurrent use: all calls, including Tick, must come from a single
// goroutine.
type Registry struct {
	settings Settings

	rooms map[string]*Room
	where map[Identity]string

	notify Notifier
	sched  Scheduler

	newID func() string
	rand  *rand.Rand
	now   func() time.Time
	log   zerolog.Logger
}

type Option func(*Registry)

func WithIDs(gen func() string) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(r *Registry) {
		r.rand = rnd
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

func NewRegistry(settings Settings, notify Notifier, sched Scheduler, opts ...Option) *Registry {
	r := &Registry{
		settings: settings,
		rooms:    make(map[string]*Room),
		where:    make(map[Identity]string),
		notify:   notify,
		sched:    sched,
		newID:    uuid.NewString,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		log:      log.Logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Room returns a room by id.
func (r *Registry) Room(id string) (*Room, bool) {
	rm, ok := r.rooms[id]
	return rm, ok
}

// RoomOf returns the room id is in.
func (r *Registry) RoomOf(id Identity) (*Room, bool) {
	roomID, ok := r.where[id]
	if !ok {
		return nil, false
	}

	return r.Room(roomID)
}

func (r *Registry) CreateRoom(id Identity, opts CreateOptions) (string, error) {
	if _, in := r.where[id]; in {
		return "", &core.IdentityError{Identity: string(id), Err: core.ErrAlreadyInRoom}
	}

	now := r.now()
	rm := &Room{
		id:         r.newID(),
		password:   opts.Password,
		createdAt:  now,
		lastActive: now,
		members:    make(map[Identity]*PlayerSession),
		board:      engine.NewBoard(r.settings.Rules, r.rand),
		vsComputer: opts.VsComputer,
	}
	rm.log = r.log.With().Str("room", rm.id).Logger()

	s := &PlayerSession{Identity: id, Name: r.displayName(id, opts.Name)}
	rm.add(s)
	if err := rm.assign(s, core.RoleA); err != nil {
		return "", err
	}

	r.rooms[rm.id] = rm
	r.where[id] = rm.id

	rm.log.Info().
		Str("creator", string(id)).
		Bool("password", rm.HasPassword()).
		Bool("vs_computer", rm.vsComputer).
		Msg("Room created")

	r.notify.Notify(id, core.EventRoomCreated, core.RoomCreated{RoomID: rm.id})
	r.notify.Notify(id, core.EventJoinedRoom, core.JoinedRoom{
		Role:   core.RoleA.String(),
		RoomID: rm.id,
		Name:   s.Name,
	})

	if rm.vsComputer {
		rm.slots[engine.SideB] = Computer
		r.startGame(rm)
	}

	r.membershipChanged(rm)
	return rm.id, nil
}

// JoinRoom seats id in the free slot of a room, b when a is taken. Filling
// the second slot starts the game.
func (r *Registry) JoinRoom(id Identity, roomID string, opts JoinOptions) (core.Role, error) {
	rm, err := r.enter(id, roomID, opts.Password)
	if err != nil {
		return core.RoleNone, err
	}

	role, free := rm.freeRole()
	if !free {
		if !opts.Queue {
			return core.RoleNone, &core.IdentityError{Identity: string(id), Err: core.ErrRoomFull}
		}
		role = core.RoleQueued
	}

	s := &PlayerSession{Identity: id, Name: r.displayName(id, opts.Name)}
	rm.add(s)
	if err := rm.assign(s, role); err != nil {
		rm.remove(id)
		return core.RoleNone, err
	}
	r.where[id] = rm.id

	rm.log.Info().
		Str("identity", string(id)).
		Str("role", role.String()).
		Msg("Joined room")

	r.notify.Notify(id, core.EventJoinedRoom, core.JoinedRoom{
		Role:   role.String(),
		RoomID: rm.id,
		Name:   s.Name,
	})

	if rm.filledSlots() == 2 && rm.phase == PhaseIdle {
		r.startGame(rm)
	} else if rm.phase != PhaseIdle {
		r.notify.Notify(id, core.EventGameState, rm.State())
	}

	r.membershipChanged(rm)
	return role, nil
}

// Spectate adds id to a room without a slot.
func (r *Registry) Spectate(id Identity, roomID string, opts JoinOptions) error {
	rm, err := r.enter(id, roomID, opts.Password)
	if err != nil {
		return err
	}

	s := &PlayerSession{Identity: id, Name: r.displayName(id, opts.Name)}
	rm.add(s)
	if err := rm.assign(s, core.RoleSpectator); err != nil {
		rm.remove(id)
		return err
	}
	r.where[id] = rm.id

	rm.log.Info().Str("identity", string(id)).Msg("Spectating room")

	r.notify.Notify(id, core.EventJoinedRoom, core.JoinedRoom{
		Role:   core.RoleSpectator.String(),
		RoomID: rm.id,
		Name:   s.Name,
	})

	if rm.phase != PhaseIdle {
		r.notify.Notify(id, core.EventGameState, rm.State())
	}

	r.membershipChanged(rm)
	return nil
}

func (r *Registry) enter(id Identity, roomID, password string) (*Room, error) {
	if _, in := r.where[id]; in {
		return nil, &core.IdentityError{Identity: string(id), Err: core.ErrAlreadyInRoom}
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, core.ErrRoomNotFound
	}

	if rm.HasPassword() && subtle.ConstantTimeCompare([]byte(rm.password), []byte(password)) != 1 {
		return nil, &core.IdentityError{Identity: string(id), Err: core.ErrBadPassword}
	}

	return rm, nil
}

// Leave removes id from its room. It serves both an explicit leaveRoom and a
// dropped connection. When an active player leaves, the game stops, the rest
// of the room is told the opponent left and the first queued member takes the
// vacant slot. Empty rooms are destroyed.
func (r *Registry) Leave(id Identity) error {
	rm, ok := r.RoomOf(id)
	if !ok {
		return core.ErrNotInRoom
	}

	s := rm.members[id]
	wasActive := s.Role.Active()

	rm.remove(id)
	delete(r.where, id)

	rm.log.Info().
		Str("identity", string(id)).
		Str("role", s.Role.String()).
		Msg("Left room")

	if rm.empty() {
		r.destroy(rm, "empty")
		r.notify.NotifyAll(core.EventUpdateRoomList, r.ListRooms())
		return nil
	}

	if wasActive {
		r.stopGame(rm, PhaseIdle)
		r.broadcast(rm, core.EventOpponentLeft, nil)
		r.backfill(rm)
	}

	r.membershipChanged(rm)
	return nil
}

// backfill promotes queued members into free slots, first come first served.
func (r *Registry) backfill(rm *Room) {
	for len(rm.queue) > 0 {
		role, free := rm.freeRole()
		if !free {
			break
		}

		s := rm.members[rm.queue[0]]
		if err := rm.assign(s, role); err != nil {
			rm.log.Warn().Err(err).Msg("Promote queued member")
			rm.queue = rm.queue[1:]
			continue
		}

		rm.log.Info().
			Str("identity", string(s.Identity)).
			Str("role", role.String()).
			Msg("Promoted from queue")

		r.notify.Notify(s.Identity, core.EventJoinedRoom, core.JoinedRoom{
			Role:   role.String(),
			RoomID: rm.id,
			Name:   s.Name,
		})
	}

	if rm.filledSlots() == 2 && rm.phase == PhaseIdle {
		r.startGame(rm)
	}
}

// Move queues a heading for the snake of id.
func (r *Registry) Move(id Identity, d core.Direction) error {
	rm, ok := r.RoomOf(id)
	if !ok {
		return core.ErrNotInRoom
	}

	s := rm.members[id]
	if !s.Role.Active() {
		return core.ErrNotPlayer
	}

	if rm.phase != PhaseRunning {
		return core.ErrGameNotActive
	}

	return rm.board.Enqueue(s.Role.Side(), d)
}

// Restart starts a new game in a room whose game is over. Only the holder of
// slot a may do this.
func (r *Registry) Restart(id Identity) error {
	rm, ok := r.RoomOf(id)
	if !ok {
		return core.ErrNotInRoom
	}

	if rm.slots[engine.SideA] != id {
		return &core.IdentityError{Identity: string(id), Err: core.ErrNotAuthorized}
	}

	if rm.phase != PhaseGameOver {
		return core.ErrGameNotOver
	}

	rm.log.Info().Str("identity", string(id)).Msg("Restart game")

	r.startGame(rm)
	return nil
}

// Tick advances the room named by t one step. Ticks from tasks that are no
// longer current are dropped.
func (r *Registry) Tick(t Tick) {
	rm, ok := r.rooms[t.Room]
	if !ok || rm.task == nil || rm.task != t.Task || rm.phase != PhaseRunning {
		return
	}

	for side, holder := range rm.slots {
		if holder == Computer {
			continue
		}

		if _, ok := rm.members[holder]; holder == "" || !ok {
			rm.log.Warn().
				Int("side", side).
				Str("identity", string(holder)).
				Msg("Slot holder missing during tick, ending game")

			rm.board.Finish(core.WinnerNone)
			r.stopGame(rm, PhaseGameOver)
			r.broadcast(rm, core.EventGameState, rm.State())
			return
		}
	}

	if rm.vsComputer && rm.slots[engine.SideB] == Computer && rm.board.Pending(engine.SideB) == 0 {
		// A reversal is never chosen, so the error can only be a stale heading.
		_ = rm.board.Enqueue(engine.SideB, engine.ChooseDirection(rm.board, engine.SideB))
	}

	out := rm.board.Step()
	rm.tick++
	rm.lastActive = r.now()

	for side, holder := range rm.slots {
		if s, ok := rm.members[holder]; ok {
			s.LastDirection = rm.board.Heading(side)
		}
	}

	if out.Over {
		rm.log.Info().
			Str("winner", string(out.Winner)).
			Uint64("tick", rm.tick).
			Msg("Game over")

		r.stopGame(rm, PhaseGameOver)
	}

	r.broadcast(rm, core.EventGameState, rm.State())

	if out.Ate[engine.SideA] || out.Ate[engine.SideB] {
		r.broadcast(rm, core.EventLeaderboard, rm.Leaderboard())
	}
}

// Sweep closes rooms that have gone without a running game for longer than
// the idle timeout. It returns the number of rooms closed.
func (r *Registry) Sweep(now time.Time) int {
	if r.settings.IdleTimeout <= 0 {
		return 0
	}

	closed := 0
	for _, rm := range r.sortedRooms() {
		if rm.phase == PhaseRunning || now.Sub(rm.lastActive) <= r.settings.IdleTimeout {
			continue
		}

		r.broadcast(rm, core.EventRoomClosed, core.RoomClosed{RoomID: rm.id, Reason: "idle"})
		r.destroy(rm, "idle")
		closed++
	}

	if closed > 0 {
		r.notify.NotifyAll(core.EventUpdateRoomList, r.ListRooms())
	}

	return closed
}

// ListRooms returns the lobby view, oldest room first.
func (r *Registry) ListRooms() []core.RoomSummary {
	rooms := r.sortedRooms()

	out := make([]core.RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Summary())
	}

	return out
}

// Close stops every simulation task.
func (r *Registry) Close() {
	for _, rm := range r.rooms {
		r.stopTask(rm)
	}
}

func (r *Registry) sortedRooms() []*Room {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].createdAt.Equal(rooms[j].createdAt) {
			return rooms[i].createdAt.Before(rooms[j].createdAt)
		}
		return rooms[i].id < rooms[j].id
	})

	return rooms
}

func (r *Registry) startGame(rm *Room) {
	r.stopTask(rm)

	rm.board.Reset()
	rm.phase = PhaseRunning
	rm.tick = 0
	rm.lastActive = r.now()

	for side, holder := range rm.slots {
		if s, ok := rm.members[holder]; ok {
			s.LastDirection = rm.board.Heading(side)
		}
	}

	rm.task = r.sched.Start(rm.id, r.settings.TickInterval)

	rm.log.Info().Dur("tick_interval", r.settings.TickInterval).Msg("Game started")

	r.broadcast(rm, core.EventGameState, rm.State())
	r.broadcast(rm, core.EventLeaderboard, rm.Leaderboard())
}

func (r *Registry) stopGame(rm *Room, phase Phase) {
	r.stopTask(rm)
	rm.phase = phase
	rm.lastActive = r.now()
}

func (r *Registry) stopTask(rm *Room) {
	if rm.task == nil {
		return
	}

	rm.task.Stop()
	rm.task = nil
}

func (r *Registry) destroy(rm *Room, reason string) {
	r.stopTask(rm)

	for _, id := range rm.joined {
		delete(r.where, id)
	}
	delete(r.rooms, rm.id)

	rm.log.Info().Str("reason", reason).Msg("Room destroyed")
}

func (r *Registry) membershipChanged(rm *Room) {
	rm.lastActive = r.now()

	r.broadcast(rm, core.EventPopulation, rm.Population())
	r.broadcast(rm, core.EventLeaderboard, rm.Leaderboard())
	r.notify.NotifyAll(core.EventUpdateRoomList, r.ListRooms())
}

func (r *Registry) broadcast(rm *Room, event string, payload interface{}) {
	for _, id := range rm.joined {
		r.notify.Notify(id, event, payload)
	}
}

func (r *Registry) displayName(id Identity, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = string(id)
	}

	if limit := r.settings.MaxNameLength; limit > 0 {
		if runes := []rune(name); len(runes) > limit {
			name = string(runes[:limit])
		}
	}

	return name
}
