package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/protocol/room"
)

// Conn is one client connection as seen by the gateway. Send must not block;
// a connection that cannot keep up is expected to drop itself.
type Conn interface {
	ID() string
	RemoteIP() string
	Send(event string, payload interface{}) error
	Close(reason string) error
}

type Settings struct {
	UsernameMin int
	UsernameMax int

	// OneUserPerAddress rejects a registration from an IP that already has
	// a registered username.
	OneUserPerAddress bool

	// SweepInterval is how often idle rooms are reaped. Zero disables it.
	SweepInterval time.Duration

	InboxSize int
}

func DefaultSettings() Settings {
	return Settings{
		UsernameMin:       3,
		UsernameMax:       20,
		OneUserPerAddress: true,
		SweepInterval:     30 * time.Second,
		InboxSize:         256,
	}
}

type session struct {
	conn     Conn
	identity room.Identity
	log      zerolog.Logger
}

func (s *session) registered() bool {
	return s.identity != ""
}

type envelopeKind int

const (
	attach envelopeKind = iota
	deliver
	detach
)

type envelope struct {
	kind envelopeKind
	conn Conn
	id   string
	msg  core.ClientMessage
}

// Gateway binds connections to identities and feeds everything that happens
// to the room registry from a single goroutine, Run.
type Gateway struct {
	settings Settings

	registry *room.Registry

	sessions   map[string]*session
	identities map[room.Identity]*session
	addresses  map[string]room.Identity

	inbox     chan envelope
	ticks     chan room.Tick
	snapshots chan chan []core.RoomSummary
	done      chan struct{}

	log zerolog.Logger
}

type Option func(*options)

type options struct {
	sched    room.Scheduler
	roomOpts []room.Option
	log      zerolog.Logger
}

// WithScheduler replaces the ticker based simulation scheduler. Ticks of a
// custom scheduler are applied with Gateway.Tick.
func WithScheduler(s room.Scheduler) Option {
	return func(o *options) {
		o.sched = s
	}
}

func WithRoomOptions(opts ...room.Option) Option {
	return func(o *options) {
		o.roomOpts = append(o.roomOpts, opts...)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func New(settings Settings, rooms room.Settings, opts ...Option) *Gateway {
	o := options{log: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	if settings.InboxSize <= 0 {
		settings.InboxSize = DefaultSettings().InboxSize
	}

	g := &Gateway{
		settings:   settings,
		sessions:   make(map[string]*session),
		identities: make(map[room.Identity]*session),
		addresses:  make(map[string]room.Identity),
		inbox:      make(chan envelope, settings.InboxSize),
		ticks:      make(chan room.Tick, settings.InboxSize),
		snapshots:  make(chan chan []core.RoomSummary),
		done:       make(chan struct{}),
		log:        o.log,
	}

	sched := o.sched
	if sched == nil {
		sched = room.NewTickerScheduler(g.ticks)
	}

	roomOpts := append([]room.Option{room.WithLogger(o.log)}, o.roomOpts...)
	g.registry = room.NewRegistry(rooms, g, sched, roomOpts...)

	return g
}

// Attach announces a new connection.
func (g *Gateway) Attach(ctx context.Context, c Conn) error {
	return g.enqueue(ctx, envelope{kind: attach, conn: c, id: c.ID()})
}

// Deliver hands an inbound message of connection id to the gateway.
func (g *Gateway) Deliver(ctx context.Context, id string, msg core.ClientMessage) error {
	return g.enqueue(ctx, envelope{kind: deliver, id: id, msg: msg})
}

// Detach announces that connection id is gone.
func (g *Gateway) Detach(ctx context.Context, id string) error {
	return g.enqueue(ctx, envelope{kind: detach, id: id})
}

// Tick hands a tick of a custom scheduler to the gateway.
func (g *Gateway) Tick(ctx context.Context, t room.Tick) error {
	if g.stopped() {
		return errStopped
	}

	select {
	case g.ticks <- t:
		return nil
	case <-g.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) enqueue(ctx context.Context, e envelope) error {
	if g.stopped() {
		return errStopped
	}

	select {
	case g.inbox <- e:
		return nil
	case <-g.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errStopped = errors.New("gateway stopped")

func (g *Gateway) stopped() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Rooms returns the lobby view as seen by Run.
func (g *Gateway) Rooms(ctx context.Context) ([]core.RoomSummary, error) {
	resp := make(chan []core.RoomSummary, 1)

	select {
	case g.snapshots <- resp:
	case <-g.done:
		return nil, errStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rooms := <-resp:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run owns the registry until ctx is cancelled. Every inbound event, tick and
// sweep is applied here, one at a time. On return all simulation tasks are
// stopped and all connections are closed.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.done)

	var sweep <-chan time.Time
	if g.settings.SweepInterval > 0 {
		ticker := time.NewTicker(g.settings.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	g.log.Info().Msg("Gateway running")

	for {
		select {
		case <-ctx.Done():
			return g.shutdown()
		case e := <-g.inbox:
			g.handle(e)
		case t := <-g.ticks:
			g.registry.Tick(t)
		case now := <-sweep:
			if n := g.registry.Sweep(now); n > 0 {
				g.log.Info().Int("rooms", n).Msg("Closed idle rooms")
			}
		case resp := <-g.snapshots:
			resp <- g.registry.ListRooms()
		}
	}
}

func (g *Gateway) shutdown() error {
	g.registry.Close()

	var result error
	for id, s := range g.sessions {
		if err := s.conn.Close("server shutting down"); err != nil {
			result = multierror.Append(result, fmt.Errorf("close connection %s: %w", id, err))
		}
	}

	g.log.Info().Int("connections", len(g.sessions)).Msg("Gateway stopped")
	return result
}

func (g *Gateway) handle(e envelope) {
	switch e.kind {
	case attach:
		g.attach(e.conn)
	case deliver:
		g.deliver(e.id, e.msg)
	case detach:
		g.detach(e.id)
	}
}

func (g *Gateway) attach(c Conn) {
	s := &session{
		conn: c,
		log:  g.log.With().Str("conn", c.ID()).Str("ip", c.RemoteIP()).Logger(),
	}
	g.sessions[c.ID()] = s

	s.log.Info().Msg("Connection attached")

	g.send(s, core.EventUpdateRoomList, g.registry.ListRooms())
}

func (g *Gateway) detach(id string) {
	s, ok := g.sessions[id]
	if !ok {
		return
	}
	delete(g.sessions, id)

	if s.registered() {
		if err := g.registry.Leave(s.identity); err != nil && !errors.Is(err, core.ErrNotInRoom) {
			s.log.Warn().Err(err).Msg("Leave room on disconnect")
		}

		delete(g.identities, s.identity)
		if g.addresses[s.conn.RemoteIP()] == s.identity {
			delete(g.addresses, s.conn.RemoteIP())
		}
	}

	s.log.Info().Str("identity", string(s.identity)).Msg("Connection detached")
}

func (g *Gateway) deliver(id string, msg core.ClientMessage) {
	s, ok := g.sessions[id]
	if !ok {
		g.log.Debug().Str("conn", id).Str("event", msg.Event).Msg("Message from unknown connection")
		return
	}

	switch msg.Event {
	case core.EventRegisterUser:
		if err := g.register(s, msg.Data.Username); err != nil {
			s.log.Debug().Err(err).Msg("Registration rejected")
			g.send(s, core.EventRegisterError, errorMessage(err))
			return
		}
		g.send(s, core.EventRegistered, nil)

	case core.EventPing:
		g.send(s, core.EventPong, core.Pong{TS: msg.Data.TS})

	case core.EventListRooms:
		g.send(s, core.EventUpdateRoomList, g.registry.ListRooms())

	case core.EventCreateRoom, core.EventJoinRoom, core.EventSpectateRoom:
		if err := g.enterRoom(s, msg); err != nil {
			s.log.Debug().Err(err).Str("event", msg.Event).Msg("Room entry rejected")
			g.send(s, core.EventJoinError, errorMessage(err))
		}

	case core.EventLeaveRoom:
		if !s.registered() {
			return
		}
		if err := g.registry.Leave(s.identity); err != nil {
			s.log.Debug().Err(err).Msg("Leave room")
		}

	case core.EventPlayerMove:
		if !s.registered() {
			return
		}

		d, ok := core.DirectionFromVector(msg.Data.X, msg.Data.Y)
		if !ok {
			s.log.Debug().Int("x", msg.Data.X).Int("y", msg.Data.Y).Msg("Move dropped: not a unit vector")
			return
		}

		if err := g.registry.Move(s.identity, d); err != nil {
			s.log.Debug().Err(err).Str("direction", d.String()).Msg("Move dropped")
		}

	case core.EventRestartGame:
		if !s.registered() {
			return
		}

		err := g.registry.Restart(s.identity)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrNotAuthorized):
			g.send(s, core.EventRestartError, errorMessage(err))
		default:
			s.log.Debug().Err(err).Msg("Restart ignored")
		}

	default:
		s.log.Debug().Str("event", msg.Event).Msg("Unknown event")
	}
}

func (g *Gateway) enterRoom(s *session, msg core.ClientMessage) error {
	if !s.registered() {
		return core.ErrNotRegistered
	}

	d := msg.Data
	switch msg.Event {
	case core.EventCreateRoom:
		_, err := g.registry.CreateRoom(s.identity, room.CreateOptions{
			Password:   d.Password,
			Name:       d.Name,
			VsComputer: d.VsComputer,
		})
		return err
	case core.EventJoinRoom:
		_, err := g.registry.JoinRoom(s.identity, d.RoomID, room.JoinOptions{
			Password: d.Password,
			Name:     d.Name,
			Queue:    d.Queue,
		})
		return err
	default:
		return g.registry.Spectate(s.identity, d.RoomID, room.JoinOptions{
			Password: d.Password,
			Name:     d.Name,
		})
	}
}

// register binds a username to s. Usernames are unique among live
// connections and, with OneUserPerAddress, one per remote address.
func (g *Gateway) register(s *session, username string) error {
	if s.registered() {
		return core.ErrAlreadyRegistered
	}

	username = strings.TrimSpace(username)
	switch n := utf8.RuneCountInString(username); {
	case n < g.settings.UsernameMin:
		return core.ErrUsernameTooShort
	case g.settings.UsernameMax > 0 && n > g.settings.UsernameMax:
		return core.ErrUsernameTooLong
	}

	id := room.Identity(username)
	if _, taken := g.identities[id]; taken || id == room.Computer {
		return &core.IdentityError{Identity: username, Err: core.ErrUsernameTaken}
	}

	ip := s.conn.RemoteIP()
	if g.settings.OneUserPerAddress {
		if holder, bound := g.addresses[ip]; bound {
			return &core.IdentityError{Identity: string(holder), Err: core.ErrAddressBound}
		}
		g.addresses[ip] = id
	}

	s.identity = id
	s.log = s.log.With().Str("identity", username).Logger()
	g.identities[id] = s

	s.log.Info().Msg("User registered")
	return nil
}

// Notify implements room.Notifier.
func (g *Gateway) Notify(to room.Identity, event string, payload interface{}) {
	s, ok := g.identities[to]
	if !ok {
		return
	}

	g.send(s, event, payload)
}

// NotifyAll implements room.Notifier. Lobby events reach every connection,
// registered or not.
func (g *Gateway) NotifyAll(event string, payload interface{}) {
	for _, s := range g.sessions {
		g.send(s, event, payload)
	}
}

func (g *Gateway) send(s *session, event string, payload interface{}) {
	if err := s.conn.Send(event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("Send")
	}
}

// errorMessage keeps participant attribution out of client visible text.
func errorMessage(err error) core.ErrorMessage {
	var ie *core.IdentityError
	if errors.As(err, &ie) {
		err = ie.Err
	}

	return core.ErrorMessage{Message: err.Error()}
}
