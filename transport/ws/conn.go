package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/protocol/gateway"
	"github.com/kuredoro/snake_duel/protocol/heartbeat"
)

var ErrClosed = errors.New("connection closed")

// Hub receives everything a connection reads. *gateway.Gateway is one.
type Hub interface {
	Attach(ctx context.Context, c gateway.Conn) error
	Deliver(ctx context.Context, id string, msg core.ClientMessage) error
	Detach(ctx context.Context, id string) error
	Rooms(ctx context.Context) ([]core.RoomSummary, error)
}

type Settings struct {
	OutboxSize    int
	RateLimit     float64
	RateBurst     int
	MaxMessageLen int64
	WriteWait     time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// AllowedOrigins restricts browser origins. Empty allows any.
	AllowedOrigins []string
}

func DefaultSettings() Settings {
	return Settings{
		OutboxSize:        64,
		RateLimit:         30,
		RateBurst:         60,
		MaxMessageLen:     4096,
		WriteWait:         10 * time.Second,
		HeartbeatInterval: heartbeat.HeartbeatEvery,
		HeartbeatTimeout:  heartbeat.HeartbeatTimeout,
	}
}

// Conn is a gateway.Conn over a websocket. Writes are done by a single
// write pump draining a bounded outbox; a client that falls behind is
// disconnected instead of stalling the gateway.
type Conn struct {
	id     string
	ip     string
	socket *websocket.Conn
	codec  Codec

	settings Settings
	limiter  *rate.Limiter
	outbox   chan []byte

	stopOnce sync.Once
	reason   string
	done     chan struct{}
	written  chan struct{}
	closeErr error

	log zerolog.Logger
}

func newConn(socket *websocket.Conn, ip string, codec Codec, settings Settings, log zerolog.Logger) *Conn {
	id := uuid.NewString()

	return &Conn{
		id:       id,
		ip:       ip,
		socket:   socket,
		codec:    codec,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Limit(settings.RateLimit), settings.RateBurst),
		outbox:   make(chan []byte, settings.OutboxSize),
		done:     make(chan struct{}),
		written:  make(chan struct{}),
		log:      log.With().Str("conn", id).Str("codec", codec.Name()).Logger(),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteIP() string {
	return c.ip
}

func (c *Conn) Send(event string, payload interface{}) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := c.codec.Encode(core.ServerMessage{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	select {
	case c.outbox <- data:
		return nil
	default:
		c.stop("outbox full")
		return fmt.Errorf("send %s: outbox of %d messages is full", event, cap(c.outbox))
	}
}

// Ping writes a websocket ping frame. It is safe to call next to the write
// pump.
func (c *Conn) Ping() error {
	return c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.settings.WriteWait))
}

// Close stops the connection and waits for the close frame to be written.
func (c *Conn) Close(reason string) error {
	c.stop(reason)
	<-c.written
	return c.closeErr
}

func (c *Conn) stop(reason string) {
	c.stopOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *Conn) writePump() {
	defer close(c.written)

	for {
		select {
		case data := <-c.outbox:
			c.socket.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.socket.WriteMessage(c.codec.MessageType(), data); err != nil {
				c.log.Debug().Err(err).Msg("Write message")
				c.stop("write failed")
			}
		case <-c.done:
			c.socket.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason)
			if err := c.socket.WriteMessage(websocket.CloseMessage, msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug().Err(err).Msg("Write close frame")
			}

			c.closeErr = c.socket.Close()
			return
		}
	}
}

// readPump feeds the hub until the socket fails. Messages over the rate
// limit or that do not decode are dropped.
func (c *Conn) readPump(ctx context.Context, hub Hub) {
	c.socket.SetReadLimit(c.settings.MaxMessageLen)

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("Read message")
			}
			return
		}

		if !c.limiter.Allow() {
			c.log.Debug().Msg("Message dropped: rate limit")
			continue
		}

		var msg core.ClientMessage
		if err := c.codec.Decode(data, &msg); err != nil {
			c.log.Debug().Err(err).Msg("Message dropped: malformed")
			continue
		}

		if err := hub.Deliver(ctx, c.id, msg); err != nil {
			c.log.Debug().Err(err).Msg("Deliver")
			return
		}
	}
}

// watch closes the connection when the heartbeat reports the peer dead.
func (c *Conn) watch(statuses <-chan heartbeat.PeerStatus) {
	for {
		select {
		case <-c.done:
			return
		case st := <-statuses:
			if !st.Alive {
				c.log.Info().Msg("Heartbeat lost")
				c.stop("heartbeat timeout")
				return
			}
		}
	}
}

// serve runs the connection until either side gives up.
func (c *Conn) serve(ctx context.Context, hub Hub) {
	go c.writePump()

	statuses := make(chan heartbeat.PeerStatus, 1)
	hb, err := heartbeat.NewHeartbeat(c, c.id, c.settings.HeartbeatInterval, c.settings.HeartbeatTimeout, statuses)
	if err != nil {
		c.log.Err(err).Msg("Start heartbeat")
		c.Close("internal error")
		return
	}
	defer hb.Close()

	c.socket.SetPongHandler(func(string) error {
		hb.Pong()
		return nil
	})

	go c.watch(statuses)

	if err := hub.Attach(ctx, c); err != nil {
		c.log.Err(err).Msg("Attach connection")
		c.Close("server unavailable")
		return
	}

	c.readPump(ctx, hub)

	if err := hub.Detach(context.Background(), c.id); err != nil {
		c.log.Debug().Err(err).Msg("Detach connection")
	}

	c.Close("bye")
}
