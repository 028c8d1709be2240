package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	hub      Hub
	settings Settings
	upgrader websocket.Upgrader

	// ctx outlives single requests; cancelling it stops delivery from every
	// connection.
	ctx context.Context
	log zerolog.Logger
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func WithContext(ctx context.Context) Option {
	return func(s *Server) {
		s.ctx = ctx
	}
}

func NewServer(hub Hub, settings Settings, opts ...Option) *Server {
	s := &Server{
		hub:      hub,
		settings: settings,
		ctx:      context.Background(),
		log:      log.Logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.settings.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(s.settings.AllowedOrigins, r.Header.Get("Origin"))
}

// Router serves /health, the /rooms snapshot and the /ws endpoint.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	if len(s.settings.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.settings.AllowedOrigins,
			AllowMethods: []string{"GET", "OPTIONS"},
			AllowHeaders: []string{
				"Content-Type",
				"Upgrade",
				"Connection",
				"Sec-WebSocket-Key",
				"Sec-WebSocket-Version",
				"Sec-WebSocket-Extensions",
				"Sec-WebSocket-Protocol",
			},
		}))
	}

	r.GET("/rooms", s.roomsHandler)
	r.GET("/ws", s.wsHandler)

	return r
}

func (s *Server) accessLog(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()

	s.log.Debug().
		Str("method", ctx.Request.Method).
		Str("path", ctx.Request.URL.Path).
		Int("status", ctx.Writer.Status()).
		Str("ip", ctx.ClientIP()).
		Dur("took", time.Since(start)).
		Msg("HTTP request")
}

func (s *Server) roomsHandler(ctx *gin.Context) {
	rooms, err := s.hub.Rooms(ctx.Request.Context())
	if err != nil {
		s.log.Err(err).Msg("List rooms")
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}

	ctx.JSON(http.StatusOK, rooms)
}

func (s *Server) wsHandler(ctx *gin.Context) {
	codec, err := CodecByName(ctx.Query("codec"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	socket, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug().Err(err).Str("ip", ctx.ClientIP()).Msg("WS upgrade failed")
		return
	}

	c := newConn(socket, ctx.ClientIP(), codec, s.settings, s.log)
	c.log.Info().Str("ip", c.ip).Msg("WS connected")

	c.serve(s.ctx, s.hub)

	c.log.Info().Str("reason", c.reason).Msg("WS disconnected")
}
