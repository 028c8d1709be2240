package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/i582/cfmt/cmd/cfmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kuredoro/snake_duel/config"
	"github.com/kuredoro/snake_duel/core"
	"github.com/kuredoro/snake_duel/protocol/beacon"
	"github.com/kuredoro/snake_duel/protocol/gateway"
	"github.com/kuredoro/snake_duel/transport/ws"
)

const (
	shutdownWait = 5 * time.Second
	envFile      = ".env"
)

func main() {
	lookup := os.LookupEnv
	if _, err := os.Stat(envFile); err == nil {
		withFile, err := config.WithEnvFile(envFile, lookup)
		if err != nil {
			printErr("load %s:", envFile, err)
			os.Exit(1)
		}
		lookup = withFile
	}

	cfg, err := config.Load(lookup)
	if err != nil {
		printErr("load config:", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "address to serve http and websockets on")
	flag.BoolVar(&cfg.Wrap, "wrap", cfg.Wrap, "snakes leaving the grid reappear on the other side")
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "simulation tick interval")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	flag.BoolVar(&cfg.Announce, "announce", cfg.Announce, "announce this server on the local network")
	flag.StringVar(&cfg.AnnounceName, "name", cfg.AnnounceName, "server name shown to viewers")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		printErr("validate flags:", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg); err != nil {
		printErr("setup logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		printErr("run server:", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	g := gateway.New(cfg.GatewaySettings(), cfg.RoomSettings(),
		gateway.WithLogger(log.Logger))

	gatewayCtx, stopGateway := context.WithCancel(context.Background())
	defer stopGateway()

	gatewayErr := make(chan error, 1)
	go func() {
		gatewayErr <- g.Run(gatewayCtx)
	}()

	srv := ws.NewServer(g, cfg.TransportSettings(),
		ws.WithLogger(log.Logger),
		ws.WithContext(gatewayCtx))

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("Serving")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()

	var b *beacon.Beacon
	var node *beacon.Node
	if cfg.Announce {
		var err error
		node, err = beacon.NewNode(ctx, "", log.Logger)
		if err != nil {
			log.Err(err).Msg("Start announcements")
		} else {
			b = beacon.NewBeacon(ctx, node, cfg.AnnounceInterval,
				describe(g, cfg), log.Logger)
		}
	}

	var result error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-httpErr:
		result = multierror.Append(result, fmt.Errorf("listen: %w", err))
	}

	if b != nil {
		b.Close()
	}
	if node != nil {
		if err := node.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close beacon node: %w", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	// Stopping the gateway first closes every websocket, so Shutdown does not
	// wait on hijacked connections.
	stopGateway()
	if err := <-gatewayErr; err != nil {
		result = multierror.Append(result, fmt.Errorf("stop gateway: %w", err))
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown http: %w", err))
	}

	return result
}

// describe reports the server for LAN announcements.
func describe(g *gateway.Gateway, cfg config.Config) beacon.Source {
	url := cfg.AnnounceURL
	if url == "" {
		url = wsURL(cfg.Listen)
	}

	return func(ctx context.Context) (beacon.Announcement, error) {
		rooms, err := g.Rooms(ctx)
		if err != nil {
			return beacon.Announcement{}, err
		}

		return beacon.Announcement{
			URL:   url,
			Name:  cfg.AnnounceName,
			Rooms: len(rooms),
			Open:  openRooms(rooms),
		}, nil
	}
}

func openRooms(rooms []core.RoomSummary) int {
	n := 0
	for _, rm := range rooms {
		if rm.PlayerCount < 2 {
			n++
		}
	}

	return n
}

// wsURL guesses the websocket URL of a listen address. Unspecified hosts are
// replaced by the machine's hostname.
func wsURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "ws://" + listen + "/ws"
	}

	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		if name, err := os.Hostname(); err == nil {
			host = name
		} else {
			host = "localhost"
		}
	}

	return "ws://" + net.JoinHostPort(host, port) + "/ws"
}

func printErr(m string, args ...interface{}) {
	if len(args) == 0 {
		panic("printErr: no arguments passed")
	}

	err := args[len(args)-1]

	header := m
	if len(args) > 1 {
		header = fmt.Sprintf(m, args[:len(args)-1]...)
	}

	cfmt.Printf("{{error:}}::lightRed|bold %s %v\n", header, err)
}
