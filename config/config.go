// Package config holds the server configuration. Values come from defaults,
// then SNAKE_* environment variables, then command line flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/kuredoro/snake_duel/engine"
	"github.com/kuredoro/snake_duel/protocol/gateway"
	"github.com/kuredoro/snake_duel/protocol/room"
	"github.com/kuredoro/snake_duel/transport/ws"
)

const EnvPrefix = "SNAKE_"

type Config struct {
	Listen         string
	AllowedOrigins []string

	LogFormat string // console or json
	LogLevel  string

	GridWidth     int
	GridHeight    int
	Wrap          bool
	InitialLength int
	FoodCount     int
	TickInterval  time.Duration

	UsernameMin       int
	UsernameMax       int
	OneUserPerAddress bool
	MaxNameLength     int

	IdleRoomTimeout time.Duration
	SweepInterval   time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	RateLimit     float64
	RateBurst     int
	OutboxSize    int
	MaxMessageLen int64

	Announce         bool
	AnnounceName     string
	AnnounceInterval time.Duration
	AnnounceURL      string
}

func Default() Config {
	return Config{
		Listen: ":8080",

		LogFormat: "console",
		LogLevel:  "info",

		GridWidth:     56,
		GridHeight:    48,
		InitialLength: 2,
		FoodCount:     1,
		TickInterval:  100 * time.Millisecond,

		UsernameMin:       3,
		UsernameMax:       20,
		OneUserPerAddress: true,
		MaxNameLength:     20,

		IdleRoomTimeout: 10 * time.Minute,
		SweepInterval:   30 * time.Second,

		HeartbeatInterval: 20 * time.Second,
		HeartbeatTimeout:  60 * time.Second,

		RateLimit:     30,
		RateBurst:     60,
		OutboxSize:    64,
		MaxMessageLen: 4096,

		AnnounceName:     "snake_duel",
		AnnounceInterval: 5 * time.Second,
	}
}

// FromEnv overrides fields of c with SNAKE_* variables found by lookup,
// usually os.LookupEnv. Every malformed value is reported.
func (c Config) FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var result error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}

	num64 := func(name string, dst *int64) {
		n := int(*dst)
		num(name, &n)
		*dst = int64(n)
	}

	float := func(name string, dst *float64) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = f
	}

	boolean := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}

		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	str("LISTEN", &c.Listen)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = SplitList(v)
	}

	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_LEVEL", &c.LogLevel)

	num("GRID_WIDTH", &c.GridWidth)
	num("GRID_HEIGHT", &c.GridHeight)
	boolean("WRAP", &c.Wrap)
	num("INITIAL_LENGTH", &c.InitialLength)
	num("FOOD_COUNT", &c.FoodCount)
	dur("TICK_INTERVAL", &c.TickInterval)

	num("USERNAME_MIN", &c.UsernameMin)
	num("USERNAME_MAX", &c.UsernameMax)
	boolean("ONE_USER_PER_ADDRESS", &c.OneUserPerAddress)
	num("MAX_NAME_LENGTH", &c.MaxNameLength)

	dur("IDLE_ROOM_TIMEOUT", &c.IdleRoomTimeout)
	dur("SWEEP_INTERVAL", &c.SweepInterval)

	dur("HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	dur("HEARTBEAT_TIMEOUT", &c.HeartbeatTimeout)

	float("RATE_LIMIT", &c.RateLimit)
	num("RATE_BURST", &c.RateBurst)
	num("OUTBOX_SIZE", &c.OutboxSize)
	num64("MAX_MESSAGE_LEN", &c.MaxMessageLen)

	boolean("ANNOUNCE", &c.Announce)
	str("ANNOUNCE_NAME", &c.AnnounceName)
	dur("ANNOUNCE_INTERVAL", &c.AnnounceInterval)
	str("ANNOUNCE_URL", &c.AnnounceURL)

	return c, result
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var result error
	fail := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.Listen == "" {
		fail("listen address is empty")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		fail("log format %q is neither console nor json", c.LogFormat)
	}

	if err := c.Rules().Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.TickInterval <= 0 {
		fail("tick interval %v must be positive", c.TickInterval)
	}

	if c.UsernameMin < 1 {
		fail("minimum username length %d must be at least 1", c.UsernameMin)
	}
	if c.UsernameMax < c.UsernameMin {
		fail("maximum username length %d is below the minimum %d", c.UsernameMax, c.UsernameMin)
	}

	if c.IdleRoomTimeout < 0 || c.SweepInterval < 0 {
		fail("idle room timeout and sweep interval must not be negative")
	}

	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout < c.HeartbeatInterval {
		fail("heartbeat timeout %v must be at least the interval %v", c.HeartbeatTimeout, c.HeartbeatInterval)
	}

	if c.RateLimit <= 0 || c.RateBurst < 1 {
		fail("rate limit %v/s with burst %d is not usable", c.RateLimit, c.RateBurst)
	}

	if c.OutboxSize < 1 {
		fail("outbox size %d must be positive", c.OutboxSize)
	}

	if c.MaxMessageLen < 64 {
		fail("max message length %d is too small", c.MaxMessageLen)
	}

	if c.Announce && c.AnnounceInterval <= 0 {
		fail("announce interval %v must be positive", c.AnnounceInterval)
	}

	return result
}

func (c Config) Rules() engine.Rules {
	return engine.Rules{
		Grid: engine.Grid{
			Width:  c.GridWidth,
			Height: c.GridHeight,
			Wrap:   c.Wrap,
		},
		InitialLength: c.InitialLength,
		FoodCount:     c.FoodCount,
	}
}

func (c Config) RoomSettings() room.Settings {
	return room.Settings{
		Rules:         c.Rules(),
		TickInterval:  c.TickInterval,
		IdleTimeout:   c.IdleRoomTimeout,
		MaxNameLength: c.MaxNameLength,
	}
}

func (c Config) GatewaySettings() gateway.Settings {
	s := gateway.DefaultSettings()
	s.UsernameMin = c.UsernameMin
	s.UsernameMax = c.UsernameMax
	s.OneUserPerAddress = c.OneUserPerAddress
	s.SweepInterval = c.SweepInterval
	return s
}

func (c Config) TransportSettings() ws.Settings {
	s := ws.DefaultSettings()
	s.OutboxSize = c.OutboxSize
	s.RateLimit = c.RateLimit
	s.RateBurst = c.RateBurst
	s.MaxMessageLen = c.MaxMessageLen
	s.HeartbeatInterval = c.HeartbeatInterval
	s.HeartbeatTimeout = c.HeartbeatTimeout
	s.AllowedOrigins = c.AllowedOrigins
	return s
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// WithEnvFile layers the KEY=value pairs of a dotenv file under lookup.
// Variables that lookup knows win over the file.
func WithEnvFile(path string, lookup func(string) (string, bool)) (func(string) (string, bool), error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}

		v, ok := vars[key]
		return v, ok
	}, nil
}

// ErrInvalid is wrapped by Load when validation fails.
var ErrInvalid = errors.New("invalid configuration")

// Load applies the environment on top of the defaults and validates the
// result.
func Load(lookup func(string) (string, bool)) (Config, error) {
	c, err := Default().FromEnv(lookup)
	if err != nil {
		return c, fmt.Errorf("read environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return c, nil
}
