// Package beacon announces running servers on the local network and
// collects the announcements of others.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type Announcement struct {
	URL   string        `json:"url"`
	Name  string        `json:"name"`
	Rooms int           `json:"rooms"`
	Open  int           `json:"open"` // rooms with a free slot
	TTL   time.Duration `json:"ttl"`

	// Peer is filled in by the receiver.
	Peer string `json:"-"`
}

type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

type Subscriber interface {
	Next(ctx context.Context) (from string, data []byte, err error)
}

// Source describes the local server at the moment of an announcement.
type Source func(ctx context.Context) (Announcement, error)

type Beacon struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	every  time.Duration
	pub    Publisher
	source Source

	log zerolog.Logger
}

// NewBeacon publishes what source reports every interval until closed.
func NewBeacon(ctx context.Context, pub Publisher, every time.Duration, source Source, log zerolog.Logger) *Beacon {
	localCtx, cancel := context.WithCancel(ctx)

	b := &Beacon{
		ctx:    localCtx,
		cancel: cancel,
		done:   make(chan struct{}),

		every:  every,
		pub:    pub,
		source: source,

		log: log,
	}

	go b.publishLoop()

	return b
}

func (b *Beacon) Done() <-chan struct{} {
	return b.done
}

func (b *Beacon) Close() {
	b.cancel()
	<-b.done
}

func (b *Beacon) publishLoop() {
	defer close(b.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if err := b.publish(); err != nil {
				b.log.Warn().Err(err).Msg("Announce server")
			}
			timer.Reset(b.every)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Beacon) publish() error {
	msg, err := b.source(b.ctx)
	if err != nil {
		return fmt.Errorf("describe server: %w", err)
	}

	msg.TTL = 3 * b.every

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}

	if err := b.pub.Publish(b.ctx, data); err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}

	return nil
}

// Listen forwards announcements from sub to out until ctx ends or sub
// fails. Malformed messages are skipped. out is closed on return.
func Listen(ctx context.Context, sub Subscriber, out chan<- Announcement, log zerolog.Logger) error {
	defer close(out)

	for {
		from, data, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg Announcement
		if err := json.Unmarshal(data, &msg); err != nil || msg.URL == "" {
			log.Debug().Str("peer", from).Msg("Skip malformed announcement")
			continue
		}
		msg.Peer = from

		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}
