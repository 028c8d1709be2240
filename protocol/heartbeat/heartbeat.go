package heartbeat

import (
	"errors"
	"time"
)

var (
	HeartbeatEvery   = 20 * time.Second
	HeartbeatTimeout = 60 * time.Second
)

type status int

const (
	unknown status = iota
	alive
	dead
)

// Pinger sends one liveness probe to the peer. The answer arrives later
// through HeartbeatService.Pong.
type Pinger interface {
	Ping() error
}

type PeerStatus struct {
	Peer  string
	Alive bool
}

type HeartbeatService struct {
	done chan struct{}
	exit chan struct{}

	pinger  Pinger
	peer    string
	every   time.Duration
	timeout time.Duration

	pongs      chan struct{}
	lastPong   time.Time
	peerStatus status

	reportCh chan<- PeerStatus
}

// NewHeartbeat pings p every interval and reports on outCh whenever the peer
// changes from alive to dead or back. The peer is dead when a ping fails or
// no pong arrived within timeout.
func NewHeartbeat(p Pinger, peer string, every, timeout time.Duration, outCh chan<- PeerStatus) (*HeartbeatService, error) {
	if p == nil {
		return nil, errors.New("pinger is nil")
	}

	if every <= 0 {
		every = HeartbeatEvery
	}

	if timeout <= 0 {
		timeout = HeartbeatTimeout
	}

	hb := &HeartbeatService{
		done: make(chan struct{}),
		exit: make(chan struct{}),

		pinger:  p,
		peer:    peer,
		every:   every,
		timeout: timeout,

		pongs:      make(chan struct{}, 1),
		lastPong:   time.Now(),
		peerStatus: unknown,

		reportCh: outCh,
	}

	go hb.run()

	return hb, nil
}

// Pong records an answer from the peer. It never blocks.
func (h *HeartbeatService) Pong() {
	select {
	case h.pongs <- struct{}{}:
	default:
	}
}

func (h *HeartbeatService) run() {
	defer close(h.exit)

	ticker := time.NewTicker(h.every)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-h.pongs:
			h.lastPong = time.Now()
			h.report(alive)
		case now := <-ticker.C:
			if now.Sub(h.lastPong) > h.timeout {
				h.report(dead)
				continue
			}

			if err := h.pinger.Ping(); err != nil {
				h.report(dead)
			}
		}
	}
}

func (h *HeartbeatService) report(s status) {
	if h.peerStatus == s {
		return
	}
	h.peerStatus = s

	select {
	case h.reportCh <- PeerStatus{Peer: h.peer, Alive: s == alive}:
	case <-h.done:
	}
}

func (h *HeartbeatService) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}

	<-h.exit
}
