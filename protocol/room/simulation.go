package room

import (
	"time"
)

// Tick asks the owner of the registry to advance one room by one step.
type Tick struct {
	Room string
	Task Task
}

// Task is a running periodic simulation of one room.
type Task interface {
	Stop()
}

// Scheduler starts simulation tasks. Tasks only emit ticks; the ticks are
// applied by whoever owns the registry, one at a time.
type Scheduler interface {
	Start(roomID string, every time.Duration) Task
}

// TickerScheduler runs every task on its own goroutine and time.Ticker and
// funnels all ticks into one channel.
type TickerScheduler struct {
	out chan<- Tick
}

func NewTickerScheduler(out chan<- Tick) *TickerScheduler {
	return &TickerScheduler{out: out}
}

func (s *TickerScheduler) Start(roomID string, every time.Duration) Task {
	t := &tickerTask{
		room:  roomID,
		every: every,
		out:   s.out,
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}

	go t.run()

	return t
}

type tickerTask struct {
	room  string
	every time.Duration
	out   chan<- Tick

	done chan struct{}
	exit chan struct{}
}

func (t *tickerTask) run() {
	defer close(t.exit)

	ticker := time.NewTicker(t.every)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			select {
			case t.out <- Tick{Room: t.room, Task: t}:
			case <-t.done:
				return
			}
		}
	}
}

// Stop cancels the task and waits for its goroutine to exit. Ticks already
// delivered may still be received and must be discarded by the receiver.
func (t *tickerTask) Stop() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}

	<-t.exit
}
