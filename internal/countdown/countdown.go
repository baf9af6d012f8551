package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/ballotwatch/ballotwatch/internal/clock"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
)

// Snapshot is the human-presentable remainder of an election window.
// When Ended is true all fields are zero; a negative countdown is never
// reported.
type Snapshot struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Ended   bool `json:"ended"`
}

// Millisecond divisors for decomposing a remaining duration.
const (
	msPerDay    = 86400000
	msPerHour   = 3600000
	msPerMinute = 60000
	msPerSecond = 1000
)

// Compute derives a Snapshot from a window at the given instant. A server
// override (status ended/completed) wins over the local clock; otherwise
// the remainder is floor-decomposed so unit boundaries carry exactly
// (3,600,000 ms is 01:00:00, never 00:60:00). Only remaining <= 0 counts
// as ended: a single leftover millisecond is still a running election.
func Compute(window models.ElectionWindow, now time.Time) Snapshot {
	if window.OverrideEnded() {
		return Snapshot{Ended: true}
	}

	ms := window.EndTime.Sub(now).Milliseconds()
	if ms <= 0 {
		return Snapshot{Ended: true}
	}

	snap := Snapshot{}
	snap.Days = int(ms / msPerDay)
	ms %= msPerDay
	snap.Hours = int(ms / msPerHour)
	ms %= msPerHour
	snap.Minutes = int(ms / msPerMinute)
	ms %= msPerMinute
	snap.Seconds = int(ms / msPerSecond)
	return snap
}

// Timer drives a 1 Hz countdown for one election window. It owns its
// ticker outright: started on activation, cancelled on teardown, never
// tied to anything else's schedule.
type Timer struct {
	log    logger.Logger
	clock  clock.Clock
	window models.ElectionWindow

	ticks   chan Snapshot
	ended   chan struct{}
	endOnce sync.Once

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Timer for the given window. Call Start to begin ticking.
func New(log logger.Logger, clk clock.Clock, window models.ElectionWindow) *Timer {
	return &Timer{
		log:    log,
		clock:  clk,
		window: window,
		ticks:  make(chan Snapshot, 1),
		ended:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Ticks delivers one Snapshot per tick. The buffer holds the latest
// snapshot; a slow consumer sees the freshest value, not a backlog.
func (t *Timer) Ticks() <-chan Snapshot {
	return t.ticks
}

// Ended is closed exactly once, when the countdown first observes the
// window as over. It never "reopens".
func (t *Timer) Ended() <-chan struct{} {
	return t.ended
}

// Done is closed when the tick goroutine has fully exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Start begins ticking at 1 Hz in a goroutine. An immediate snapshot is
// emitted before the first tick so the display never waits a full second.
func (t *Timer) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
}

// Stop cancels the ticker. Safe to call after the timer ended on its own.
func (t *Timer) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Timer) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	if t.emit() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			t.log.Debug("Countdown stopped", "election_id", t.window.ID)
			return
		case <-ticker.C:
			if t.emit() {
				// Once ended the ticker stops for good.
				t.log.Info("Election ended", "election_id", t.window.ID)
				return
			}
		}
	}
}

// emit publishes the current snapshot and reports whether the window is over.
func (t *Timer) emit() bool {
	snap := Compute(t.window, t.clock.Now())

	// Replace a stale unconsumed snapshot rather than block the ticker.
	select {
	case t.ticks <- snap:
	default:
		select {
		case <-t.ticks:
		default:
		}
		t.ticks <- snap
	}

	if snap.Ended {
		t.endOnce.Do(func() { close(t.ended) })
		return true
	}
	return false
}
