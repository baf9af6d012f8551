// Package notify maintains the merged notification feed: a one-time
// snapshot fetched over REST plus a live push subscription, deduplicated
// and ordered newest first.
package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
	"github.com/ballotwatch/ballotwatch/pkg/electionapi"
)

// Feed merges the notification snapshot with live pushes. Live events are
// prepended; the snapshot is ordered by creation time, newest first.
// Events are deduplicated by EventID across both sources.
type Feed struct {
	log  logger.Logger
	api  electionapi.Client
	live LiveSource

	mu     sync.Mutex
	events []models.NotificationEvent
	seen   map[string]bool

	updates chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFeed creates a feed over the given API client and live source
func NewFeed(log logger.Logger, api electionapi.Client, live LiveSource) *Feed {
	return &Feed{
		log:     log,
		api:     api,
		live:    live,
		seen:    make(map[string]bool),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start fetches the snapshot and opens the live subscription. The two
// paths fail independently: a snapshot error leaves the feed empty but
// live events still arrive, and vice versa.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		events, err := f.api.Notifications(ctx)
		if err != nil {
			f.log.Warn("notification snapshot failed, starting empty", "error", err)
			return
		}
		f.addSnapshot(events)
	}()

	var liveEvents <-chan models.NotificationEvent
	go func() {
		defer wg.Done()
		events, err := f.live.Connect(ctx)
		if err != nil {
			f.log.Warn("live channel unavailable", "error", err)
			return
		}
		liveEvents = events
	}()

	go func() {
		defer close(f.done)
		wg.Wait()
		if liveEvents == nil {
			return
		}
		for {
			select {
			case event, ok := <-liveEvents:
				if !ok {
					return
				}
				f.addLive(event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop tears the feed down, closing the live connection. Called on
// unmount and on forced logout; safe to call more than once.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if err := f.live.Close(); err != nil {
		f.log.Debug("error closing live channel", "error", err)
	}
}

// Done is closed once the live pump has exited
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Updates signals that the feed content changed. Signals are coalesced;
// consumers re-read Events on each receive.
func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

// Events returns the current feed, newest first
func (f *Feed) Events() []models.NotificationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NotificationEvent, len(f.events))
	copy(out, f.events)
	return out
}

// Badge returns the number of events in the feed
func (f *Feed) Badge() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// addSnapshot appends the snapshot behind any live events that arrived
// first. The snapshot itself is ordered newest first.
func (f *Feed) addSnapshot(events []models.NotificationEvent) {
	sorted := make([]models.NotificationEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	f.mu.Lock()
	added := 0
	for _, event := range sorted {
		if event.EventID == "" || f.seen[event.EventID] {
			continue
		}
		f.seen[event.EventID] = true
		f.events = append(f.events, event)
		added++
	}
	f.mu.Unlock()

	if added > 0 {
		f.signal()
	}
	f.log.Debug("notification snapshot loaded", "count", added)
}

// addLive prepends a pushed event unless its id was already delivered
func (f *Feed) addLive(event models.NotificationEvent) {
	f.mu.Lock()
	if event.EventID != "" && f.seen[event.EventID] {
		f.mu.Unlock()
		f.log.Debug("dropping duplicate live event", "eventId", event.EventID)
		return
	}
	if event.EventID != "" {
		f.seen[event.EventID] = true
	}
	f.events = append([]models.NotificationEvent{event}, f.events...)
	f.mu.Unlock()

	f.signal()
}

func (f *Feed) signal() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}
