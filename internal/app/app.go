// Package app wires the ballotwatch components together: session guard,
// backend client, election countdown, vote workflow, and the
// notification feed.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/ballotwatch/ballotwatch/internal/ballot"
	"github.com/ballotwatch/ballotwatch/internal/clock"
	"github.com/ballotwatch/ballotwatch/internal/countdown"
	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
	"github.com/ballotwatch/ballotwatch/internal/notify"
	"github.com/ballotwatch/ballotwatch/internal/session"
	"github.com/ballotwatch/ballotwatch/internal/store"
	"github.com/ballotwatch/ballotwatch/pkg/electionapi"
)

// App holds the assembled client components
type App struct {
	log   logger.Logger
	cfg   Config
	clock clock.Clock
	store *store.Store
	guard *session.Guard
	api   electionapi.Client
	http  *http.Client

	mu       sync.Mutex
	window   *models.ElectionWindow
	timer    *countdown.Timer
	workflow *ballot.Workflow
	feed     *notify.Feed
}

// New creates the production wiring: a persistent store, a session
// guard, and a backend client whose transport attaches the token and
// intercepts 401s.
func New(log logger.Logger, cfg Config) (*App, error) {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal, "failed to open state store")
	}

	clk := clock.System{}
	guard := session.NewGuard(log, st, clk)
	httpClient := &http.Client{Transport: session.NewTransport(guard, nil)}
	api := electionapi.NewHTTPClient(cfg.BackendURL, httpClient, log)

	return &App{
		log:   log,
		cfg:   cfg,
		clock: clk,
		store: st,
		guard: guard,
		api:   api,
		http:  httpClient,
	}, nil
}

// NewWithClient creates an app over injected collaborators (for tests)
func NewWithClient(log logger.Logger, cfg Config, api electionapi.Client, st *store.Store, clk clock.Clock) *App {
	guard := session.NewGuard(log, st, clk)
	return &App{
		log:   log,
		cfg:   cfg,
		clock: clk,
		store: st,
		guard: guard,
		api:   api,
		http:  &http.Client{Transport: session.NewTransport(guard, nil)},
	}
}

// Guard returns the session guard
func (a *App) Guard() *session.Guard {
	return a.guard
}

// API returns the backend client
func (a *App) API() electionapi.Client {
	return a.api
}

// Init restores any persisted session
func (a *App) Init(ctx context.Context) error {
	return a.guard.Init(ctx)
}

// Login exchanges credentials for a token and starts the session. The
// auth endpoint itself is the platform's; the client treats it as opaque.
func (a *App) Login(ctx context.Context, voterID string, admin bool) error {
	body, err := json.Marshal(map[string]interface{}{"voterId": voterID, "admin": admin})
	if err != nil {
		return apperrors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.api.BaseURL()+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransient, "login request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Authf("login rejected with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransient, "failed to decode login response")
	}

	return a.guard.SetToken(ctx, out.Token, admin)
}

// RefreshWindow fetches the election window. On a transient failure the
// previously fetched window is retained and returned alongside the error.
func (a *App) RefreshWindow(ctx context.Context) (*models.ElectionWindow, error) {
	window, err := a.api.GetElection(ctx, a.cfg.ElectionID)
	if err != nil {
		a.mu.Lock()
		previous := a.window
		a.mu.Unlock()
		if previous != nil {
			a.log.Warn("election fetch failed, keeping previous window", "error", err)
			return previous, apperrors.Wrap(err, apperrors.ErrTransient, "failed to refresh election")
		}
		return nil, err
	}

	a.mu.Lock()
	a.window = window
	a.mu.Unlock()
	return window, nil
}

// Window returns the last fetched election window, or nil
func (a *App) Window() *models.ElectionWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window
}

// StartCountdown begins ticking against the current window
func (a *App) StartCountdown(ctx context.Context) (*countdown.Timer, error) {
	a.mu.Lock()
	window := a.window
	a.mu.Unlock()

	if window == nil {
		return nil, apperrors.Validation("no election window loaded")
	}

	timer := countdown.New(a.log, a.clock, *window)
	timer.Start(ctx)

	a.mu.Lock()
	a.timer = timer
	a.mu.Unlock()
	return timer, nil
}

// ElectionEnded reports whether the countdown has fired or the server
// has overridden the election state
func (a *App) ElectionEnded() bool {
	a.mu.Lock()
	window := a.window
	timer := a.timer
	a.mu.Unlock()

	if window != nil && window.OverrideEnded() {
		return true
	}
	if timer != nil {
		select {
		case <-timer.Ended():
			return true
		default:
		}
	}
	return false
}

// StartBallot fetches the approved candidates and builds the vote
// workflow gated by the election state
func (a *App) StartBallot(ctx context.Context) (*ballot.Workflow, error) {
	candidates, err := a.api.ApprovedCandidates(ctx, a.cfg.ElectionID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.Business("no approved candidates for this election")
	}

	workflow := ballot.New(a.log, a.api, a.cfg.ElectionID, candidates, a.ElectionEnded)

	a.mu.Lock()
	a.workflow = workflow
	a.mu.Unlock()
	return workflow, nil
}

// StartFeed opens the notification feed and ties its teardown to the
// session: a forced logout closes the live connection.
func (a *App) StartFeed(ctx context.Context) *notify.Feed {
	live := notify.NewWSLive(a.log, a.api.LiveURL(), a.guard.Token)
	feed := notify.NewFeed(a.log, a.api, live)
	feed.Start(ctx)

	a.guard.Subscribe(feed.Stop)

	a.mu.Lock()
	a.feed = feed
	a.mu.Unlock()
	return feed
}

// Close shuts down all running components and the store
func (a *App) Close() error {
	a.mu.Lock()
	timer := a.timer
	feed := a.feed
	a.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if feed != nil {
		feed.Stop()
		<-feed.Done()
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close state store: %w", err)
	}
	return nil
}
