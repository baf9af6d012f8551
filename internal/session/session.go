// Package session manages the persisted auth token and forces a logout
// the moment the backend stops accepting it.
package session

import (
	"context"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ballotwatch/ballotwatch/internal/clock"
	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/store"
)

// Guard owns the session token. All token writes go through it so that a
// forced logout can never race a half-updated session.
type Guard struct {
	log   logger.Logger
	store *store.Store
	clock clock.Clock

	mu        sync.Mutex
	token     string
	isAdmin   bool
	loggedIn  bool
	loggedOut bool

	subscribers []func()
}

// NewGuard creates a session guard backed by the given store
func NewGuard(log logger.Logger, st *store.Store, clk clock.Clock) *Guard {
	return &Guard{
		log:   log,
		store: st,
		clock: clk,
	}
}

// Init loads any persisted session and discards it if the token has
// already expired.
func (g *Guard) Init(ctx context.Context) error {
	token, err := g.store.Get(ctx, store.KeyAuthToken)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to load session")
	}

	isAdmin, err := g.store.GetBool(ctx, store.KeyIsAdmin)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to load admin flag")
	}

	if tokenExpired(token, g.clock) {
		g.log.Info("persisted token expired, clearing session")
		return g.clearStore(ctx)
	}

	g.mu.Lock()
	g.token = token
	g.isAdmin = isAdmin
	g.loggedIn = true
	g.loggedOut = false
	g.mu.Unlock()

	g.log.Debug("session restored", "isAdmin", isAdmin)
	return nil
}

// SetToken installs a new session token, beginning a fresh session
func (g *Guard) SetToken(ctx context.Context, token string, isAdmin bool) error {
	if tokenExpired(token, g.clock) {
		return apperrors.Auth("token is expired or malformed")
	}

	if err := g.store.Set(ctx, store.KeyAuthToken, token); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to persist token")
	}
	if err := g.store.SetBool(ctx, store.KeyIsAdmin, isAdmin); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to persist admin flag")
	}

	g.mu.Lock()
	g.token = token
	g.isAdmin = isAdmin
	g.loggedIn = true
	g.loggedOut = false
	g.mu.Unlock()

	g.log.Info("session started", "isAdmin", isAdmin)
	return nil
}

// Token returns the current token, or empty when logged out
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// IsAdmin reports whether the current session has admin rights
func (g *Guard) IsAdmin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isAdmin
}

// IsLoggedIn reports whether a live session exists
func (g *Guard) IsLoggedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loggedIn
}

// Valid reports whether the current token exists and has not expired.
// A malformed token counts as expired.
func (g *Guard) Valid() bool {
	g.mu.Lock()
	token := g.token
	loggedIn := g.loggedIn
	g.mu.Unlock()

	if !loggedIn || token == "" {
		return false
	}
	return !tokenExpired(token, g.clock)
}

// Subscribe registers a callback invoked once when the session is force
// terminated. Subscribers must not block.
func (g *Guard) Subscribe(fn func()) {
	g.mu.Lock()
	g.subscribers = append(g.subscribers, fn)
	g.mu.Unlock()
}

// ForceLogout terminates the session. Calling it again for the same
// session is a no-op, so concurrent triggers (an expiry check and a 401
// arriving together) produce a single logout.
func (g *Guard) ForceLogout(ctx context.Context) {
	g.mu.Lock()
	if g.loggedOut || !g.loggedIn {
		g.mu.Unlock()
		return
	}
	g.loggedOut = true
	g.loggedIn = false
	g.token = ""
	g.isAdmin = false
	subs := make([]func(), len(g.subscribers))
	copy(subs, g.subscribers)
	g.mu.Unlock()

	g.log.Warn("session terminated")

	if err := g.clearStore(ctx); err != nil {
		g.log.Error("failed to clear persisted session", "error", err)
	}

	for _, fn := range subs {
		fn()
	}
}

func (g *Guard) clearStore(ctx context.Context) error {
	if err := g.store.Delete(ctx, store.KeyAuthToken); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to clear token")
	}
	if err := g.store.Delete(ctx, store.KeyIsAdmin); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal, "failed to clear admin flag")
	}
	return nil
}

// tokenExpired decodes the token without verifying its signature. The
// client only needs the exp claim; the backend is the authority on
// signatures. Malformed tokens and tokens without exp are treated as
// expired.
func tokenExpired(token string, clk clock.Clock) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !clk.Now().Before(exp.Time)
}
