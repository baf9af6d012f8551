// Package sim is a self-contained election backend used for local
// development and end-to-end tests. It speaks the same REST and live
// notification protocol as the production platform.
package sim

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ballotwatch/ballotwatch/internal/clock"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
)

type contextKey string

const (
	voterKey contextKey = "voter"
	adminKey contextKey = "admin"
)

// voterFrom returns the authenticated voter id from the request context
func voterFrom(ctx context.Context) string {
	v, _ := ctx.Value(voterKey).(string)
	return v
}

// adminFrom reports whether the request was authenticated as an admin
func adminFrom(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey).(bool)
	return v
}

type electionState struct {
	window     models.ElectionWindow
	candidates []models.CandidateOption
}

// Server holds the simulated backend state
type Server struct {
	log        logger.Logger
	clock      clock.Clock
	hub        *Hub
	signingKey []byte
	tokenTTL   time.Duration

	mu            sync.Mutex
	elections     map[string]*electionState
	votes         map[string]map[string]string // electionID -> voterID -> candidateKey
	voteRequests  map[string]string            // requestID -> voterID, for replay detection
	notifications []models.NotificationEvent
	nextEventID   int
}

// NewServer creates a simulator from fixtures
func NewServer(log logger.Logger, clk clock.Clock, fixtures *Fixtures) *Server {
	ttl := fixtures.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	key := fixtures.SigningKey
	if key == "" {
		key = "ballotwatch-sim"
	}

	s := &Server{
		log:          log,
		clock:        clk,
		hub:          NewHub(log),
		signingKey:   []byte(key),
		tokenTTL:     ttl,
		elections:    make(map[string]*electionState),
		votes:        make(map[string]map[string]string),
		voteRequests: make(map[string]string),
	}
	for _, e := range fixtures.Elections {
		s.elections[e.ID] = &electionState{window: e.window(), candidates: e.candidates()}
		s.votes[e.ID] = make(map[string]string)
	}
	for _, n := range fixtures.Notifications {
		s.notifications = append(s.notifications, n.event())
	}
	s.hub.Start()
	return s
}

// Stop shuts down the live notification hub
func (s *Server) Stop() {
	s.hub.Stop()
}

// Router returns the simulator's HTTP routes
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/election/{id}", s.handleGetElection)
		r.Get("/api/election/{id}/candidates/approved", s.handleApprovedCandidates)
		r.Post("/api/voting/vote", s.handleCastVote)
		r.Get("/api/notification", s.handleNotifications)
		r.Get("/api/notification/live", s.hub.ServeWs)
		r.Post("/api/admin/election/{id}/end", s.handleForceEnd)
	})

	return r
}

// requireAuth validates the bearer token and stashes the voter id in the
// request context
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) < 8 || header[:7] != "Bearer " {
			respondError(w, unauthorized("Missing bearer token"))
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(header[7:], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.signingKey, nil
		}, jwt.WithTimeFunc(s.clock.Now))
		if err != nil || !token.Valid {
			respondError(w, unauthorized("Invalid or expired token"))
			return
		}

		voterID, _ := claims["sub"].(string)
		if voterID == "" {
			respondError(w, unauthorized("Token carries no subject"))
			return
		}

		isAdmin, _ := claims["admin"].(bool)
		ctx := context.WithValue(r.Context(), voterKey, voterID)
		ctx = context.WithValue(ctx, adminKey, isAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	VoterID string `json:"voterId"`
	Admin   bool   `json:"admin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin issues a signed token for the given voter. The simulator
// trusts anyone; real authentication is the platform's concern.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.VoterID == "" {
		respondError(w, validationError("voterId is required"))
		return
	}

	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   req.VoterID,
		"admin": req.Admin,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		respondError(w, err)
		return
	}

	s.log.Info("issued token", "voterId", req.VoterID, "admin", req.Admin)
	respondOK(w, loginResponse{Token: signed})
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	state, ok := s.elections[id]
	var window models.ElectionWindow
	if ok {
		window = state.window
	}
	s.mu.Unlock()

	if !ok {
		respondError(w, notFound("Election not found"))
		return
	}
	respondOK(w, window)
}

func (s *Server) handleApprovedCandidates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	state, ok := s.elections[id]
	var candidates []models.CandidateOption
	if ok {
		candidates = append(candidates, state.candidates...)
	}
	s.mu.Unlock()

	if !ok {
		respondError(w, notFound("Election not found"))
		return
	}
	respondOK(w, candidates)
}

type voteRequest struct {
	ElectionID   string `json:"electionId"`
	CandidateKey string `json:"candidateKey"`
	RequestID    string `json:"requestId"`
}

type voteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleCastVote enforces the at-most-once-per-voter rule. A replay of a
// request id the voter already submitted succeeds without a second vote.
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := voterFrom(r.Context())

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.ElectionID == "" || req.CandidateKey == "" {
		respondError(w, validationError("electionId and candidateKey are required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.elections[req.ElectionID]
	if !ok {
		respondError(w, notFound("Election not found"))
		return
	}

	if req.RequestID != "" {
		if owner, seen := s.voteRequests[req.RequestID]; seen && owner == voterID {
			respondOK(w, voteResponse{Status: "success", Message: "Vote already recorded"})
			return
		}
	}

	if state.window.OverrideEnded() || !s.clock.Now().Before(state.window.EndTime) {
		respondError(w, electionClosed("Voting for this election has closed"))
		return
	}
	if s.clock.Now().Before(state.window.StartTime) {
		respondError(w, electionClosed("Voting has not opened yet"))
		return
	}

	approved := false
	for _, c := range state.candidates {
		if c.CandidateKey == req.CandidateKey {
			approved = true
			break
		}
	}
	if !approved {
		respondError(w, validationError("Candidate is not on the approved list"))
		return
	}

	if _, voted := s.votes[req.ElectionID][voterID]; voted {
		respondError(w, alreadyVoted("You have already voted in this election"))
		return
	}

	s.votes[req.ElectionID][voterID] = req.CandidateKey
	if req.RequestID != "" {
		s.voteRequests[req.RequestID] = voterID
	}

	event := s.appendEventLocked(models.KindVoteConfirmation,
		fmt.Sprintf(`Your vote in "%s" was recorded`, req.ElectionID))
	go s.hub.SendTo(voterID, event)

	s.log.Info("vote recorded", "electionId", req.ElectionID, "voterId", voterID)
	respondOK(w, voteResponse{Status: "success", Message: "Vote recorded"})
}

// handleNotifications returns the snapshot backlog, newest first
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	events := make([]models.NotificationEvent, len(s.notifications))
	copy(events, s.notifications)
	s.mu.Unlock()

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	respondOK(w, events)
}

// handleForceEnd lets an operator close an election ahead of its window
func (s *Server) handleForceEnd(w http.ResponseWriter, r *http.Request) {
	if !adminFrom(r.Context()) {
		respondError(w, unauthorized("Admin token required"))
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	state, ok := s.elections[id]
	if !ok {
		s.mu.Unlock()
		respondError(w, notFound("Election not found"))
		return
	}
	state.window.Status = models.StatusEnded
	state.window.ServerOverride = true
	window := state.window
	event := s.appendEventLocked(models.KindElectionResult,
		fmt.Sprintf(`Results for "%s" are available`, id))
	s.mu.Unlock()

	go s.hub.Broadcast(event)

	s.log.Info("election force-ended", "electionId", id)
	respondOK(w, window)
}

// appendEventLocked records a new notification. Callers hold s.mu.
func (s *Server) appendEventLocked(kind models.NotificationKind, message string) models.NotificationEvent {
	s.nextEventID++
	event := models.NotificationEvent{
		EventID:    fmt.Sprintf("sim-%d", s.nextEventID),
		Kind:       kind,
		RawMessage: message,
		CreatedAt:  s.clock.Now(),
	}
	s.notifications = append(s.notifications, event)
	return event
}
