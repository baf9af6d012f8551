package electionapi

import (
	"context"
	"sync"
	"time"

	"github.com/ballotwatch/ballotwatch/internal/models"
)

// MockClient is a mock election backend client for testing
type MockClient struct {
	mu            sync.Mutex
	window        models.ElectionWindow
	candidates    []models.CandidateOption
	notifications []models.NotificationEvent
	baseURL       string
	liveURL       string
	electionErr   error
	candidatesErr error
	castErr       error
	snapshotErr   error
	castGate      chan struct{}
	castCalls     int
	castVotes     []string // candidate keys in submission order
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithWindow sets the election window to return
func WithWindow(window models.ElectionWindow) MockOption {
	return func(m *MockClient) {
		m.window = window
	}
}

// WithCandidates sets the approved candidates to return
func WithCandidates(candidates []models.CandidateOption) MockOption {
	return func(m *MockClient) {
		m.candidates = candidates
	}
}

// WithNotifications sets the snapshot notifications to return
func WithNotifications(events []models.NotificationEvent) MockOption {
	return func(m *MockClient) {
		m.notifications = events
	}
}

// WithElectionError sets an error to return from GetElection
func WithElectionError(err error) MockOption {
	return func(m *MockClient) {
		m.electionErr = err
	}
}

// WithCandidatesError sets an error to return from ApprovedCandidates
func WithCandidatesError(err error) MockOption {
	return func(m *MockClient) {
		m.candidatesErr = err
	}
}

// WithCastVoteError sets an error to return from CastVote
func WithCastVoteError(err error) MockOption {
	return func(m *MockClient) {
		m.castErr = err
	}
}

// WithSnapshotError sets an error to return from Notifications
func WithSnapshotError(err error) MockOption {
	return func(m *MockClient) {
		m.snapshotErr = err
	}
}

// WithCastGate makes CastVote block until the gate channel is closed or
// receives a value, so tests can hold a submission in flight.
func WithCastGate(gate chan struct{}) MockOption {
	return func(m *MockClient) {
		m.castGate = gate
	}
}

// WithLiveURL sets the live channel endpoint to report
func WithLiveURL(url string) MockOption {
	return func(m *MockClient) {
		m.liveURL = url
	}
}

// NewMockClient creates a new mock election backend client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		baseURL:    "http://mock-election.local",
		window:     DefaultMockWindow(),
		candidates: DefaultMockCandidates(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BaseURL returns the configured base URL
func (m *MockClient) BaseURL() string {
	return m.baseURL
}

// LiveURL returns the configured live channel endpoint
func (m *MockClient) LiveURL() string {
	if m.liveURL != "" {
		return m.liveURL
	}
	return "ws://mock-election.local/api/notification/live"
}

// GetElection returns the configured mock window or error
func (m *MockClient) GetElection(ctx context.Context, electionID string) (*models.ElectionWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.electionErr != nil {
		return nil, m.electionErr
	}
	window := m.window
	window.ID = electionID
	return &window, nil
}

// SetWindow replaces the mock window (for simulating a re-fetch)
func (m *MockClient) SetWindow(window models.ElectionWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = window
}

// SetElectionError makes later GetElection calls fail (for simulating an
// outage after a successful fetch)
func (m *MockClient) SetElectionError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.electionErr = err
}

// ApprovedCandidates returns the configured mock candidates or error
func (m *MockClient) ApprovedCandidates(ctx context.Context, electionID string) ([]models.CandidateOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candidatesErr != nil {
		return nil, m.candidatesErr
	}
	return m.candidates, nil
}

// CastVote records the submission and returns the configured result or error
func (m *MockClient) CastVote(ctx context.Context, electionID, candidateKey, requestID string) (*VoteResult, error) {
	m.mu.Lock()
	m.castCalls++
	m.castVotes = append(m.castVotes, candidateKey)
	gate := m.castGate
	castErr := m.castErr
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if castErr != nil {
		return nil, castErr
	}
	return &VoteResult{Status: "success", Message: "Vote recorded"}, nil
}

// CastCalls returns how many CastVote submissions were issued
func (m *MockClient) CastCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.castCalls
}

// CastVotes returns the submitted candidate keys in order
func (m *MockClient) CastVotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.castVotes...)
}

// Notifications returns the configured snapshot or error
func (m *MockClient) Notifications(ctx context.Context) ([]models.NotificationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	events := make([]models.NotificationEvent, len(m.notifications))
	copy(events, m.notifications)
	for i := range events {
		events[i].Source = models.SourceSnapshot
	}
	return events, nil
}

// DefaultMockWindow returns a sample active election window for testing
func DefaultMockWindow() models.ElectionWindow {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.ElectionWindow{
		ID:        "e-1",
		StartTime: start,
		EndTime:   start.Add(24 * time.Hour),
		Status:    models.StatusActive,
	}
}

// DefaultMockCandidates returns a set of sample ballot entries for testing
func DefaultMockCandidates() []models.CandidateOption {
	return []models.CandidateOption{
		{
			CandidateKey: "0xa11ce",
			DisplayName:  "Alice Okafor",
			Party:        "Unity Alliance",
			SymbolRef:    "symbols/sun.png",
			Motto:        "Forward together",
		},
		{
			CandidateKey: "0xb0b",
			DisplayName:  "Robert Lindqvist",
			Party:        "Progress Bloc",
			SymbolRef:    "symbols/oak.png",
			Motto:        "Roots and growth",
		},
		{
			CandidateKey: "0xca401",
			DisplayName:  "Carmen Reyes",
			Party:        "Independent",
			Motto:        "Your voice, counted",
		},
	}
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)
