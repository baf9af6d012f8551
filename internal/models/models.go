package models

import "time"

// ElectionStatus is the lifecycle state reported by the backend for an election.
type ElectionStatus string

const (
	StatusUpcoming  ElectionStatus = "upcoming"
	StatusActive    ElectionStatus = "active"
	StatusEnded     ElectionStatus = "ended"
	StatusCompleted ElectionStatus = "completed" // admin-finalized, treated as ended
)

// ElectionWindow describes when an election runs and whether an admin
// forced a state change independent of the clock.
type ElectionWindow struct {
	ID             string         `json:"id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Status         ElectionStatus `json:"status"`
	ServerOverride bool           `json:"server_override"`
}

// OverrideEnded reports whether the server has declared the election over
// regardless of what the local clock says.
func (w ElectionWindow) OverrideEnded() bool {
	return w.Status == StatusEnded || w.Status == StatusCompleted
}

// CandidateOption is a selectable ballot entry for one election.
// CandidateKey is unique within an election (typically a wallet address).
type CandidateOption struct {
	CandidateKey string `json:"candidate_key"`
	DisplayName  string `json:"display_name"`
	Party        string `json:"party"`
	SymbolRef    string `json:"symbol_ref,omitempty"` // absent means fall back to initials
	Motto        string `json:"motto,omitempty"`
}

// NotificationKind classifies a notification for presentation.
type NotificationKind string

const (
	KindElectionStart    NotificationKind = "election_start"
	KindElectionResult   NotificationKind = "election_result"
	KindVoteConfirmation NotificationKind = "vote_confirmation"
	KindSystemAlert      NotificationKind = "system_alert"
	KindOther            NotificationKind = "other"
)

// NotificationSource records which delivery path produced an event.
type NotificationSource string

const (
	SourceSnapshot NotificationSource = "snapshot"
	SourceLive     NotificationSource = "live"
)

// NotificationEvent is a single alert. Events are immutable after creation;
// EventID is unique across the merged snapshot and live streams.
type NotificationEvent struct {
	EventID    string             `json:"event_id"`
	Kind       NotificationKind   `json:"kind"`
	RawMessage string             `json:"message"`
	CreatedAt  time.Time          `json:"created_at"`
	Source     NotificationSource `json:"-"`
}

// Session is the authentication state shared by all components.
// Only the session guard mutates it.
type Session struct {
	Token      string `json:"token"`
	IsAdmin    bool   `json:"is_admin"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// Envelope is the wire frame for the live notification channel. Two event
// categories arrive on it: a broadcast category (all users) and a targeted
// category (one user); both carry a NotificationEvent payload.
type Envelope struct {
	Category string            `json:"category"`
	Event    NotificationEvent `json:"event"`
}

// Live channel categories.
const (
	CategoryBroadcast = "broadcast"
	CategoryTargeted  = "targeted"
)
