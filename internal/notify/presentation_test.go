package notify_test

import (
	"testing"

	"github.com/ballotwatch/ballotwatch/internal/models"
	"github.com/ballotwatch/ballotwatch/internal/notify"
)

// TestHeadline tests the kind-to-title mapping
func TestHeadline(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.NotificationKind
		message string
		want    string
	}{
		{
			name:    "election start with quoted name",
			kind:    models.KindElectionStart,
			message: `Voting is now open for "City Council 2024"!`,
			want:    "Election started: City Council 2024",
		},
		{
			name:    "election result with quoted name",
			kind:    models.KindElectionResult,
			message: `Results for "City Council 2024" are available`,
			want:    "Results published: City Council 2024",
		},
		{
			name:    "vote confirmation with quoted name",
			kind:    models.KindVoteConfirmation,
			message: `Your vote in "City Council 2024" was recorded`,
			want:    "Vote recorded: City Council 2024",
		},
		{
			name:    "no quoted substring falls back to bare title",
			kind:    models.KindElectionStart,
			message: "Voting is now open",
			want:    "Election started",
		},
		{
			name:    "unterminated quote falls back to bare title",
			kind:    models.KindElectionResult,
			message: `Results for "City Council`,
			want:    "Results published",
		},
		{
			name:    "system alert passes through verbatim",
			kind:    models.KindSystemAlert,
			message: "Maintenance window at 02:00 UTC",
			want:    "Maintenance window at 02:00 UTC",
		},
		{
			name:    "unknown kind passes through verbatim",
			kind:    models.KindOther,
			message: "something else entirely",
			want:    "something else entirely",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notify.Headline(models.NotificationEvent{
				Kind:       tt.kind,
				RawMessage: tt.message,
			})
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestIcon_CoversAllKinds tests that every kind has a glyph
func TestIcon_CoversAllKinds(t *testing.T) {
	kinds := []models.NotificationKind{
		models.KindElectionStart,
		models.KindElectionResult,
		models.KindVoteConfirmation,
		models.KindSystemAlert,
		models.KindOther,
	}
	for _, kind := range kinds {
		if notify.Icon(kind) == "" {
			t.Errorf("kind %s has no icon", kind)
		}
	}
}
