package notify

import (
	"strings"

	"github.com/ballotwatch/ballotwatch/internal/models"
)

// Headline maps an event to its display title. System alerts pass their
// message through verbatim; the other kinds fill a fixed template with a
// quoted name pulled from the raw message, falling back to an empty slot
// when no quote is present.
func Headline(event models.NotificationEvent) string {
	switch event.Kind {
	case models.KindElectionStart:
		return withSubject("Election started", quoted(event.RawMessage))
	case models.KindElectionResult:
		return withSubject("Results published", quoted(event.RawMessage))
	case models.KindVoteConfirmation:
		return withSubject("Vote recorded", quoted(event.RawMessage))
	case models.KindSystemAlert:
		return event.RawMessage
	default:
		return event.RawMessage
	}
}

// Icon maps an event kind to its display glyph
func Icon(kind models.NotificationKind) string {
	switch kind {
	case models.KindElectionStart:
		return "🗳"
	case models.KindElectionResult:
		return "🏁"
	case models.KindVoteConfirmation:
		return "✓"
	case models.KindSystemAlert:
		return "⚠"
	default:
		return "•"
	}
}

// quoted returns the first double-quoted substring of s, or empty
func quoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

func withSubject(title, subject string) string {
	if subject == "" {
		return title
	}
	return title + ": " + subject
}
