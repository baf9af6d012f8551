package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ballotwatch/ballotwatch/internal/models"
)

// Fixtures seed the simulator with elections, candidates, and an initial
// notification backlog.
type Fixtures struct {
	SigningKey    string                `yaml:"signingKey"`
	TokenTTL      time.Duration         `yaml:"tokenTTL"`
	Elections     []ElectionFixture     `yaml:"elections"`
	Notifications []NotificationFixture `yaml:"notifications"`
}

// ElectionFixture describes one election and its ballot
type ElectionFixture struct {
	ID         string             `yaml:"id"`
	StartTime  time.Time          `yaml:"startTime"`
	EndTime    time.Time          `yaml:"endTime"`
	Status     string             `yaml:"status"`
	Candidates []CandidateFixture `yaml:"candidates"`
}

// CandidateFixture describes one approved candidate
type CandidateFixture struct {
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Party  string `yaml:"party"`
	Symbol string `yaml:"symbol"`
	Motto  string `yaml:"motto"`
}

// NotificationFixture seeds the snapshot backlog
type NotificationFixture struct {
	ID        string    `yaml:"id"`
	Kind      string    `yaml:"kind"`
	Message   string    `yaml:"message"`
	CreatedAt time.Time `yaml:"createdAt"`
}

// LoadFixtures reads a fixture file
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	if len(f.Elections) == 0 {
		return fmt.Errorf("fixtures define no elections")
	}
	for _, e := range f.Elections {
		if e.ID == "" {
			return fmt.Errorf("election fixture missing id")
		}
		if !e.EndTime.After(e.StartTime) {
			return fmt.Errorf("election %s: endTime must be after startTime", e.ID)
		}
		for _, c := range e.Candidates {
			if c.Key == "" {
				return fmt.Errorf("election %s: candidate missing key", e.ID)
			}
		}
	}
	return nil
}

// DefaultFixtures returns a ready-to-run single election that opened an
// hour ago and closes in an hour.
func DefaultFixtures(now time.Time) *Fixtures {
	return &Fixtures{
		SigningKey: "ballotwatch-sim",
		TokenTTL:   time.Hour,
		Elections: []ElectionFixture{
			{
				ID:        "e-1",
				StartTime: now.Add(-time.Hour),
				EndTime:   now.Add(time.Hour),
				Status:    string(models.StatusActive),
				Candidates: []CandidateFixture{
					{Key: "0xa11ce", Name: "Alice Okafor", Party: "Unity Alliance", Symbol: "sun", Motto: "Forward together"},
					{Key: "0xb0b", Name: "Robert Lindqvist", Party: "Progress Bloc", Symbol: "oak", Motto: "Steady hands"},
					{Key: "0xca401", Name: "Carmen Reyes", Party: "Independent"},
				},
			},
		},
		Notifications: []NotificationFixture{
			{
				ID:        "n-1",
				Kind:      string(models.KindElectionStart),
				Message:   `Voting is now open for "General Election"!`,
				CreatedAt: now.Add(-time.Hour),
			},
		},
	}
}

func (e ElectionFixture) window() models.ElectionWindow {
	status := models.ElectionStatus(e.Status)
	if status == "" {
		status = models.StatusActive
	}
	return models.ElectionWindow{
		ID:        e.ID,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Status:    status,
	}
}

func (e ElectionFixture) candidates() []models.CandidateOption {
	out := make([]models.CandidateOption, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		out = append(out, models.CandidateOption{
			CandidateKey: c.Key,
			DisplayName:  c.Name,
			Party:        c.Party,
			SymbolRef:    c.Symbol,
			Motto:        c.Motto,
		})
	}
	return out
}

func (n NotificationFixture) event() models.NotificationEvent {
	kind := models.NotificationKind(n.Kind)
	if kind == "" {
		kind = models.KindOther
	}
	return models.NotificationEvent{
		EventID:    n.ID,
		Kind:       kind,
		RawMessage: n.Message,
		CreatedAt:  n.CreatedAt,
	}
}
