// Package learning keeps a bounded in-memory record of answered
// requests and the query token patterns seen in them. It feeds the
// learning status surface only; predictions never read from it.
package learning

import (
	"strings"
	"sync"
	"time"
)

const (
	// historyCap is the append limit; crossing it trims the history
	// down to the most recent historyTrim entries in one pass.
	historyCap  = 1000
	historyTrim = 800

	// minTokenLen filters short filler words out of pattern tracking.
	minTokenLen = 4

	// patternCap bounds the per-token hit list.
	patternCap = 100
)

// Interaction is one answered request.
type Interaction struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	IntentType string    `json:"intent_type"`
	Confidence float64   `json:"confidence"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PatternHit records one sighting of a query token.
type PatternHit struct {
	IntentType string    `json:"intent_type"`
	SeenAt     time.Time `json:"seen_at"`
}

// Status summarizes the store for the reporting surface.
type Status struct {
	TotalInteractions  int            `json:"total_interactions"`
	StoredInteractions int            `json:"stored_interactions"`
	LearnedPatterns    int            `json:"learned_patterns"`
	UserPreferences    map[string]int `json:"user_preferences"`
	Effectiveness      float64        `json:"effectiveness"`
	LastUpdate         time.Time      `json:"last_update"`
}

// Store is the bounded interaction history. All writes are serialized;
// a single instance is shared by every request goroutine.
type Store struct {
	mu         sync.Mutex
	history    []Interaction
	patterns   map[string][]PatternHit
	total      int
	lastUpdate time.Time
}

// NewStore creates an empty learning store.
func NewStore() *Store {
	return &Store{patterns: make(map[string][]PatternHit)}
}

// Record appends one interaction, trims the history when the cap is
// crossed, and indexes the query's significant tokens.
func (s *Store) Record(interaction Interaction) {
	if interaction.RecordedAt.IsZero() {
		interaction.RecordedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, interaction)
	if len(s.history) > historyCap {
		trimmed := make([]Interaction, historyTrim)
		copy(trimmed, s.history[len(s.history)-historyTrim:])
		s.history = trimmed
	}
	s.total++
	s.lastUpdate = interaction.RecordedAt

	for _, token := range strings.Fields(strings.ToLower(interaction.Query)) {
		if len(token) < minTokenLen {
			continue
		}
		hits := append(s.patterns[token], PatternHit{
			IntentType: interaction.IntentType,
			SeenAt:     interaction.RecordedAt,
		})
		if len(hits) > patternCap {
			hits = hits[len(hits)-patternCap:]
		}
		s.patterns[token] = hits
	}
}

// Size returns the stored (post-trim) interaction count.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Patterns returns the recorded hits for a token, newest last.
func (s *Store) Patterns(token string) []PatternHit {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.patterns[strings.ToLower(token)]
	out := make([]PatternHit, len(hits))
	copy(out, hits)
	return out
}

// Status reports lifetime totals, the distinct learned patterns, the
// per-intent preference counts, and the mean confidence over the
// stored history.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := make(map[string]int)
	var confidenceSum float64
	for _, it := range s.history {
		prefs[it.IntentType]++
		confidenceSum += it.Confidence
	}

	effectiveness := 0.0
	if len(s.history) > 0 {
		effectiveness = confidenceSum / float64(len(s.history))
	}

	return Status{
		TotalInteractions:  s.total,
		StoredInteractions: len(s.history),
		LearnedPatterns:    len(s.patterns),
		UserPreferences:    prefs,
		Effectiveness:      effectiveness,
		LastUpdate:         s.lastUpdate,
	}
}
