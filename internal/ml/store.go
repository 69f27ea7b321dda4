// Package ml implements the job-history training store and the
// k-nearest-neighbor predictor that recommends a worker for a
// (machine, complexity) request.
//
// The store owns the raw historical records; the predictor owns an
// immutable model snapshot built from those records on each retrain.
// Predictions read whichever snapshot was installed when they started,
// so a retrain never changes a prediction mid-flight.
package ml

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Valid ranges for the assignment domain.
const (
	MinMachineID  = 1
	MaxMachineID  = 5
	MinComplexity = 1
	MaxComplexity = 5
)

// TrainingRecord is one completed job: who ran it, on which machine,
// how long it took, and the quality score it earned.
type TrainingRecord struct {
	MachineID   int       `json:"machine_id"`
	Worker      string    `json:"worker"`
	TimeMinutes float64   `json:"time_minutes"`
	Quality     float64   `json:"quality"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Validate checks a record against the domain ranges.
func (r TrainingRecord) Validate() error {
	if r.MachineID < MinMachineID || r.MachineID > MaxMachineID {
		return &InvalidMachineError{MachineID: r.MachineID}
	}
	if r.Worker == "" {
		return fmt.Errorf("training record is missing a worker name")
	}
	if r.TimeMinutes <= 0 {
		return fmt.Errorf("training record time must be positive, got %.1f", r.TimeMinutes)
	}
	if r.Quality < 0 || r.Quality > 100 {
		return fmt.Errorf("training record quality must be in 0-100, got %.1f", r.Quality)
	}
	return nil
}

// TrainingStore holds the historical job records that feed retrains.
// Adding records does not affect the live model until Retrain runs.
type TrainingStore struct {
	mu      sync.RWMutex
	records []TrainingRecord
}

// NewTrainingStore creates an empty training store.
func NewTrainingStore() *TrainingStore {
	return &TrainingStore{}
}

// Add validates and appends the given records, stamping RecordedAt on
// records that arrive without a timestamp. Invalid records are skipped.
// Returns how many records were accepted.
func (s *TrainingStore) Add(records []TrainingRecord) int {
	now := time.Now()
	accepted := make([]TrainingRecord, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			continue
		}
		if r.RecordedAt.IsZero() {
			r.RecordedAt = now
		}
		accepted = append(accepted, r)
	}

	s.mu.Lock()
	s.records = append(s.records, accepted...)
	s.mu.Unlock()
	return len(accepted)
}

// Len returns the number of stored records.
func (s *TrainingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of all stored records.
func (s *TrainingStore) Records() []TrainingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrainingRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Workers returns the distinct worker names in the store, sorted.
func (s *TrainingStore) Workers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, r := range s.records {
		seen[r.Worker] = true
	}
	workers := make([]string, 0, len(seen))
	for w := range seen {
		workers = append(workers, w)
	}
	sort.Strings(workers)
	return workers
}
