// Package dedup resolves re-fetches of the same real-world record into
// an identity-keyed audit trail with a latest-version current view.
//
// Nothing is ever destroyed: when an edited report re-arrives under an
// existing identity key, the superseded version stays in the trail so
// replay-based model evaluation can distinguish original from corrected
// text. An identical re-fetch is a no-op.
package dedup

import (
	"sync"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Outcome describes what applying an observation did to the store.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// ApplyResult reports the outcome and the version now current for the key.
type ApplyResult struct {
	Outcome Outcome
	Version int
}

// Store holds per-identity-key version histories. All access is
// serialized through one mutex: the pipeline funnels writes through a
// single coordinator, and expected volumes (thousands of records) need
// nothing finer-grained.
type Store struct {
	mu        sync.Mutex
	histories map[string][]domain.Observation
	order     []string // identity keys in first-seen order
}

func NewStore() *Store {
	return &Store{histories: make(map[string][]domain.Observation)}
}

// Apply advances the key's state machine: unseen keys start at version
// 1, a content change appends version n+1, and an identical content
// hash leaves the trail untouched. The stored observation carries its
// assigned version.
func (s *Store) Apply(obs domain.Observation) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.histories[obs.ID]
	if len(hist) == 0 {
		obs.Version = 1
		s.histories[obs.ID] = []domain.Observation{obs}
		s.order = append(s.order, obs.ID)
		return ApplyResult{Outcome: OutcomeNew, Version: 1}
	}

	latest := hist[len(hist)-1]
	if latest.ContentHash == obs.ContentHash {
		return ApplyResult{Outcome: OutcomeUnchanged, Version: latest.Version}
	}

	obs.Version = latest.Version + 1
	s.histories[obs.ID] = append(hist, obs)
	return ApplyResult{Outcome: OutcomeUpdated, Version: obs.Version}
}

// Current returns the latest version per identity key in first-seen
// order. The slice is a copy; callers may hold it across further writes.
func (s *Store) Current() []domain.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Observation, 0, len(s.order))
	for _, key := range s.order {
		hist := s.histories[key]
		out = append(out, hist[len(hist)-1])
	}
	return out
}

// History returns every recorded version for the key, oldest first.
func (s *Store) History(key string) []domain.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.histories[key]
	out := make([]domain.Observation, len(hist))
	copy(out, hist)
	return out
}

// Len reports the number of distinct identity keys seen.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
