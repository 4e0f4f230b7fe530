package vector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
)

const cancelCheckEvery = 256

// Record is a persisted embedding of one entity under one model version.
type Record struct {
	EntityID     string
	Vector       []float32
	ModelVersion string
	ComputedAt   time.Time
}

// Candidate is an entity the caller may see, with its current updated_at.
type Candidate struct {
	ID        string
	UpdatedAt time.Time
}

// Match is a scored semantic neighbor.
type Match struct {
	ID        string
	Score     float64
	UpdatedAt time.Time
}

type state int

const (
	stateNone state = iota
	stateFresh
	stateStale
)

type slot struct {
	rec  Record
	norm float64
}

// Store keeps one embedding per entity and matches query vectors by exact cosine scan.
//
// Counters for tracked entities are maintained on every mutation so Status is O(1).
type Store struct {
	mu      sync.RWMutex
	version string
	dims    int
	slots   map[string]slot
	clock   map[string]time.Time // tracked entity -> updated_at

	fresh int
	stale int
	now   func() time.Time
}

// New creates a store for the active model version and dimensionality.
func New(modelVersion string, dims int) *Store {
	return &Store{
		version: modelVersion,
		dims:    dims,
		slots:   make(map[string]slot),
		clock:   make(map[string]time.Time),
		now:     time.Now,
	}
}

// ModelVersion returns the active model version.
func (s *Store) ModelVersion() string { return s.version }

// Dimensions returns the active vector size.
func (s *Store) Dimensions() int { return s.dims }

// Upsert stores a vector for the tracked entity state and marks it fresh as of now.
// When the tracked updated_at lies in the future, that time is used instead.
// Vectors of another model version or size are rejected.
func (s *Store) Upsert(id string, vec []float32, modelVersion string) (Record, error) {
	if modelVersion != s.version {
		return Record{}, domain.ErrModelVersionMismatch
	}
	if len(vec) != s.dims {
		return Record{}, domain.NewDimensionError(s.dims, len(vec))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC()
	if u, ok := s.clock[id]; ok && u.After(at) {
		at = u
	}
	rec := Record{
		EntityID:     id,
		Vector:       append([]float32(nil), vec...),
		ModelVersion: modelVersion,
		ComputedAt:   at,
	}
	s.mutate(id, func() { s.slots[id] = slot{rec: rec, norm: norm(rec.Vector)} })
	return rec, nil
}

// Restore loads a persisted record of any version. When several versions exist
// for one entity, an active-version record wins, then the latest computed_at.
func (s *Store) Restore(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.slots[rec.EntityID]; ok {
		curActive := cur.rec.ModelVersion == s.version
		newActive := rec.ModelVersion == s.version
		if curActive && !newActive {
			return
		}
		if curActive == newActive && !rec.ComputedAt.After(cur.rec.ComputedAt) {
			return
		}
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	s.mutate(rec.EntityID, func() { s.slots[rec.EntityID] = slot{rec: rec, norm: norm(rec.Vector)} })
}

// Track records the current updated_at of an entity.
func (s *Store) Track(id string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutate(id, func() { s.clock[id] = updatedAt })
}

// Forget drops the entity and its embedding.
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutate(id, func() {
		delete(s.clock, id)
		delete(s.slots, id)
	})
}

// mutate applies fn and moves id between counters. Caller holds the write lock.
func (s *Store) mutate(id string, fn func()) {
	s.count(s.stateLocked(id), -1)
	fn()
	s.count(s.stateLocked(id), +1)
}

func (s *Store) count(st state, delta int) {
	switch st {
	case stateFresh:
		s.fresh += delta
	case stateStale:
		s.stale += delta
	}
}

func (s *Store) stateLocked(id string) state {
	u, tracked := s.clock[id]
	if !tracked {
		return stateNone
	}
	sl, ok := s.slots[id]
	if !ok {
		return stateNone
	}
	if s.freshLocked(sl.rec, u) {
		return stateFresh
	}
	return stateStale
}

func (s *Store) freshLocked(rec Record, updatedAt time.Time) bool {
	return rec.ModelVersion == s.version &&
		len(rec.Vector) == s.dims &&
		!rec.ComputedAt.Before(updatedAt)
}

// IsFresh reports whether id has an embedding usable for an entity last updated at updatedAt.
func (s *Store) IsFresh(id string, updatedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	return ok && s.freshLocked(sl.rec, updatedAt)
}

// Get returns the stored record for id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	return sl.rec, ok
}

// Pending lists tracked entities without a fresh embedding, ordered by id.
func (s *Store) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id := range s.clock {
		if s.stateLocked(id) != stateFresh {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Status summarizes the index. Constant time.
func (s *Store) Status() result.IndexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return result.IndexStatus{
		TotalEntities: len(s.clock),
		EmbeddedCount: s.fresh,
		StaleCount:    s.stale,
		ModelVersion:  s.version,
		Dimensions:    s.dims,
	}
}

// MatchTopK returns up to k candidates whose fresh embedding has cosine similarity
// with q of at least threshold (clamped to [-1, 1]). Stale, missing and zero-norm
// embeddings are skipped. Ties break on updated_at desc, then id asc.
func (s *Store) MatchTopK(
	ctx context.Context, q []float32, candidates []Candidate, k int, threshold float64,
) ([]Match, error) {
	if len(q) != s.dims {
		return nil, domain.NewDimensionError(s.dims, len(q))
	}
	if k <= 0 {
		return nil, nil
	}
	qn := norm(q)
	if qn == 0 || math.IsNaN(qn) {
		return nil, nil
	}
	threshold = request.ClampThreshold(threshold)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Match
	for i, c := range candidates {
		if i%cancelCheckEvery == cancelCheckEvery-1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sl, ok := s.slots[c.ID]
		if !ok || sl.norm == 0 || !s.freshLocked(sl.rec, c.UpdatedAt) {
			continue
		}
		sim := dot(q, sl.rec.Vector) / (qn * sl.norm)
		if math.IsNaN(sim) {
			continue
		}
		if sim > 1 {
			sim = 1
		} else if sim < -1 {
			sim = -1
		}
		if sim < threshold {
			continue
		}
		out = append(out, Match{ID: c.ID, Score: sim, UpdatedAt: c.UpdatedAt})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
