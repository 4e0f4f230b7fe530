// Package memory is a process-local db.Store for single-node deployments and tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
)

var _ db.Store = (*Store)(nil)

type entry struct {
	value   []byte
	expires time.Time // zero: never
}

// Store keeps hashes and strings in maps guarded by one mutex.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	values map[string]entry
	closed bool
	writes int
	now    func() time.Time
}

// sweepEvery is how many string writes pass between expiry sweeps.
const sweepEvery = 1024

// New creates an empty store.
func New() *Store {
	return &Store{
		hashes: make(map[string]map[string]string),
		values: make(map[string]entry),
		now:    time.Now,
	}
}

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// WaitForReady is immediate.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpHSet, Err: db.ErrClosed}
	}
	s.hsetLocked(key, fields)
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) {
	delete(s.values, key)
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	maps.Copy(h, fields)
}

// HGetAll returns a copy of the hash. A missing hash yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hgetLocked(key), nil
}

// HGetAllMulti reads several hashes.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = s.hgetLocked(k)
	}
	return out, nil
}

func (s *Store) hgetLocked(key string) map[string]string {
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	maps.Copy(out, h)
	return out
}

// Del deletes keys of any type.
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.values, k)
	}
	return nil
}

// Scan returns live keys matching a SCAN-style glob, sorted.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.hashes {
		if db.MatchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	for k := range s.values {
		if _, live := s.liveLocked(k); live && db.MatchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns a copy of the string value at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a string value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a string value that expires after ttl. Zero never expires.
// Expired entries are unreadable at once and reclaimed by a periodic sweep.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	now := s.now()
	if s.writes++; s.writes%sweepEvery == 0 {
		for k, e := range s.values {
			if !e.expires.IsZero() && !now.Before(e.expires) {
				delete(s.values, k)
			}
		}
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	delete(s.hashes, key)
	s.values[key] = e
	return nil
}

func (s *Store) liveLocked(key string) (entry, bool) {
	e, ok := s.values[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		return entry{}, false
	}
	return e, true
}
