// Package badger implements db.Store on an embedded BadgerDB.
//
// Strings live under the "s\x00" namespace and hashes under "h\x00", each hash
// serialized as one JSON object, so a key holds exactly one type like in Redis.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
)

var _ db.Store = (*Store)(nil)

var (
	strPrefix  = []byte("s\x00")
	hashPrefix = []byte("h\x00")
)

// Config holds BadgerDB options.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a db.Store backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// zapAdapter routes badger logs through zap.
type zapAdapter struct {
	l *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, args ...any)   { a.l.Errorf(msg, args...) }
func (a *zapAdapter) Warningf(msg string, args ...any) { a.l.Warnf(msg, args...) }
func (a *zapAdapter) Infof(msg string, args ...any)    { a.l.Debugf(msg, args...) }
func (a *zapAdapter) Debugf(msg string, args ...any)   { a.l.Debugf(msg, args...) }

// Open opens (or creates) a BadgerDB store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	opts.Logger = &zapAdapter{l: l.Named("badger").Sugar()}
	opts.Compression = options.None

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: bdb}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady returns once the database is open. Badger is ready after Open,
// so this only fails for a closed store.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return hsetTxn(txn, key, fields)
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

func hsetTxn(txn *badger.Txn, key string, fields map[string]string) error {
	cur, err := hgetTxn(txn, key)
	if err != nil {
		return err
	}
	if cur == nil {
		cur = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		cur[k] = v
	}
	val, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	if err := txn.Delete(nsKey(strPrefix, key)); err != nil {
		return err
	}
	return txn.Set(nsKey(hashPrefix, key), val)
}

// hgetTxn returns nil for a missing hash.
func hgetTxn(txn *badger.Txn, key string) (map[string]string, error) {
	item, err := txn.Get(nsKey(hashPrefix, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	return m, err
}

// HGetAll returns all fields of a hash. A missing hash yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	var m map[string]string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = hgetTxn(txn, key)
		return err
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// HGetAllMulti reads several hashes from one snapshot.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, k := range keys {
			m, err := hgetTxn(txn, k)
			if err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
			if m == nil {
				m = map[string]string{}
			}
			out[i] = m
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// Del deletes keys of any type. Missing keys are ignored.
func (s *Store) Del(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(nsKey(strPrefix, k)); err != nil {
				return err
			}
			if err := txn.Delete(nsKey(hashPrefix, k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Scan returns every key matching a SCAN-style glob pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if n++; n%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			raw := it.Item().Key()
			if len(raw) < len(strPrefix) {
				continue
			}
			k := string(raw[len(strPrefix):])
			if db.MatchGlob(pattern, k) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return keys, nil
}

// Get returns the string value at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nsKey(strPrefix, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// Set stores a string value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a string value that badger drops after ttl. A ttl of zero never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(nsKey(hashPrefix, key)); err != nil {
			return err
		}
		e := badger.NewEntry(nsKey(strPrefix, key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

func nsKey(prefix []byte, key string) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}
