package embedding

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/codec"
)

const (
	fieldEntityID     = "entity_id"
	fieldVector       = "vector"
	fieldModelVersion = "model_version"
	fieldComputedAt   = "computed_at"

	loadBatch = 256
)

var keyPrefix = domain.KeyPrefix + "emb:"

// store is the consumer interface for embedding records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo persists embedding records as hashes keyed by model version and entity id.
// Vectors are stored as base64 of little-endian float32 so every driver keeps them text-safe.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates an embedding repository.
func New(s store, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, logger: logger}
}

// Save writes rec, replacing any record for the same entity and version.
func (r *Repo) Save(ctx context.Context, rec vector.Record) error {
	key := recordKey(rec.ModelVersion, rec.EntityID)
	fields := map[string]string{
		fieldEntityID:     rec.EntityID,
		fieldVector:       base64.StdEncoding.EncodeToString(codec.EncodeVector(rec.Vector)),
		fieldModelVersion: rec.ModelVersion,
		fieldComputedAt:   rec.ComputedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("save embedding %s: %w", rec.EntityID, err)
	}
	return nil
}

// Delete removes the records of id under every model version.
func (r *Repo) Delete(ctx context.Context, id string) error {
	// ids and versions may both contain ':', so candidates are confirmed by field
	keys, err := r.store.Scan(ctx, keyPrefix+"*:"+db.EscapeGlob(id))
	if err != nil {
		return fmt.Errorf("scan embeddings of %s: %w", id, err)
	}
	var doomed []string
	err = r.each(ctx, keys, func(key string, m map[string]string) {
		if m[fieldEntityID] == id {
			doomed = append(doomed, key)
		}
	})
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, doomed...); err != nil {
		return fmt.Errorf("delete embeddings of %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every decodable record. Malformed records are logged and skipped.
func (r *Repo) LoadAll(ctx context.Context) ([]vector.Record, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	out := make([]vector.Record, 0, len(keys))
	err = r.each(ctx, keys, func(key string, m map[string]string) {
		rec, err := decode(m)
		if err != nil {
			r.logger.Warn("Skipping malformed embedding record", zap.String("key", key), zap.Error(err))
			return
		}
		out = append(out, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes records whose model version differs from active. Returns the count removed.
func (r *Repo) Prune(ctx context.Context, active string) (int, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan embeddings: %w", err)
	}
	var doomed []string
	err = r.each(ctx, keys, func(key string, m map[string]string) {
		if len(m) > 0 && m[fieldModelVersion] != active {
			doomed = append(doomed, key)
		}
	})
	if err != nil {
		return 0, err
	}
	if err := r.store.Del(ctx, doomed...); err != nil {
		return 0, fmt.Errorf("prune embeddings: %w", err)
	}
	return len(doomed), nil
}

func (r *Repo) each(ctx context.Context, keys []string, fn func(key string, m map[string]string)) error {
	for start := 0; start < len(keys); start += loadBatch {
		end := min(start+loadBatch, len(keys))
		batch := keys[start:end]
		maps, err := r.store.HGetAllMulti(ctx, batch)
		if err != nil {
			return fmt.Errorf("load embeddings: %w", err)
		}
		for i, m := range maps {
			if len(m) == 0 {
				continue
			}
			fn(batch[i], m)
		}
	}
	return nil
}

func decode(m map[string]string) (vector.Record, error) {
	id := m[fieldEntityID]
	if id == "" {
		return vector.Record{}, fmt.Errorf("missing %s", fieldEntityID)
	}
	raw, err := base64.StdEncoding.DecodeString(m[fieldVector])
	if err != nil {
		return vector.Record{}, fmt.Errorf("decode %s: %w", fieldVector, err)
	}
	vec, err := codec.DecodeVector(raw)
	if err != nil {
		return vector.Record{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, m[fieldComputedAt])
	if err != nil {
		return vector.Record{}, fmt.Errorf("parse %s: %w", fieldComputedAt, err)
	}
	return vector.Record{
		EntityID:     id,
		Vector:       vec,
		ModelVersion: m[fieldModelVersion],
		ComputedAt:   at,
	}, nil
}

func recordKey(modelVersion, id string) string {
	return keyPrefix + modelVersion + ":" + id
}
