// Package indexing keeps the lexical index and the embedding store in step
// with entity store notifications.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/metrics"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/tracing"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/embedding"
)

// ErrClosed is returned for notifications that arrive after Close.
var ErrClosed = errors.New("indexing service closed")

var _ entity.Observer = (*Service)(nil)

// Job outcomes.
const (
	outcomeStored     = "stored"
	outcomeSuperseded = "superseded"
	outcomeFailed     = "failed"
	outcomeRejected   = "rejected"
)

// resubmitDelay spaces retries of a job waiting for a free worker.
const resubmitDelay = 10 * time.Millisecond

// Config controls deferred embedding.
type Config struct {
	// Async runs embedding jobs on a worker pool. Otherwise they run inline.
	Async   bool
	Workers int
	// RetryAttempts bounds tries per job on retryable failures.
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Service applies entity changes to both indexes under a single-writer lock.
// Embeddings are computed after the lexical update, so an entity is keyword
// searchable at once and semantically searchable once its job completes.
type Service struct {
	mu     sync.Mutex
	lex    LexicalIndex
	vec    VectorIndex
	repo   Repository
	embed  Embedder
	cfg    Config
	logger *zap.Logger

	pool   *ants.Pool
	jobs   sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates an indexing service. Call Close to release the worker pool.
func New(lex LexicalIndex, vec VectorIndex, repo Repository, embed Embedder, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	s := &Service{lex: lex, vec: vec, repo: repo, embed: embed, cfg: cfg, logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Async {
		pool, err := ants.NewPool(cfg.Workers,
			ants.WithNonblocking(true),
			ants.WithPanicHandler(func(p any) {
				logger.Error("Embedding job panicked", zap.Any("panic", p))
			}),
		)
		if err != nil {
			s.cancel()
			return nil, fmt.Errorf("create embedding pool: %w", err)
		}
		s.pool = pool
	}
	return s, nil
}

// OnEntityChanged indexes e and schedules its embedding when no fresh one exists.
// A notification older than the indexed state is ignored. Embedding failures
// are logged, never returned.
func (s *Service) OnEntityChanged(ctx context.Context, e entity.Entity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if cur, ok := s.lex.Get(e.ID()); ok && cur.UpdatedAt().After(e.UpdatedAt()) {
		s.mu.Unlock()
		s.logger.Debug("Ignoring out-of-date entity notification",
			zap.String("entity_id", e.ID()),
			zap.Time("indexed_updated_at", cur.UpdatedAt()),
			zap.Time("updated_at", e.UpdatedAt()),
		)
		return nil
	}
	s.lex.Index(e)
	s.vec.Track(e.ID(), e.UpdatedAt())
	fresh := s.vec.IsFresh(e.ID(), e.UpdatedAt())
	s.mu.Unlock()

	s.updateGauges()
	if !fresh {
		s.schedule(ctx, e, false)
	}
	return nil
}

// OnEntityDeleted removes id from both indexes and deletes its persisted records.
func (s *Service) OnEntityDeleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.lex.Remove(id)
	s.vec.Forget(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to delete persisted embeddings",
			zap.String("entity_id", id), zap.Error(err))
	}
	s.updateGaugesLocked()
	return nil
}

// Get returns the indexed state of an entity.
func (s *Service) Get(id string) (entity.Entity, bool) {
	return s.lex.Get(id)
}

// Bootstrap indexes entities and restores their persisted embeddings.
// Records of inactive model versions are restored as stale and pruned from storage.
func (s *Service) Bootstrap(ctx context.Context, entities []entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		s.lex.Index(e)
		s.vec.Track(e.ID(), e.UpdatedAt())
	}

	recs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	for _, rec := range recs {
		s.vec.Restore(rec)
	}

	pruned, err := s.repo.Prune(ctx, s.vec.ModelVersion())
	if err != nil {
		s.logger.Warn("Failed to prune inactive embeddings", zap.Error(err))
	}

	st := s.vec.Status()
	s.logger.Info("Index bootstrapped",
		zap.Int("entities", len(entities)),
		zap.Int("records", len(recs)),
		zap.Int("pruned", pruned),
		zap.Int("embedded", st.EmbeddedCount),
		zap.Int("stale", st.StaleCount),
	)
	s.updateGaugesLocked()
	return nil
}

// ReembedStale schedules a job for every tracked entity without a fresh
// embedding, waiting for free workers. Returns the number of jobs handed out.
func (s *Service) ReembedStale(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	var todo []entity.Entity
	for _, id := range s.vec.Pending() {
		if e, ok := s.lex.Get(id); ok {
			todo = append(todo, e)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, e := range todo {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if s.schedule(ctx, e, true) {
			n++
		}
	}
	return n, nil
}

// Drain waits for in-flight embedding jobs or for ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further notifications, aborts running jobs and releases the pool.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.jobs.Wait()
	if s.pool != nil {
		s.pool.Release()
	}
}

// schedule hands e to the pool, or runs the job inline when async is off.
// With wait set, a full pool is retried until a worker frees up or ctx ends;
// otherwise the job is rejected at once. Reports whether the job was accepted.
func (s *Service) schedule(ctx context.Context, e entity.Entity, wait bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.jobs.Add(1)
	s.mu.Unlock()

	if s.pool == nil {
		defer s.jobs.Done()
		s.run(ctx, e)
		return true
	}

	job := func() {
		defer s.jobs.Done()
		s.run(s.ctx, e)
	}
	err := s.pool.Submit(job)
retry:
	for wait && errors.Is(err, ants.ErrPoolOverload) {
		select {
		case <-time.After(resubmitDelay):
			err = s.pool.Submit(job)
		case <-ctx.Done():
			err = fmt.Errorf("%w: %w", err, ctx.Err())
			break retry
		case <-s.ctx.Done():
			err = fmt.Errorf("%w: %w", err, ErrClosed)
			break retry
		}
	}
	if err != nil {
		s.jobs.Done()
		metrics.EmbeddingJobsTotal.WithLabelValues(outcomeRejected).Inc()
		s.logger.Warn("Embedding job rejected",
			zap.String("entity_id", e.ID()),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrOverloaded, err)),
		)
		return false
	}
	return true
}

// run embeds e and stores the vector unless e changed or vanished meanwhile.
func (s *Service) run(ctx context.Context, e entity.Entity) {
	ctx, span := tracing.Start(ctx, "indexing.embed", trace.WithAttributes(
		attribute.String("entity.id", e.ID()),
	))
	var err error
	defer func() { tracing.End(span, err) }()

	log := s.logger.With(zap.String("entity_id", e.ID()))
	text := e.EmbeddingText()

	var res domain.EmbeddingResult
	err = embedding.RetryWithBackoff(ctx, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay, domain.IsRetryable,
		func(ctx context.Context) error {
			var embErr error
			res, embErr = s.embed.Embed(ctx, text)
			return embErr
		})
	if err != nil {
		metrics.EmbeddingJobsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Warn("Embedding job failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lex.Get(e.ID())
	if !ok || !cur.UpdatedAt().Equal(e.UpdatedAt()) || cur.EmbeddingText() != text {
		metrics.EmbeddingJobsTotal.WithLabelValues(outcomeSuperseded).Inc()
		log.Debug("Embedding superseded", zap.Bool("deleted", !ok))
		return
	}

	rec, err := s.vec.Upsert(e.ID(), res.Embedding, s.vec.ModelVersion())
	if err != nil {
		metrics.EmbeddingJobsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Error("Embedding rejected by store", zap.Error(err))
		return
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		log.Warn("Failed to persist embedding", zap.Error(err))
	}
	metrics.EmbeddingJobsTotal.WithLabelValues(outcomeStored).Inc()
	s.updateGaugesLocked()
}

func (s *Service) updateGauges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateGaugesLocked()
}

func (s *Service) updateGaugesLocked() {
	st := s.vec.Status()
	metrics.IndexEntities.WithLabelValues("total").Set(float64(st.TotalEntities))
	metrics.IndexEntities.WithLabelValues("embedded").Set(float64(st.EmbeddedCount))
	metrics.IndexEntities.WithLabelValues("stale").Set(float64(st.StaleCount))
}

// InconsistencyHook returns a lexical index callback that counts and logs
// postings left behind for entities that no longer exist.
func InconsistencyHook(logger *zap.Logger) func(id string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(id string) {
		metrics.IndexConsistencyViolations.Inc()
		logger.Warn("Index entry references missing entity",
			zap.String("entity_id", id),
			zap.Error(domain.ErrConsistencyViolation),
		)
	}
}
