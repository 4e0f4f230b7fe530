package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/access"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/mode"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/lexical"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/logger"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/metrics"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/textnorm"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/tracing"
)

// Service answers keyword and semantic queries over the archive.
// It only reads the indexes and may be called concurrently.
type Service struct {
	lex    LexicalIndex
	vec    VectorIndex
	embed  Embedder
	lookup entity.Lookup
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLookup cross-checks every hit against the entity store. Hits for
// entities the store no longer has, or whose visibility has changed to one
// the caller may not see, are dropped and counted as consistency violations.
func WithLookup(l entity.Lookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithLogger sets the fallback logger used when ctx carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a search service.
func New(lex LexicalIndex, vec VectorIndex, embed Embedder, opts ...Option) *Service {
	s := &Service{lex: lex, vec: vec, embed: embed, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// KeywordSearch runs a lexical query restricted to the visibilities the caller
// may see, post-filters on the structured filters, and returns one page.
func (s *Service) KeywordSearch(
	ctx context.Context, req *request.Request, authorized bool,
) (page result.Page, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search.keyword", trace.WithAttributes(
		attribute.Bool("search.authorized", authorized),
		attribute.String("search.sort", string(req.Sort())),
		attribute.Int("search.page", req.Page()),
		attribute.Int("search.limit", req.Limit()),
	))
	defer func() {
		span.SetAttributes(attribute.Int("search.total", page.Total))
		tracing.End(span, err)
		observe(mode.Keyword, start, page.Total, err)
	}()

	allowed := access.Permitted(authorized, req.Visibility())
	q := textnorm.ParseQuery(req.Query(), entity.LocaleUnd)

	hits, err := s.lex.Search(ctx, q, visibleTo(allowed))
	if err != nil {
		return result.Page{}, fmt.Errorf("lexical search: %w", err)
	}
	hits = s.verifyHits(ctx, hits, allowed)

	visible := make([]entity.Entity, len(hits))
	for i, h := range hits {
		visible[i] = h.Entity
	}
	f := req.Filters()
	facets := aggregateFacets(visible, f)

	results := make([]result.Result, 0, len(hits))
	for _, h := range hits {
		if !f.Match(h.Entity) {
			continue
		}
		results = append(results, result.New(h.Entity.ID(), h.Score, h.Entity.UpdatedAt(), h.MatchedFields))
	}
	if req.Sort() == mode.Date {
		sort.SliceStable(results, func(i, j int) bool { return result.NewerFirst(results[i], results[j]) })
	}

	return result.Page{
		Results: paginate(results, req.Offset(), req.Limit()),
		Total:   len(results),
		Facets:  facets,
		Page:    req.Page(),
		Limit:   req.Limit(),
	}, nil
}

// SemanticSearch embeds the query and returns the top-K permitted entities by
// cosine similarity. A blank query, an unbuilt index or an empty candidate set
// yields an empty result without calling the embedder.
func (s *Service) SemanticSearch(
	ctx context.Context, req *request.Request, authorized bool,
) (page result.SemanticPage, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search.semantic", trace.WithAttributes(
		attribute.Bool("search.authorized", authorized),
		attribute.Int("search.top_k", req.TopK()),
		attribute.Float64("search.threshold", req.Threshold()),
	))
	defer func() {
		span.SetAttributes(attribute.Int("search.total", page.Total))
		tracing.End(span, err)
		observe(mode.Semantic, start, page.Total, err)
	}()

	empty := result.SemanticPage{Results: []result.Result{}}
	if strings.TrimSpace(req.Query()) == "" {
		return empty, nil
	}
	if !s.vec.Status().Available() {
		s.log(ctx).Debug("Semantic index unavailable", zap.Error(domain.ErrIndexUnavailable))
		return empty, nil
	}

	allowed := access.Permitted(authorized, req.Visibility())
	f := req.Filters()
	entities, err := s.lex.Entities(ctx, func(e entity.Entity) bool {
		return allowed.Allows(e.Visibility()) && f.Match(e)
	})
	if err != nil {
		return result.SemanticPage{}, fmt.Errorf("list candidates: %w", err)
	}
	entities = s.verifyEntities(ctx, entities, allowed)
	if len(entities) == 0 {
		return empty, nil
	}

	candidates := make([]vector.Candidate, len(entities))
	for i, e := range entities {
		candidates[i] = vector.Candidate{ID: e.ID(), UpdatedAt: e.UpdatedAt()}
	}

	qv, err := s.embedQuery(ctx, req.Query())
	if err != nil {
		return result.SemanticPage{}, err
	}

	matches, err := s.vec.MatchTopK(ctx, qv, candidates, req.TopK(), req.Threshold())
	if err != nil {
		return result.SemanticPage{}, fmt.Errorf("match top-k: %w", err)
	}

	results := make([]result.Result, len(matches))
	for i, m := range matches {
		results[i] = result.New(m.ID, m.Score, m.UpdatedAt, nil)
	}
	return result.SemanticPage{Results: results, Total: len(results)}, nil
}

// SemanticStatus summarizes the embedding index. Constant time and free of
// entity-level detail, so it is safe for unauthenticated polling.
func (s *Service) SemanticStatus(_ context.Context) result.IndexStatus {
	return s.vec.Status()
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embedding, nil
}

// verifyHits drops hits the entity store disowns. Without a lookup it is a no-op.
func (s *Service) verifyHits(ctx context.Context, hits []lexical.Hit, allowed access.Set) []lexical.Hit {
	if s.lookup == nil {
		return hits
	}
	out := hits[:0:0]
	for _, h := range hits {
		if s.consistent(ctx, h.Entity, allowed) {
			out = append(out, h)
		}
	}
	return out
}

func (s *Service) verifyEntities(ctx context.Context, es []entity.Entity, allowed access.Set) []entity.Entity {
	if s.lookup == nil {
		return es
	}
	out := es[:0:0]
	for _, e := range es {
		if s.consistent(ctx, e, allowed) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Service) consistent(ctx context.Context, indexed entity.Entity, allowed access.Set) bool {
	cur, ok := s.lookup.Get(indexed.ID())
	switch {
	case !ok:
		s.violation(ctx, indexed.ID(), "entity deleted")
		return false
	case !allowed.Allows(cur.Visibility()):
		s.violation(ctx, indexed.ID(), "visibility changed")
		return false
	}
	return true
}

func (s *Service) violation(ctx context.Context, id, reason string) {
	metrics.IndexConsistencyViolations.Inc()
	s.log(ctx).Warn("Dropping stale index entry",
		zap.String("entity_id", id),
		zap.String("reason", reason),
		zap.Error(domain.ErrConsistencyViolation),
	)
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

func visibleTo(allowed access.Set) lexical.Predicate {
	return func(e entity.Entity) bool { return allowed.Allows(e.Visibility()) }
}

func paginate(rs []result.Result, offset, limit int) []result.Result {
	if offset >= len(rs) {
		return []result.Result{}
	}
	end := min(offset+limit, len(rs))
	return rs[offset:end]
}

func observe(m mode.Mode, start time.Time, total int, err error) {
	metrics.SearchDuration.WithLabelValues(string(m)).Observe(time.Since(start).Seconds())
	metrics.SearchRequestsTotal.WithLabelValues(string(m), outcome(total, err)).Inc()
	if err == nil {
		metrics.SearchResults.WithLabelValues(string(m)).Observe(float64(total))
	}
}

func outcome(total int, err error) string {
	switch {
	case err == nil && total == 0:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
