package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
	dbBadger "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/badger"
	dbMemory "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/memory"
	dbRedis "github.com/Eddie-Kan/research-archive-website-sub001/internal/db/redis"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/lexical"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/index/vector"
	embrepo "github.com/Eddie-Kan/research-archive-website-sub001/internal/repository/embedding"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/transport/hashembed"
	embeddinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/embedding"
	healthuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/health"
	indexinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/indexing"
	searchuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultEmbedTimeout     = 5 * time.Second
	defaultDimensions       = 256
)

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	KeywordSearch(ctx context.Context, req *request.Request, authorized bool) (result.Page, error)
	SemanticSearch(ctx context.Context, req *request.Request, authorized bool) (result.SemanticPage, error)
	SemanticStatus(ctx context.Context) result.IndexStatus
}

type indexingUseCase interface {
	entity.Observer
	Bootstrap(ctx context.Context, entities []entity.Entity) error
	ReembedStale(ctx context.Context) (int, error)
	Drain(ctx context.Context) error
	Close()
}

// Client is the embeddable archive search entry point.
type Client struct {
	store       db.Store
	searchSvc   searchUseCase
	indexingSvc indexingUseCase
	healthSvc   healthUseCase
	limits      request.Limits
	obs         *observer
}

// New creates a Client and connects to the configured store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory"}
	WithHashEmbedder(defaultDimensions).apply(cfg)
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.dimensions <= 0 {
		return nil, fmt.Errorf("archive: embedding dimensions must be positive, got %d", cfg.dimensions)
	}
	if cfg.modelVersion == "" {
		return nil, fmt.Errorf("archive: embedding model version required")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg, obs.logger)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("archive: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.New(), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: create redis store: %w", err)
		}
		return s, nil
	case "badger":
		s, err := dbBadger.Open(dbBadger.Config{Path: cfg.path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("archive: open badger store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := obs.logger

	var base domain.Embedder
	provider := "custom"
	if cfg.embedder != nil {
		base = &embedderAdapter{inner: cfg.embedder}
	} else {
		base = hashembed.New(cfg.dimensions)
		provider = "hash"
	}

	timeout := cfg.embedTimeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	embedder := embeddinguc.NewInstrumentedEmbedder(base, embeddinguc.Options{
		Provider:   provider,
		Model:      cfg.modelVersion,
		Dimensions: cfg.dimensions,
		Timeout:    timeout,
		Logger:     logger,
	})

	lex := lexical.New(lexical.WithInconsistencyHook(indexinguc.InconsistencyHook(logger)))
	vec := vector.New(cfg.modelVersion, cfg.dimensions)

	idx, err := indexinguc.New(lex, vec, embrepo.New(store, logger), embedder, indexinguc.Config{
		Async:          cfg.async,
		Workers:        cfg.workers,
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("archive: create indexer: %w", err)
	}

	search := searchuc.New(lex, vec, embedder,
		searchuc.WithLookup(lex),
		searchuc.WithLogger(logger),
	)

	var checker healthuc.EmbeddingChecker
	if hc, ok := base.(domain.HealthChecker); ok {
		checker = hc
	}

	return &Client{
		store:       store,
		searchSvc:   search,
		indexingSvc: idx,
		healthSvc:   healthuc.New(store, checker, vec),
		limits:      limitsFrom(cfg.limits),
		obs:         obs,
	}, nil
}

// Close stops embedding workers and releases the store.
func (c *Client) Close() {
	if c.indexingSvc != nil {
		c.indexingSvc.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Bootstrap indexes entities and restores persisted embeddings, then
// schedules embedding for every entity left without a fresh vector.
func (c *Client) Bootstrap(ctx context.Context, entities []Entity) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("bootstrap", start, err) }()

	es := make([]entity.Entity, 0, len(entities))
	for i := range entities {
		e, convErr := entityToDomain(&entities[i])
		if convErr != nil {
			return fmt.Errorf("bootstrap %s: %w", entities[i].ID, convErr)
		}
		es = append(es, e)
	}
	if err = c.indexingSvc.Bootstrap(ctx, es); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if _, err = c.indexingSvc.ReembedStale(ctx); err != nil {
		return fmt.Errorf("bootstrap reembed: %w", err)
	}
	return nil
}

// OnEntityChanged indexes a created or updated entity.
func (c *Client) OnEntityChanged(ctx context.Context, e Entity) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("entity_changed", start, err) }()

	de, err := entityToDomain(&e)
	if err != nil {
		return err
	}
	if err = c.indexingSvc.OnEntityChanged(ctx, de); err != nil {
		return fmt.Errorf("entity changed: %w", err)
	}
	return nil
}

// OnEntityDeleted removes an entity from both indexes.
func (c *Client) OnEntityDeleted(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("entity_deleted", start, err) }()

	if err = c.indexingSvc.OnEntityDeleted(ctx, id); err != nil {
		return fmt.Errorf("entity deleted: %w", err)
	}
	return nil
}

// ReembedStale schedules embedding for every entity without a fresh vector.
func (c *Client) ReembedStale(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reembed", start, err) }()

	n, err = c.indexingSvc.ReembedStale(ctx)
	if err != nil {
		return n, fmt.Errorf("reembed: %w", err)
	}
	return n, nil
}

// Drain waits for scheduled embedding jobs or for ctx to end.
func (c *Client) Drain(ctx context.Context) error {
	if err := c.indexingSvc.Drain(ctx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// KeywordSearch runs a BM25 query. Unauthorized callers only see public entities.
func (c *Client) KeywordSearch(ctx context.Context, q Query, authorized bool) (page Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("keyword_search", start, err) }()

	req, err := c.request(q)
	if err != nil {
		return Page{}, err
	}
	p, err := c.searchSvc.KeywordSearch(ctx, &req, authorized)
	if err != nil {
		return Page{}, fmt.Errorf("keyword search: %w", err)
	}
	return Page{
		Results: resultsFromDomain(p.Results),
		Total:   p.Total,
		Facets:  p.Facets,
		Page:    p.Page,
		Limit:   p.Limit,
	}, nil
}

// SemanticSearch ranks entities by embedding similarity to the query text.
// An index without embeddings yields an empty page, not an error.
func (c *Client) SemanticSearch(ctx context.Context, q Query, authorized bool) (page SemanticPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("semantic_search", start, err) }()

	req, err := c.request(q)
	if err != nil {
		return SemanticPage{}, err
	}
	ctx, usage := domain.NewContextWithUsage(ctx)
	p, err := c.searchSvc.SemanticSearch(ctx, &req, authorized)
	if err != nil {
		return SemanticPage{}, fmt.Errorf("semantic search: %w", err)
	}
	return SemanticPage{
		Results:         resultsFromDomain(p.Results),
		Total:           p.Total,
		EmbeddingTokens: usage.TotalTokens,
	}, nil
}

// SemanticStatus reports embedding coverage without touching entities.
func (c *Client) SemanticStatus(ctx context.Context) Status {
	st := c.searchSvc.SemanticStatus(ctx)
	return Status{
		Available:     st.Available(),
		TotalEntities: st.TotalEntities,
		EmbeddedCount: st.EmbeddedCount,
		StaleCount:    st.StaleCount,
		PendingCount:  st.Pending(),
		ModelVersion:  st.ModelVersion,
		Dimensions:    st.Dimensions,
	}
}

func (c *Client) request(q Query) (request.Request, error) {
	req, err := request.New(request.Params{
		Query:      q.Text,
		Type:       q.Type,
		Status:     q.Status,
		Visibility: q.Visibility,
		Tags:       q.Tags,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		Page:       q.Page,
		Limit:      q.Limit,
		Sort:       q.Sort,
		Threshold:  q.Threshold,
	}, c.limits)
	if err != nil {
		return request.Request{}, fmt.Errorf("archive: %w", err)
	}
	return req, nil
}

func limitsFrom(l Limits) request.Limits {
	out := request.DefaultLimits()
	if l.DefaultLimit > 0 {
		out.DefaultLimit = l.DefaultLimit
	}
	if l.MaxLimit > 0 {
		out.MaxLimit = l.MaxLimit
	}
	if l.DefaultTopK > 0 {
		out.DefaultTopK = l.DefaultTopK
	}
	if l.MaxTopK > 0 {
		out.MaxTopK = l.MaxTopK
	}
	if l.DefaultThreshold != 0 {
		out.DefaultThreshold = request.ClampThreshold(l.DefaultThreshold)
	}
	return out
}

func entityToDomain(e *Entity) (entity.Entity, error) {
	de, err := entity.New(entity.Params{
		ID:         e.ID,
		Type:       e.Type,
		TitleEN:    e.TitleEN,
		TitleZH:    e.TitleZH,
		BodyEN:     e.BodyEN,
		BodyZH:     e.BodyZH,
		Tags:       e.Tags,
		Status:     e.Status,
		Visibility: e.Visibility,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	})
	if err != nil {
		return entity.Entity{}, fmt.Errorf("archive: %w", err)
	}
	return de, nil
}

func resultsFromDomain(rs []result.Result) []Result {
	out := make([]Result, len(rs))
	for i := range rs {
		r := &rs[i]
		var fields []string
		for _, f := range r.MatchedFields() {
			fields = append(fields, string(f))
		}
		out[i] = Result{
			ID:            r.ID(),
			Score:         r.Score(),
			UpdatedAt:     r.UpdatedAt(),
			MatchedFields: fields,
		}
	}
	return out
}

// embedderAdapter bridges the public Embedder to domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embedding,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck forwards to the wrapped embedder when it supports checks.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
