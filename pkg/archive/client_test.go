package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// slowQueryEmbedder embeds everything as a constant vector and blocks on "slow".
func slowQueryEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(ctx context.Context, text string) (EmbeddingResult, error) {
		if text == "slow" {
			<-ctx.Done()
			return EmbeddingResult{}, ctx.Err()
		}
		return EmbeddingResult{Embedding: []float32{0, 1}, TotalTokens: 2}, nil
	}}
}

// --- Fixture ---

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func corpus() []Entity {
	return []Entity{
		{ID: "gnn", Type: "project", Status: "active", Visibility: "public",
			TitleEN: "Graph neural networks", TitleZH: "图神经网络", Tags: []string{"ml"},
			CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)},
		{ID: "poetry", Type: "note", Status: "active", Visibility: "public",
			TitleEN: "Tang dynasty poetry", Tags: []string{"literature"},
			CreatedAt: t0, UpdatedAt: t0.Add(2 * time.Hour)},
		{ID: "secret", Type: "project", Status: "draft", Visibility: "private",
			TitleEN: "Graph neural networks for grants", Tags: []string{"ml"},
			CreatedAt: t0, UpdatedAt: t0.Add(3 * time.Hour)},
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	if err := c.Bootstrap(context.Background(), corpus()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return c
}

func resultIDs(rs []Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID
	}
	return out
}

// --- Tests ---

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown"}
	if _, err := createStore(cfg, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNew_InvalidDimensions(t *testing.T) {
	if _, err := New(context.Background(), WithHashEmbedder(0)); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	reg := prometheus.NewRegistry()
	e := &mockEmbedder{}

	for _, o := range []Option{
		WithRedis("localhost:6379", "pw"),
		WithEmbedder(e, "custom@1", 8),
		WithAsync(3),
		WithEmbedTimeout(time.Second),
		WithPrometheus(reg),
	} {
		o.apply(cfg)
	}

	if cfg.driver != "redis" || cfg.addrs[0] != "localhost:6379" || cfg.password != "pw" {
		t.Errorf("store options = %+v", cfg)
	}
	if cfg.embedder != e || cfg.modelVersion != "custom@1" || cfg.dimensions != 8 {
		t.Errorf("embedder options = %+v", cfg)
	}
	if !cfg.async || cfg.workers != 3 || cfg.embedTimeout != time.Second || cfg.metricsReg != reg {
		t.Errorf("runtime options = %+v", cfg)
	}

	WithBadger("/tmp/x").apply(cfg)
	if cfg.driver != "badger" || cfg.path != "/tmp/x" {
		t.Errorf("badger options = %+v", cfg)
	}
	WithHashEmbedder(16).apply(cfg)
	if cfg.embedder != nil || cfg.modelVersion != "hash::16" {
		t.Errorf("hash options = %+v", cfg)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	adapter := &embedderAdapter{inner: &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{Embedding: []float32{1, 2, 3}, PromptTokens: 5, TotalTokens: 10}, nil
		},
	}}
	res, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 3 || res.PromptTokens != 5 || res.TotalTokens != 10 {
		t.Errorf("result = %+v", res)
	}
	if err := adapter.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck without inner support: %v", err)
	}

	adapter = &embedderAdapter{inner: &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}}
	if _, err := adapter.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestKeywordSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	page, err := c.KeywordSearch(ctx, Query{Text: "graph"}, false)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if got := resultIDs(page.Results); len(got) != 1 || got[0] != "gnn" {
		t.Errorf("public results = %v, want [gnn]", got)
	}
	if page.Facets["type"]["project"] != 1 {
		t.Errorf("facets = %v", page.Facets)
	}

	page, err = c.KeywordSearch(ctx, Query{Text: "graph"}, true)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("authorized total = %d, want 2", page.Total)
	}

	page, err = c.KeywordSearch(ctx, Query{Text: "神经"}, false)
	if err != nil {
		t.Fatalf("KeywordSearch zh: %v", err)
	}
	if got := resultIDs(page.Results); len(got) != 1 || got[0] != "gnn" {
		t.Errorf("chinese results = %v, want [gnn]", got)
	}
}

func TestKeywordSearch_InvalidInput(t *testing.T) {
	c := newTestClient(t)

	_, err := c.KeywordSearch(context.Background(), Query{Text: "graph", Page: -1}, false)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSemanticSearch(t *testing.T) {
	c := newTestClient(t)
	threshold := 0.1

	page, err := c.SemanticSearch(context.Background(),
		Query{Text: "graph neural networks", Threshold: &threshold}, false)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(page.Results) == 0 || page.Results[0].ID != "gnn" {
		t.Fatalf("results = %v, want gnn first", resultIDs(page.Results))
	}
	for _, r := range page.Results {
		if r.ID == "secret" {
			t.Error("private entity returned to unauthorized caller")
		}
	}
	if page.EmbeddingTokens == 0 {
		t.Error("EmbeddingTokens not reported")
	}
}

func TestSemanticSearch_Timeout(t *testing.T) {
	c := newTestClient(t,
		WithEmbedder(slowQueryEmbedder(), "slow@1", 2),
		WithEmbedTimeout(20*time.Millisecond),
	)

	_, err := c.SemanticSearch(context.Background(), Query{Text: "slow"}, false)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("timeout must be retryable")
	}
}

func TestEntityLifecycle(t *testing.T) {
	c := newTestClient(t, WithAsync(2))
	ctx := context.Background()

	if err := c.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	st := c.SemanticStatus(ctx)
	if !st.Available || st.TotalEntities != 3 || st.EmbeddedCount != 3 {
		t.Fatalf("status after bootstrap = %+v", st)
	}

	e := corpus()[1]
	e.TitleEN = "Song dynasty poetry"
	e.UpdatedAt = e.UpdatedAt.Add(time.Hour)
	if err := c.OnEntityChanged(ctx, e); err != nil {
		t.Fatalf("OnEntityChanged: %v", err)
	}
	page, err := c.KeywordSearch(ctx, Query{Text: "song"}, false)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if got := resultIDs(page.Results); len(got) != 1 || got[0] != "poetry" {
		t.Errorf("updated entity not searchable at once: %v", got)
	}
	if err := c.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if st := c.SemanticStatus(ctx); st.PendingCount != 0 {
		t.Errorf("pending after drain = %d", st.PendingCount)
	}

	if err := c.OnEntityDeleted(ctx, "poetry"); err != nil {
		t.Fatalf("OnEntityDeleted: %v", err)
	}
	if st := c.SemanticStatus(ctx); st.TotalEntities != 2 {
		t.Errorf("total after delete = %d", st.TotalEntities)
	}

	n, err := c.ReembedStale(ctx)
	if err != nil || n != 0 {
		t.Errorf("ReembedStale = %d, %v", n, err)
	}
}

func TestOnEntityChanged_Invalid(t *testing.T) {
	c := newTestClient(t)

	err := c.OnEntityChanged(context.Background(), Entity{ID: "x", Type: "note", Status: "active", CreatedAt: t0})
	if !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)

	h := c.Health(context.Background())
	if h.Status != "ok" {
		t.Fatalf("health = %+v", h)
	}
	for _, k := range []string{"database", "embedding", "semantic_index"} {
		if h.Checks[k] != "ok" {
			t.Errorf("%s = %q", k, h.Checks[k])
		}
	}
}

func TestPrometheus_OperationsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, WithPrometheus(reg))

	_, _ = c.KeywordSearch(context.Background(), Query{Text: "graph"}, false)
	_, _ = c.KeywordSearch(context.Background(), Query{Page: -1}, false)

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.operations.WithLabelValues("keyword_search", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("keyword_search", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}

	// A second client on the same registry reuses the collectors.
	c2 := newTestClient(t, WithPrometheus(reg))
	if c2.obs.metrics.operations != m.operations {
		t.Error("collectors not reused across clients")
	}
}
