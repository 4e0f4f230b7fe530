package health

import (
	"context"
	"errors"
	"testing"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type mockIndex struct {
	st result.IndexStatus
}

func (m *mockIndex) Status() result.IndexStatus { return m.st }

type deadlineChecker struct {
	sawDeadline bool
}

func (d *deadlineChecker) HealthCheck(ctx context.Context) error {
	_, d.sawDeadline = ctx.Deadline()
	return nil
}

// --- Tests ---

func TestCheck(t *testing.T) {
	built := &mockIndex{st: result.IndexStatus{TotalEntities: 3, EmbeddedCount: 2}}
	unbuilt := &mockIndex{st: result.IndexStatus{TotalEntities: 3}}
	empty := &mockIndex{}

	tests := []struct {
		name      string
		db        error
		embedding EmbeddingChecker
		index     IndexStatuser
		status    Status
		checks    map[string]CheckResult
	}{
		{
			name:      "all healthy",
			embedding: &mockEmbeddingChecker{},
			index:     built,
			status:    Healthy,
			checks:    map[string]CheckResult{"database": CheckOK, "embedding": CheckOK, "semantic_index": CheckOK},
		},
		{
			name:      "database down",
			db:        errors.New("conn refused"),
			embedding: &mockEmbeddingChecker{},
			index:     built,
			status:    Degraded,
			checks:    map[string]CheckResult{"database": CheckError, "embedding": CheckOK, "semantic_index": CheckOK},
		},
		{
			name:      "embedding down",
			embedding: &mockEmbeddingChecker{err: errors.New("timeout")},
			index:     built,
			status:    Degraded,
			checks:    map[string]CheckResult{"database": CheckOK, "embedding": CheckError, "semantic_index": CheckOK},
		},
		{
			name:      "index not built",
			embedding: &mockEmbeddingChecker{},
			index:     unbuilt,
			status:    Degraded,
			checks:    map[string]CheckResult{"database": CheckOK, "embedding": CheckOK, "semantic_index": CheckUnavailable},
		},
		{
			name:   "empty corpus is healthy",
			index:  empty,
			status: Healthy,
			checks: map[string]CheckResult{"database": CheckOK, "semantic_index": CheckOK},
		},
		{
			name:   "database only",
			status: Healthy,
			checks: map[string]CheckResult{"database": CheckOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&mockDBPinger{err: tt.db}, tt.embedding, tt.index).Check(context.Background())

			if r.Status != tt.status {
				t.Errorf("status = %q, want %q", r.Status, tt.status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v, want %v", r.Checks, tt.checks)
			}
			for k, want := range tt.checks {
				if r.Checks[k] != want {
					t.Errorf("%s = %q, want %q", k, r.Checks[k], want)
				}
			}
		})
	}
}

func TestCheck_ProbesAreBounded(t *testing.T) {
	d := &deadlineChecker{}
	New(&mockDBPinger{}, d, nil).Check(context.Background())
	if !d.sawDeadline {
		t.Error("probe context has no deadline")
	}
}
