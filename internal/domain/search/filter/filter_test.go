package filter

import (
	"strings"
	"testing"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func mustEntity(t *testing.T, kind, status string, tags []string, updated time.Time) entity.Entity {
	t.Helper()
	e, err := entity.New(entity.Params{
		ID: "e1", Type: kind, Status: status, TitleEN: "x", Tags: tags,
		Visibility: "public", CreatedAt: base.Add(-48 * time.Hour), UpdatedAt: updated,
	})
	if err != nil {
		t.Fatalf("entity.New: %v", err)
	}
	return e
}

func TestNew_InvertedDateRange(t *testing.T) {
	_, err := New("", "", nil, timePtr(base), timePtr(base.Add(-time.Hour)))
	if err == nil {
		t.Fatal("expected error for dateFrom > dateTo")
	}
	if !strings.Contains(err.Error(), "dateFrom") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_TooManyTags(t *testing.T) {
	tags := make([]string, MaxTags+1)
	for i := range tags {
		tags[i] = strings.Repeat("t", i+1)
	}
	if _, err := New("", "", tags, nil, nil); err == nil {
		t.Fatal("expected error for too many tags")
	}
}

func TestNew_NormalizesValues(t *testing.T) {
	f, err := New(" Project ", "ACTIVE", []string{" ML ", ""}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Type() != "project" || f.Status() != "active" {
		t.Errorf("Type/Status = %q/%q", f.Type(), f.Status())
	}
	if len(f.Tags()) != 1 || f.Tags()[0] != "ml" {
		t.Errorf("Tags() = %v", f.Tags())
	}
	if f.IsEmpty() {
		t.Error("IsEmpty() = true")
	}
	empty, _ := New("", "", nil, nil, nil)
	if !empty.IsEmpty() {
		t.Error("expected empty filter")
	}
}

func TestMatch(t *testing.T) {
	e := mustEntity(t, "project", "active", []string{"ml", "graphs"}, base)

	tests := []struct {
		name string
		f    func() (Filter, error)
		want bool
	}{
		{"empty", func() (Filter, error) { return New("", "", nil, nil, nil) }, true},
		{"type match", func() (Filter, error) { return New("project", "", nil, nil, nil) }, true},
		{"type mismatch", func() (Filter, error) { return New("note", "", nil, nil, nil) }, false},
		{"unknown type", func() (Filter, error) { return New("spaceship", "", nil, nil, nil) }, false},
		{"status mismatch", func() (Filter, error) { return New("", "archived", nil, nil, nil) }, false},
		{"all tags", func() (Filter, error) { return New("", "", []string{"ml", "GRAPHS"}, nil, nil) }, true},
		{"missing tag", func() (Filter, error) { return New("", "", []string{"ml", "quantum"}, nil, nil) }, false},
		{"inclusive from", func() (Filter, error) { return New("", "", nil, timePtr(base), nil) }, true},
		{"inclusive to", func() (Filter, error) { return New("", "", nil, nil, timePtr(base)) }, true},
		{"after range", func() (Filter, error) { return New("", "", nil, nil, timePtr(base.Add(-time.Second))) }, false},
		{"before range", func() (Filter, error) { return New("", "", nil, timePtr(base.Add(time.Second)), nil) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.f()
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := f.Match(e); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchExcept(t *testing.T) {
	e := mustEntity(t, "project", "active", []string{"ml"}, base)
	f, _ := New("note", "archived", []string{"quantum"}, nil, nil)

	if f.MatchExcept(e, DimType) {
		t.Error("status and tags still constrain when type is excluded")
	}

	f, _ = New("note", "", nil, nil, nil)
	if !f.MatchExcept(e, DimType) {
		t.Error("type constraint must be ignored for the type facet")
	}
	if f.MatchExcept(e, DimStatus) {
		t.Error("type constraint must apply to the status facet")
	}

	f, _ = New("", "", []string{"quantum"}, nil, nil)
	if !f.MatchExcept(e, DimTags) {
		t.Error("tag constraint must be ignored for the tags facet")
	}

	f, _ = New("note", "", nil, timePtr(base.Add(time.Hour)), nil)
	if f.MatchExcept(e, DimType) {
		t.Error("date range applies to every facet")
	}
}
