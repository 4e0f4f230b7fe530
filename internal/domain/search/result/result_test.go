package result

import (
	"sort"
	"testing"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	r := New("p1", 0.95, t0, []entity.Field{entity.FieldTitleEN})

	if r.ID() != "p1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	if !r.UpdatedAt().Equal(t0) {
		t.Errorf("UpdatedAt() = %v", r.UpdatedAt())
	}
	if len(r.MatchedFields()) != 1 || r.MatchedFields()[0] != entity.FieldTitleEN {
		t.Errorf("MatchedFields() = %v", r.MatchedFields())
	}
}

func TestLess_Ordering(t *testing.T) {
	rs := []Result{
		New("b", 1.0, t0, nil),
		New("a", 1.0, t0, nil),
		New("c", 1.0, t0.Add(time.Hour), nil),
		New("d", 2.0, t0.Add(-time.Hour), nil),
	}
	sort.Slice(rs, func(i, j int) bool { return Less(rs[i], rs[j]) })

	want := []string{"d", "c", "a", "b"}
	for i, id := range want {
		if rs[i].ID() != id {
			t.Fatalf("position %d: got %q, want %q", i, rs[i].ID(), id)
		}
	}
}

func TestFacets(t *testing.T) {
	f := Facets{}
	f.Add("type", "project")
	f.Add("type", "project")
	f.Add("type", "note")

	if f["type"]["project"] != 2 {
		t.Errorf("project count = %d", f["type"]["project"])
	}
	if f.Sum("type") != 3 {
		t.Errorf("Sum(type) = %d", f.Sum("type"))
	}
	if f.Sum("tags") != 0 {
		t.Errorf("Sum(tags) = %d", f.Sum("tags"))
	}
}

func TestIndexStatus(t *testing.T) {
	s := IndexStatus{TotalEntities: 5, EmbeddedCount: 0, StaleCount: 2}
	if s.Available() {
		t.Error("Available() = true with no embeddings")
	}
	if s.Pending() != 5 {
		t.Errorf("Pending() = %d", s.Pending())
	}
	s.EmbeddedCount = 5
	if !s.Available() || s.Pending() != 0 {
		t.Errorf("Available=%v Pending=%d", s.Available(), s.Pending())
	}
}
