package search

import (
	"testing"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/filter"
)

func TestAggregateFacets(t *testing.T) {
	es := []entity.Entity{
		mkEntity(t, entity.Params{ID: "a", Type: "project", Status: "active", TitleEN: "a", Tags: []string{"x", "y"}}),
		mkEntity(t, entity.Params{ID: "b", Type: "project", Status: "draft", TitleEN: "b", Tags: []string{"x"}}),
		mkEntity(t, entity.Params{ID: "c", Type: "note", Status: "active", TitleEN: "c", Tags: []string{"y"}}),
	}

	tests := []struct {
		name   string
		filter func() (filter.Filter, error)
		want   map[string]map[string]int
	}{
		{
			name:   "unfiltered",
			filter: func() (filter.Filter, error) { return filter.New("", "", nil, nil, nil) },
			want: map[string]map[string]int{
				"type":   {"project": 2, "note": 1},
				"status": {"active": 2, "draft": 1},
				"tags":   {"x": 2, "y": 2},
			},
		},
		{
			name:   "type constrained",
			filter: func() (filter.Filter, error) { return filter.New("note", "", nil, nil, nil) },
			want: map[string]map[string]int{
				"type":   {"project": 2, "note": 1},
				"status": {"active": 1},
				"tags":   {"y": 1},
			},
		},
		{
			name:   "tag constrained",
			filter: func() (filter.Filter, error) { return filter.New("", "", []string{"x"}, nil, nil) },
			want: map[string]map[string]int{
				"type":   {"project": 2},
				"status": {"active": 1, "draft": 1},
				"tags":   {"x": 2, "y": 2},
			},
		},
		{
			name: "date range applies to every dimension",
			filter: func() (filter.Filter, error) {
				from := t0.Add(time.Hour)
				return filter.New("", "", nil, &from, nil)
			},
			want: map[string]map[string]int{"type": {}, "status": {}, "tags": {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.filter()
			if err != nil {
				t.Fatalf("filter.New: %v", err)
			}
			got := aggregateFacets(es, f)
			for dim, want := range tt.want {
				if len(got[dim]) != len(want) {
					t.Fatalf("%s = %v, want %v", dim, got[dim], want)
				}
				for v, n := range want {
					if got[dim][v] != n {
						t.Errorf("%s[%s] = %d, want %d", dim, v, got[dim][v], n)
					}
				}
			}
		})
	}
}
