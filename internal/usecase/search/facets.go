package search

import (
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/filter"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
)

// aggregateFacets counts type, status and tag values over entities that pass
// every constraint of f except the one on the dimension being counted.
// Callers pass entities already restricted to the permitted visibilities.
func aggregateFacets(entities []entity.Entity, f filter.Filter) result.Facets {
	facets := make(result.Facets, len(filter.Dimensions))
	for _, dim := range filter.Dimensions {
		facets[string(dim)] = map[string]int{}
	}

	for _, e := range entities {
		if f.MatchExcept(e, filter.DimType) {
			facets.Add(string(filter.DimType), e.Type())
		}
		if f.MatchExcept(e, filter.DimStatus) {
			facets.Add(string(filter.DimStatus), e.Status())
		}
		if f.MatchExcept(e, filter.DimTags) {
			for _, t := range e.Tags() {
				facets.Add(string(filter.DimTags), t)
			}
		}
	}
	return facets
}
