package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

// MaxTags is the maximum number of tag conditions in one filter.
const MaxTags = 32

// Dimension names a facet dimension a filter can constrain.
type Dimension string

// Facet dimensions.
const (
	DimNone   Dimension = ""
	DimType   Dimension = "type"
	DimStatus Dimension = "status"
	DimTags   Dimension = "tags"
)

// Dimensions lists the faceted dimensions.
var Dimensions = []Dimension{DimType, DimStatus, DimTags}

// Filter is a conjunctive structured filter over entity metadata.
// Empty fields are unconstrained. All tags must be present.
// The date range applies to updated_at, bounds inclusive.
type Filter struct {
	kind     string
	status   string
	tags     []string
	dateFrom *time.Time
	dateTo   *time.Time
}

// New validates and creates a Filter.
func New(kind, status string, tags []string, dateFrom, dateTo *time.Time) (Filter, error) {
	if dateFrom != nil && dateTo != nil && dateFrom.After(*dateTo) {
		return Filter{}, fmt.Errorf("dateFrom must not be after dateTo")
	}
	var norm []string
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			norm = append(norm, t)
		}
	}
	if len(norm) > MaxTags {
		return Filter{}, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	return Filter{
		kind:     strings.ToLower(strings.TrimSpace(kind)),
		status:   strings.ToLower(strings.TrimSpace(status)),
		tags:     norm,
		dateFrom: dateFrom,
		dateTo:   dateTo,
	}, nil
}

// Type returns the type constraint.
func (f Filter) Type() string { return f.kind }

// Status returns the status constraint.
func (f Filter) Status() string { return f.status }

// Tags returns the required tags.
func (f Filter) Tags() []string { return f.tags }

// DateFrom returns the inclusive lower bound on updated_at.
func (f Filter) DateFrom() *time.Time { return f.dateFrom }

// DateTo returns the inclusive upper bound on updated_at.
func (f Filter) DateTo() *time.Time { return f.dateTo }

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.kind == "" && f.status == "" && len(f.tags) == 0 && f.dateFrom == nil && f.dateTo == nil
}

// Match reports whether e satisfies every constraint.
func (f Filter) Match(e entity.Entity) bool {
	return f.MatchExcept(e, DimNone)
}

// MatchExcept reports whether e satisfies every constraint except the one on dim.
func (f Filter) MatchExcept(e entity.Entity, dim Dimension) bool {
	if dim != DimType && f.kind != "" && e.Type() != f.kind {
		return false
	}
	if dim != DimStatus && f.status != "" && e.Status() != f.status {
		return false
	}
	if dim != DimTags {
		for _, t := range f.tags {
			if !e.HasTag(t) {
				return false
			}
		}
	}
	u := e.UpdatedAt()
	if f.dateFrom != nil && u.Before(*f.dateFrom) {
		return false
	}
	if f.dateTo != nil && u.After(*f.dateTo) {
		return false
	}
	return true
}
