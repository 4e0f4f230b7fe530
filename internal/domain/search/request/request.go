package request

import (
	"math"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/filter"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in bytes.
	MaxQueryLength   = 4096
	DefaultTopK      = 10
	MaxTopK          = 100
	DefaultLimit     = 20
	MaxLimit         = 100
	DefaultThreshold = 0.5
	// MaxPage bounds offsets; later pages are always empty.
	MaxPage = 1 << 20
)

// Limits bounds pagination and top-K sizes.
type Limits struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultTopK      int
	MaxTopK          int
	DefaultThreshold float64
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:     DefaultLimit,
		MaxLimit:         MaxLimit,
		DefaultTopK:      DefaultTopK,
		MaxTopK:          MaxTopK,
		DefaultThreshold: DefaultThreshold,
	}
}

// Params carries raw caller input.
type Params struct {
	Query      string
	Type       string
	Status     string
	Visibility []string
	Tags       []string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
	Sort       string
	Threshold  *float64
}

// Request is a validated search query shared by both retrieval paths.
type Request struct {
	query      string
	filters    filter.Filter
	visibility []entity.Visibility
	page       int
	limit      int
	topK       int
	sortBy     mode.Sort
	threshold  float64
}

// New validates and normalizes search parameters.
//
// Page 0 becomes 1; negative page or limit is rejected. Limit 0 takes the
// default and values above the maximum are capped; the same limit, capped by
// MaxTopK, is the semantic k. Unknown sort keys fall back to relevance, unknown
// visibility strings are ignored. A missing or NaN threshold takes the default,
// and thresholds outside [-1, 1] are clamped.
func New(p Params, lim Limits) (Request, error) {
	if len(p.Query) > MaxQueryLength {
		return Request{}, domain.InvalidInputf("query too long (max %d bytes)", MaxQueryLength)
	}
	if p.Page < 0 {
		return Request{}, domain.InvalidInputf("page must be >= 1, got %d", p.Page)
	}
	if p.Limit < 0 {
		return Request{}, domain.InvalidInputf("limit must be >= 0, got %d", p.Limit)
	}

	f, err := filter.New(p.Type, p.Status, p.Tags, p.DateFrom, p.DateTo)
	if err != nil {
		return Request{}, domain.InvalidInputf("%s", err.Error())
	}

	page := p.Page
	if page == 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	limit := p.Limit
	if limit == 0 {
		limit = lim.DefaultLimit
	}
	if limit > lim.MaxLimit {
		limit = lim.MaxLimit
	}

	topK := p.Limit
	if topK == 0 {
		topK = lim.DefaultTopK
	}
	if topK > lim.MaxTopK {
		topK = lim.MaxTopK
	}

	var vis []entity.Visibility
	for _, s := range p.Visibility {
		if v, ok := entity.ParseVisibility(s); ok {
			vis = append(vis, v)
		}
	}

	threshold := lim.DefaultThreshold
	if p.Threshold != nil && !math.IsNaN(*p.Threshold) {
		threshold = *p.Threshold
	}
	threshold = ClampThreshold(threshold)

	return Request{
		query:      p.Query,
		filters:    f,
		visibility: vis,
		page:       page,
		limit:      limit,
		topK:       topK,
		sortBy:     mode.ParseSort(p.Sort),
		threshold:  threshold,
	}, nil
}

// ClampThreshold clamps a similarity threshold to [-1, 1].
func ClampThreshold(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Filters returns the structured filter.
func (r *Request) Filters() filter.Filter { return r.filters }

// Visibility returns the requested visibility classes before access control.
func (r *Request) Visibility() []entity.Visibility { return r.visibility }

// Page returns the 1-indexed page.
func (r *Request) Page() int { return r.page }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Offset returns the index of the first result on the page.
func (r *Request) Offset() int { return (r.page - 1) * r.limit }

// TopK returns the number of semantic neighbors to keep.
func (r *Request) TopK() int { return r.topK }

// Sort returns the keyword ordering.
func (r *Request) Sort() mode.Sort { return r.sortBy }

// Threshold returns the minimum cosine similarity.
func (r *Request) Threshold() float64 { return r.threshold }
