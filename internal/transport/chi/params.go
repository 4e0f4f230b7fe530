package chi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
)

// searchParams holds the optional query parameters shared by both search routes.
type searchParams struct {
	Q          *string
	Type       *string
	Status     *string
	Visibility *[]string
	Tags       *[]string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       *int
	Limit      *int
	Sort       *string
	Threshold  *float64
}

type queryBinding struct {
	name string
	dest any
}

func (p *searchParams) bindings() []queryBinding {
	return []queryBinding{
		{"q", &p.Q},
		{"type", &p.Type},
		{"status", &p.Status},
		{"visibility", &p.Visibility},
		{"tags", &p.Tags},
		{"dateFrom", &p.DateFrom},
		{"dateTo", &p.DateTo},
		{"page", &p.Page},
		{"limit", &p.Limit},
		{"sort", &p.Sort},
		{"threshold", &p.Threshold},
	}
}

// bindSearchParams decodes the query string. Dates accept RFC 3339 or YYYY-MM-DD.
func bindSearchParams(r *http.Request) (searchParams, error) {
	var p searchParams
	q := r.URL.Query()
	for _, b := range p.bindings() {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return searchParams{}, fmt.Errorf("invalid format for parameter %s: %w", b.name, err)
		}
	}
	return p, nil
}

// toRequest validates bound parameters against lim.
func (p searchParams) toRequest(lim request.Limits) (request.Request, error) {
	return request.New(request.Params{
		Query:      deref(p.Q),
		Type:       deref(p.Type),
		Status:     deref(p.Status),
		Visibility: splitList(p.Visibility),
		Tags:       splitList(p.Tags),
		DateFrom:   p.DateFrom,
		DateTo:     p.DateTo,
		Page:       deref(p.Page),
		Limit:      deref(p.Limit),
		Sort:       deref(p.Sort),
		Threshold:  p.Threshold,
	}, lim)
}

// bindEntityID decodes the {id} path segment.
func bindEntityID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		return "", fmt.Errorf("invalid format for parameter id: %w", err)
	}
	return id, nil
}

// splitList accepts repeated parameters and comma-separated values alike.
func splitList(p *[]string) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, v := range *p {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
