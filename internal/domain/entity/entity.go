package entity

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
)

var kindRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Known entity types. The enumeration is open; any lowercase identifier is accepted.
const (
	TypeProject     = "project"
	TypePublication = "publication"
	TypeExperiment  = "experiment"
	TypeDataset     = "dataset"
	TypeNote        = "note"
	TypeIdea        = "idea"
)

// Known lifecycle statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Visibility is the access classification of an entity.
type Visibility string

const (
	// Public entities are visible to every caller.
	Public Visibility = "public"
	// Private entities are visible to authorized callers only.
	Private Visibility = "private"
)

// ParseVisibility maps a string to a Visibility.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case Public:
		return Public, true
	case Private:
		return Private, true
	}
	return "", false
}

// MaxIDLength is the maximum entity identifier length.
const MaxIDLength = 256

// Params carries raw entity attributes from the entity store.
type Params struct {
	ID         string
	Type       string
	TitleEN    string
	TitleZH    string
	BodyEN     string
	BodyZH     string
	Tags       []string
	Status     string
	Visibility string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Entity is the unit of retrieval (immutable value object).
type Entity struct {
	id         string
	kind       string
	titleEN    string
	titleZH    string
	bodyEN     string
	bodyZH     string
	tags       []string
	status     string
	visibility Visibility
	createdAt  time.Time
	updatedAt  time.Time
}

// New validates and creates an Entity. Validation failures wrap domain.ErrInvalidEntity.
// Tags are trimmed, lowercased and de-duplicated. Empty visibility means private.
// A zero UpdatedAt defaults to CreatedAt.
func New(p Params) (Entity, error) {
	e, err := build(p)
	if err != nil {
		return Entity{}, fmt.Errorf("%w: %w", domain.ErrInvalidEntity, err)
	}
	return e, nil
}

func build(p Params) (Entity, error) {
	if p.ID == "" {
		return Entity{}, fmt.Errorf("entity ID is required")
	}
	if len(p.ID) > MaxIDLength {
		return Entity{}, fmt.Errorf("entity ID too long (max %d)", MaxIDLength)
	}
	for _, r := range p.ID {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return Entity{}, fmt.Errorf("entity ID must not contain whitespace or control characters")
		}
	}
	kind := strings.ToLower(strings.TrimSpace(p.Type))
	if !kindRegex.MatchString(kind) {
		return Entity{}, fmt.Errorf("entity type %q is invalid", p.Type)
	}
	status := strings.ToLower(strings.TrimSpace(p.Status))
	if !kindRegex.MatchString(status) {
		return Entity{}, fmt.Errorf("entity status %q is invalid", p.Status)
	}
	if strings.TrimSpace(p.TitleEN) == "" && strings.TrimSpace(p.TitleZH) == "" {
		return Entity{}, fmt.Errorf("at least one title is required")
	}

	vis := Private
	if p.Visibility != "" {
		v, ok := ParseVisibility(p.Visibility)
		if !ok {
			return Entity{}, fmt.Errorf("visibility must be %q or %q, got %q", Public, Private, p.Visibility)
		}
		vis = v
	}

	if p.CreatedAt.IsZero() {
		return Entity{}, fmt.Errorf("created_at is required")
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = p.CreatedAt
	}
	if updated.Before(p.CreatedAt) {
		return Entity{}, fmt.Errorf("updated_at must not precede created_at")
	}

	return Entity{
		id:         p.ID,
		kind:       kind,
		titleEN:    p.TitleEN,
		titleZH:    p.TitleZH,
		bodyEN:     p.BodyEN,
		bodyZH:     p.BodyZH,
		tags:       normalizeTags(p.Tags),
		status:     status,
		visibility: vis,
		createdAt:  p.CreatedAt.UTC(),
		updatedAt:  updated.UTC(),
	}, nil
}

// ID returns the entity identifier.
func (e Entity) ID() string { return e.id }

// Type returns the entity type.
func (e Entity) Type() string { return e.kind }

// TitleEN returns the English title.
func (e Entity) TitleEN() string { return e.titleEN }

// TitleZH returns the Chinese title.
func (e Entity) TitleZH() string { return e.titleZH }

// BodyEN returns the English body.
func (e Entity) BodyEN() string { return e.bodyEN }

// BodyZH returns the Chinese body.
func (e Entity) BodyZH() string { return e.bodyZH }

// Tags returns the normalized tag set in sorted order.
func (e Entity) Tags() []string { return e.tags }

// Status returns the lifecycle status.
func (e Entity) Status() string { return e.status }

// Visibility returns the access classification.
func (e Entity) Visibility() Visibility { return e.visibility }

// CreatedAt returns the creation time.
func (e Entity) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last modification time.
func (e Entity) UpdatedAt() time.Time { return e.updatedAt }

// HasTag reports whether the entity carries tag (case-insensitive).
func (e Entity) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	i := sort.SearchStrings(e.tags, tag)
	return i < len(e.tags) && e.tags[i] == tag
}

// Params returns the attributes the entity was built from.
func (e Entity) Params() Params {
	return Params{
		ID: e.id, Type: e.kind,
		TitleEN: e.titleEN, TitleZH: e.titleZH,
		BodyEN: e.bodyEN, BodyZH: e.bodyZH,
		Tags: append([]string(nil), e.tags...), Status: e.status,
		Visibility: string(e.visibility),
		CreatedAt:  e.createdAt, UpdatedAt: e.updatedAt,
	}
}

// EmbeddingText is the text handed to the embedding function: titles first, then bodies.
func (e Entity) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{e.titleEN, e.titleZH, e.bodyEN, e.bodyZH} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Observer receives entity store change notifications.
type Observer interface {
	OnEntityChanged(ctx context.Context, e Entity) error
	OnEntityDeleted(ctx context.Context, id string) error
}

// Lookup resolves the current state of an entity.
type Lookup interface {
	Get(id string) (Entity, bool)
}
