package lexical

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/textnorm"
)

// BM25 parameters.
const (
	K1 = 1.2
	B  = 0.75
)

// MaxPrefixExpansions caps the vocabulary terms one prefix expands to.
const MaxPrefixExpansions = 128

// cancelCheckEvery is how many documents a scan visits between ctx checks.
const cancelCheckEvery = 256

// DefaultWeights are the per-field score multipliers.
var DefaultWeights = map[entity.Field]float64{
	entity.FieldTitleEN: 2.0,
	entity.FieldTitleZH: 2.0,
	entity.FieldTags:    1.5,
	entity.FieldBodyEN:  1.0,
	entity.FieldBodyZH:  1.0,
}

// Predicate selects the entities a query may see. It runs before scoring.
type Predicate func(entity.Entity) bool

// Hit is a scored lexical match.
type Hit struct {
	Entity        entity.Entity
	Score         float64
	MatchedFields []entity.Field
}

// document is the derived index entry of one entity. Immutable once built.
type document struct {
	entity  entity.Entity
	lengths map[entity.Field]int
	terms   map[string]map[entity.Field][]int // token -> field -> positions
}

// Index is an in-memory inverted index keyed by entity id.
// Readers may run concurrently; each writer swaps a whole entity entry
// under the write lock, so a reader never sees a half-replaced entity.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*document
	postings map[string]map[string]struct{} // token -> entity ids
	weights  map[entity.Field]float64

	onInconsistency func(id string)
}

// Option configures an Index.
type Option func(*Index)

// WithWeights overrides the per-field score multipliers.
func WithWeights(w map[entity.Field]float64) Option {
	return func(ix *Index) { ix.weights = w }
}

// WithInconsistencyHook is called for each posting that points at a missing entity.
func WithInconsistencyHook(fn func(id string)) Option {
	return func(ix *Index) { ix.onInconsistency = fn }
}

// New creates an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]struct{}),
		weights:  DefaultWeights,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Index replaces every entry for e.ID() with entries derived from its current text.
func (ix *Index) Index(e entity.Entity) {
	doc := build(e)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(e.ID())
	ix.docs[e.ID()] = doc
	for tok := range doc.terms {
		ids, ok := ix.postings[tok]
		if !ok {
			ids = make(map[string]struct{})
			ix.postings[tok] = ids
		}
		ids[e.ID()] = struct{}{}
	}
}

// Remove deletes every entry for id. Reports whether the entity was indexed.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(id)
}

func (ix *Index) removeLocked(id string) bool {
	old, ok := ix.docs[id]
	if !ok {
		return false
	}
	for tok := range old.terms {
		if ids := ix.postings[tok]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(ix.postings, tok)
			}
		}
	}
	delete(ix.docs, id)
	return true
}

// Get returns the indexed snapshot of an entity.
func (ix *Index) Get(id string) (entity.Entity, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.docs[id]
	if !ok {
		return entity.Entity{}, false
	}
	return d.entity, true
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Vocabulary returns the number of distinct tokens.
func (ix *Index) Vocabulary() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// Entities returns every indexed entity passing pre, ordered by id.
func (ix *Index) Entities(ctx context.Context, pre Predicate) ([]entity.Entity, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]entity.Entity, 0, len(ix.docs))
	n := 0
	for _, d := range ix.docs {
		if n++; n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if pre == nil || pre(d.entity) {
			out = append(out, d.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Search scores entities passing pre against q.
//
// Corpus statistics are computed over the entities passing pre only.
// Plain and prefix terms match with OR; every phrase must occur with adjacent
// positions inside one field. An empty query matches every entity passing pre
// with score 0. Hits are ordered by score desc, updated_at desc, id asc.
func (ix *Index) Search(ctx context.Context, q textnorm.Query, pre Predicate) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats, err := ix.corpusStats(ctx, pre)
	if err != nil {
		return nil, err
	}

	if q.IsEmpty() {
		hits := make([]Hit, 0, len(stats.visible))
		for _, d := range stats.visible {
			hits = append(hits, Hit{Entity: d.entity})
		}
		sortHits(hits)
		return hits, nil
	}

	scoring := ix.scoringTerms(q)
	candidates := ix.candidates(q, scoring, stats)

	hits := make([]Hit, 0, len(candidates))
	n := 0
	for _, d := range candidates {
		if n++; n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !matchesPhrases(d, q.Phrases) {
			continue
		}
		score, fields := ix.score(d, scoring, stats)
		hits = append(hits, Hit{Entity: d.entity, Score: score, MatchedFields: fields})
	}
	sortHits(hits)
	return hits, nil
}

// scoringTerms returns the unique tokens that contribute to the score.
func (ix *Index) scoringTerms(q textnorm.Query) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tok string) {
		if _, ok := seen[tok]; !ok {
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	for _, t := range q.Tokens() {
		add(t)
	}
	for _, p := range q.Prefixes {
		for _, t := range ix.expandPrefix(p) {
			add(t)
		}
	}
	return out
}

func (ix *Index) expandPrefix(p string) []string {
	var out []string
	for tok := range ix.postings {
		if strings.HasPrefix(tok, p) {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	if len(out) > MaxPrefixExpansions {
		out = out[:MaxPrefixExpansions]
	}
	return out
}

// candidates collects visible documents containing a required phrase token,
// or any scoring term when the query has no phrases.
func (ix *Index) candidates(q textnorm.Query, scoring []string, stats corpusStats) map[string]*document {
	terms := scoring
	if len(q.Phrases) > 0 {
		terms = q.Phrases[0][:1]
	}
	out := make(map[string]*document)
	for _, tok := range terms {
		for id := range ix.postings[tok] {
			d, ok := ix.docs[id]
			if !ok {
				if ix.onInconsistency != nil {
					ix.onInconsistency(id)
				}
				continue
			}
			if _, visible := stats.visible[id]; visible {
				out[id] = d
			}
		}
	}
	return out
}

func (ix *Index) score(d *document, terms []string, stats corpusStats) (float64, []entity.Field) {
	var (
		total   float64
		matched = make(map[entity.Field]bool)
	)
	for _, tok := range terms {
		perField, ok := d.terms[tok]
		if !ok {
			continue
		}
		idf := stats.idf(tok)
		// fixed field order keeps float sums identical across calls
		for _, f := range entity.AllFields {
			positions, ok := perField[f]
			if !ok {
				continue
			}
			matched[f] = true
			tf := float64(len(positions))
			norm := 1 - B
			if avg := stats.avgLen[f]; avg > 0 {
				norm += B * float64(d.lengths[f]) / avg
			}
			w := ix.weights[f]
			if w == 0 {
				w = 1
			}
			total += w * idf * tf * (K1 + 1) / (tf + K1*norm)
		}
	}
	fields := make([]entity.Field, 0, len(matched))
	for _, f := range entity.AllFields {
		if matched[f] {
			fields = append(fields, f)
		}
	}
	return total, fields
}

func matchesPhrases(d *document, phrases [][]string) bool {
	for _, p := range phrases {
		if !matchesPhrase(d, p) {
			return false
		}
	}
	return true
}

func matchesPhrase(d *document, phrase []string) bool {
	first, ok := d.terms[phrase[0]]
	if !ok {
		return false
	}
	for f, starts := range first {
	next:
		for _, start := range starts {
			for i := 1; i < len(phrase); i++ {
				if !hasPosition(d.terms[phrase[i]][f], start+i) {
					continue next
				}
			}
			return true
		}
	}
	return false
}

func hasPosition(positions []int, p int) bool {
	i := sort.SearchInts(positions, p)
	return i < len(positions) && positions[i] == p
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ua, ub := a.Entity.UpdatedAt(), b.Entity.UpdatedAt(); !ua.Equal(ub) {
			return ua.After(ub)
		}
		return a.Entity.ID() < b.Entity.ID()
	})
}

// build derives the index entry of e. Tokens of consecutive entries of the
// same field are separated by a position gap so phrases never span them.
func build(e entity.Entity) *document {
	d := &document{
		entity:  e,
		lengths: make(map[entity.Field]int),
		terms:   make(map[string]map[entity.Field][]int),
	}
	next := make(map[entity.Field]int)
	for _, ft := range e.Texts() {
		toks := textnorm.Normalize(ft.Text, ft.Field.Locale())
		base := next[ft.Field]
		for i, tok := range toks {
			perField, ok := d.terms[tok]
			if !ok {
				perField = make(map[entity.Field][]int)
				d.terms[tok] = perField
			}
			perField[ft.Field] = append(perField[ft.Field], base+i)
		}
		d.lengths[ft.Field] += len(toks)
		next[ft.Field] = base + len(toks) + 1
	}
	return d
}
