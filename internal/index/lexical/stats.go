package lexical

import (
	"context"
	"math"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

// corpusStats holds BM25 statistics over the documents a query may see.
type corpusStats struct {
	visible map[string]*document
	avgLen  map[entity.Field]float64
	df      map[string]int
	index   *Index
}

func (ix *Index) corpusStats(ctx context.Context, pre Predicate) (corpusStats, error) {
	st := corpusStats{
		visible: make(map[string]*document, len(ix.docs)),
		avgLen:  make(map[entity.Field]float64),
		df:      make(map[string]int),
		index:   ix,
	}
	sums := make(map[entity.Field]int)
	n := 0
	for id, d := range ix.docs {
		if n++; n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return corpusStats{}, err
			}
		}
		if pre != nil && !pre(d.entity) {
			continue
		}
		st.visible[id] = d
		for f, l := range d.lengths {
			sums[f] += l
		}
	}
	if len(st.visible) > 0 {
		for f, s := range sums {
			st.avgLen[f] = float64(s) / float64(len(st.visible))
		}
	}
	return st, nil
}

// idf is the BM25 inverse document frequency of tok among visible documents.
func (st corpusStats) idf(tok string) float64 {
	df, ok := st.df[tok]
	if !ok {
		for id := range st.index.postings[tok] {
			if _, visible := st.visible[id]; visible {
				df++
			}
		}
		st.df[tok] = df
	}
	n := float64(len(st.visible))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}
