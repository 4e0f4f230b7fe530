package result

// Facets maps a dimension name to value counts.
type Facets map[string]map[string]int

// Add increments the count of value in dim.
func (f Facets) Add(dim, value string) {
	m, ok := f[dim]
	if !ok {
		m = make(map[string]int)
		f[dim] = m
	}
	m[value]++
}

// Sum returns the total count across values of dim.
func (f Facets) Sum(dim string) int {
	n := 0
	for _, c := range f[dim] {
		n += c
	}
	return n
}

// Page is a keyword search response.
type Page struct {
	Results []Result
	Total   int
	Facets  Facets
	Page    int
	Limit   int
}

// SemanticPage is a semantic search response. Total is len(Results).
type SemanticPage struct {
	Results []Result
	Total   int
}

// IndexStatus summarizes the embedding index without entity-level detail.
type IndexStatus struct {
	TotalEntities int
	EmbeddedCount int
	StaleCount    int
	ModelVersion  string
	Dimensions    int
}

// Available reports whether at least one entity can be matched semantically.
func (s IndexStatus) Available() bool { return s.EmbeddedCount > 0 }

// Pending returns the number of tracked entities without a fresh embedding.
func (s IndexStatus) Pending() int {
	if n := s.TotalEntities - s.EmbeddedCount; n > 0 {
		return n
	}
	return 0
}
