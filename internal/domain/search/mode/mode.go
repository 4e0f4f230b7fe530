package mode

// Mode is the retrieval path of a query.
type Mode string

// Search mode constants.
const (
	Keyword  Mode = "keyword"
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Keyword || m == Semantic
}

// Sort is the ordering of keyword results.
type Sort string

// Sort constants.
const (
	// Relevance orders by lexical score.
	Relevance Sort = "relevance"
	// Date orders by updated_at, newest first.
	Date Sort = "date"
)

// ParseSort maps a string to a Sort. Unknown values fall back to Relevance.
func ParseSort(s string) Sort {
	if Sort(s) == Date {
		return Date
	}
	return Relevance
}
