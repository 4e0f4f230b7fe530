package textnorm

import (
	"slices"
	"strings"
)

// Query is a parsed search string.
//
// Syntax: "quoted text" is a phrase that must appear with adjacent tokens,
// a trailing * marks a prefix term, and every other word is a plain term.
// Plain and prefix terms combine with OR; all phrases are required.
// An unbalanced quote extends the phrase to the end of the input.
type Query struct {
	Terms    []string
	Prefixes []string
	Phrases  [][]string
}

// IsEmpty reports whether the query has nothing to match on.
func (q Query) IsEmpty() bool {
	return len(q.Terms) == 0 && len(q.Prefixes) == 0 && len(q.Phrases) == 0
}

// Tokens returns every token the query mentions, phrases included.
func (q Query) Tokens() []string {
	out := append([]string(nil), q.Terms...)
	for _, p := range q.Phrases {
		out = append(out, p...)
	}
	return out
}

// ParseQuery parses raw search input written in locale.
func ParseQuery(raw, locale string) Query {
	var q Query
	seen := make(map[string]struct{})
	addTerm := func(tok string) {
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		q.Terms = append(q.Terms, tok)
	}

	rest := raw
	for rest != "" {
		before, after, found := strings.Cut(rest, `"`)
		parseBare(before, locale, addTerm, &q)
		if !found {
			break
		}
		phrase, tail, _ := strings.Cut(after, `"`)
		if toks := Normalize(phrase, locale); len(toks) > 0 {
			q.Phrases = append(q.Phrases, toks)
		}
		rest = tail
	}
	return q
}

func parseBare(s, locale string, addTerm func(string), q *Query) {
	for _, chunk := range strings.Fields(s) {
		prefix := strings.HasSuffix(chunk, "*")
		toks := Normalize(strings.TrimRight(chunk, "*"), locale)
		if len(toks) == 0 {
			continue
		}
		if prefix {
			last := toks[len(toks)-1]
			toks = toks[:len(toks)-1]
			if !slices.Contains(q.Prefixes, last) {
				q.Prefixes = append(q.Prefixes, last)
			}
		}
		for _, tok := range toks {
			addTerm(tok)
		}
	}
}
