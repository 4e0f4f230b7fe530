package db

import "strings"

// EscapeGlob quotes the Redis SCAN MATCH metacharacters in s.
func EscapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchGlob reports whether key matches a SCAN MATCH pattern using the
// subset produced by this package: *, ? and backslash escapes. Unlike
// path.Match, * also spans '/'. Drivers without server-side matching use it.
func MatchGlob(pattern, key string) bool {
	p, k := []rune(pattern), []rune(key)
	pi, ki := 0, 0
	star, mark := -1, 0
	for ki < len(k) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, ki
			pi++
		case pi < len(p) && p[pi] == '\\' && pi+1 < len(p) && p[pi+1] == k[ki]:
			pi += 2
			ki++
		case pi < len(p) && (p[pi] == '?' || (p[pi] != '\\' && p[pi] == k[ki])):
			pi++
			ki++
		case star >= 0:
			pi = star + 1
			mark++
			ki = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
