package db

import "testing"

func TestEscapeGlob(t *testing.T) {
	if got := EscapeGlob(`a*b?c[d]\e`); got != `a\*b\?c\[d\]\\e` {
		t.Errorf("EscapeGlob = %q", got)
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"archive:emb:*", "archive:emb:v1:p1", true},
		{"archive:emb:*:p1", "archive:emb:v1:p1", true},
		{"archive:emb:*:p1", "archive:emb:v1:p2", false},
		{"archive:emb:*:" + EscapeGlob("a*"), "archive:emb:v1:a*", true},
		{"archive:emb:*:" + EscapeGlob("a*"), "archive:emb:v1:ab", false},
		{"archive:emb:*", "archive:emb:v1:a/b", true},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"*", "", true},
	}
	for _, tt := range tests {
		if got := MatchGlob(tt.pattern, tt.key); got != tt.want {
			t.Errorf("MatchGlob(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}
