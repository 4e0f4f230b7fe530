// Package textnorm turns raw text into canonical index tokens.
//
// Text is NFKC-normalized and lower-cased for its locale. Runs of letters,
// digits and combining marks form one token in space-delimited scripts.
// Han, Hiragana and Katakana runs have no word boundaries, so each run is
// emitted as its overlapping character bigrams; a run of one character is
// emitted as that character. Everything else separates tokens.
//
// Normalize is idempotent in token-set terms: normalizing the space-joined
// output of Normalize yields the same tokens. The token's index in the
// returned slice is its position for phrase matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxTokenRunes caps a single space-delimited token; longer runs are truncated.
const MaxTokenRunes = 64

// Normalize tokenizes text written in locale (a BCP 47 tag such as "en" or "zh").
// Empty or whitespace-only input yields an empty slice.
func Normalize(text, locale string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s := foldCase(norm.NFKC.String(text), locale)

	var (
		tokens []string
		word   []rune
		cjk    []rune
	)
	flushWord := func() {
		if len(word) > 0 {
			if len(word) > MaxTokenRunes {
				word = word[:MaxTokenRunes]
			}
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	flushCJK := func() {
		switch len(cjk) {
		case 0:
		case 1:
			tokens = append(tokens, string(cjk))
		default:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range s {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word = append(word, r)
		case unicode.Is(unicode.M, r) && len(word) > 0:
			word = append(word, r)
		case isApostrophe(r) && len(word) > 0:
			// elided inside words: "don't" -> "dont"
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()
	return tokens
}

// IsCJKToken reports whether tok was produced by CJK segmentation.
func IsCJKToken(tok string) bool {
	for _, r := range tok {
		return isCJK(r)
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

func foldCase(s, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	// Casers carry state and are not safe for concurrent use.
	return cases.Lower(tag).String(s)
}
