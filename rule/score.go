package rule

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Score weights.
const (
	WholeWordPoints     = 10.0
	SubstringPoints     = 5.0
	MaxRecencyBonus     = 10.0
	recencyHalfLifeDays = 1.0
)

// KeywordMatch describes how one keyword matched.
type KeywordMatch struct {
	Keyword   string
	WholeWord bool
}

// MatchKeywords returns each keyword that occurs in text, case-insensitively.
func MatchKeywords(keywords []string, text string) []KeywordMatch {
	lowered := strings.ToLower(text)

	var out []KeywordMatch
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" || !strings.Contains(lowered, k) {
			continue
		}
		out = append(out, KeywordMatch{Keyword: kw, WholeWord: containsWord(lowered, k)})
	}
	return out
}

// KeywordScore sums the per-keyword points.
func KeywordScore(matches []KeywordMatch) float64 {
	var s float64
	for _, m := range matches {
		if m.WholeWord {
			s += WholeWordPoints
		} else {
			s += SubstringPoints
		}
	}
	return s
}

// RecencyBonus decays from MaxRecencyBonus toward zero with the rule's age in days.
func RecencyBonus(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return MaxRecencyBonus * recencyHalfLifeDays / (recencyHalfLifeDays + days)
}

// containsWord reports whether word occurs in s bounded by non-alphanumeric
// runes or the string edges.
func containsWord(s, word string) bool {
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
