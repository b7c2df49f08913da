package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// passageLimit caps quoted passages in synthesized responses.
const passageLimit = 500

// wordPattern keeps dotted and hyphenated names such as node.js, c++ and vue-router whole.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_][\p{L}\p{N}_.+#-]*`)

// apostrophes are removed before tokenising so "doesn't" stays one word.
var apostrophes = strings.NewReplacer("'", "", "\u2019", "")

// words returns the lowercased word tokens of text in order.
func words(text string) []string {
	matches := wordPattern.FindAllString(apostrophes.Replace(strings.ToLower(text)), -1)
	out := matches[:0]
	for _, m := range matches {
		if m = trimWord(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// trimWord drops trailing sentence punctuation from a token.
func trimWord(w string) string {
	return strings.TrimRight(w, ".-")
}

// stemSuffixes are stripped by stem, longest first.
var stemSuffixes = []string{"ing", "ed", "s"}

// stem strips one common English inflection so "fails", "failed" and
// "failing" compare equal. Short words are left alone.
func stem(w string) string {
	for _, suffix := range stemSuffixes {
		if len(w) > len(suffix)+2 && strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix)
		}
	}
	return w
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most limit runes, ending in "..." when cut.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRightFunc(string(runes[:limit]), func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
	return cut + "..."
}

// passage prepares quoted text for a response.
func passage(s string) string {
	return truncate(normalizeWhitespace(s), passageLimit)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
