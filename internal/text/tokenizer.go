// Package text tokenizes story text into word tokens for synthesis, caching,
// and alignment lookups.
//
// A single canonical punctuation set is used everywhere a word is cleaned:
// tokenizer output, word-cache keys, and alignment-span matching all go
// through [CleanWord]. Keeping one rule means a word cached under one key is
// always found again when the same word is looked up from a different code
// path.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

// punctuation is the canonical set stripped from words. It is a fixed ASCII
// set; hyphens and non-ASCII characters are deliberately not stripped, so
// "well-read" stays one word and accented words keep their letters.
const punctuation = `.,!?;:'"()[]{}`

// WordToken is one whitespace-delimited word of the source text.
type WordToken struct {
	// Raw is the word as typed, punctuation included.
	Raw string

	// Clean is the lowercased, punctuation-stripped form. It is the key used
	// for word-cache lookups and alignment-span matching, and is never empty
	// for an emitted token.
	Clean string

	// Index is the token's position in the emitted sequence, starting at 0.
	Index int
}

// paragraphBreak matches a run of two or more newlines, the paragraph
// boundary rule. Single newlines inside a paragraph are ordinary whitespace.
var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Tokenize splits text into word tokens in source order.
//
// Words are separated by runs of whitespace. Each word is cleaned with
// [CleanWord]; tokens whose cleaned form contains no letter or digit (a lone
// "-", an emoji, a bare punctuation run) are dropped, so Clean is never
// empty. Index numbers the tokens that survive.
//
// Tokenize never fails; text with no speakable words yields nil.
func Tokenize(text string) []WordToken {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	tokens := make([]WordToken, 0, len(fields))
	for _, raw := range fields {
		clean := CleanWord(raw)
		if !speakable(clean) {
			continue
		}
		tokens = append(tokens, WordToken{
			Raw:   raw,
			Clean: clean,
			Index: len(tokens),
		})
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// SplitParagraphs splits text into paragraphs on runs of two or more
// newlines. Leading/trailing whitespace is trimmed from each paragraph and
// empty paragraphs are dropped. Windows line endings are normalised first.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := paragraphBreak.Split(text, -1)

	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}
	return paragraphs
}

// CleanWord lowercases raw and strips every character of the canonical
// punctuation set, wherever it appears in the word. The result may be empty
// (e.g. for a bare quote mark); callers that need a speakable word must
// check for that, as [Tokenize] does.
func CleanWord(raw string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(raw))
}

// speakable reports whether clean contains at least one letter or digit.
// Tokens that fail this test carry nothing to synthesize or align.
func speakable(clean string) bool {
	for _, r := range clean {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
