package text_test

import (
	"testing"

	"github.com/brianfoody/woodpecker-reading-app/internal/text"
)

func TestTokenize_Basic(t *testing.T) {
	t.Parallel()

	tokens := text.Tokenize("The cat sat.")
	want := []text.WordToken{
		{Raw: "The", Clean: "the", Index: 0},
		{Raw: "cat", Clean: "cat", Index: 1},
		{Raw: "sat.", Clean: "sat", Index: 2},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize(%q): got %d tokens, want %d", "The cat sat.", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok != want[i] {
			t.Errorf("Tokenize(%q)[%d] = %+v, want %+v", "The cat sat.", i, tok, want[i])
		}
	}
}

func TestTokenize_PunctuationSet(t *testing.T) {
	t.Parallel()

	// Pins the exact punctuation set: . , ! ? ; : ' " ( ) [ ] { }
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "period", in: "end.", want: "end"},
		{name: "comma", in: "well,", want: "well"},
		{name: "bang", in: "wow!", want: "wow"},
		{name: "question", in: "why?", want: "why"},
		{name: "semicolon", in: "so;", want: "so"},
		{name: "colon", in: "see:", want: "see"},
		{name: "apostrophe", in: "don't", want: "dont"},
		{name: "quotes", in: `"hello"`, want: "hello"},
		{name: "parens", in: "(aside)", want: "aside"},
		{name: "brackets", in: "[note]", want: "note"},
		{name: "braces", in: "{x}", want: "x"},
		{name: "hyphen kept", in: "well-read", want: "well-read"},
		{name: "uppercase folded", in: "HELLO", want: "hello"},
		{name: "non-ascii kept", in: "café!", want: "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := text.CleanWord(tt.in); got != tt.want {
				t.Errorf("CleanWord(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenize_DropsUnspeakableTokens(t *testing.T) {
	t.Parallel()

	// A lone hyphen, a bare quote run, and an emoji carry nothing to
	// synthesize and must not reach the cache.
	tokens := text.Tokenize(`the - "" 🦉 owl`)
	if len(tokens) != 2 {
		t.Fatalf("Tokenize: got %d tokens, want 2: %+v", len(tokens), tokens)
	}
	if tokens[0].Clean != "the" || tokens[1].Clean != "owl" {
		t.Errorf("Tokenize: got %q and %q, want \"the\" and \"owl\"", tokens[0].Clean, tokens[1].Clean)
	}
	if tokens[1].Index != 1 {
		t.Errorf("Tokenize: surviving token index = %d, want 1", tokens[1].Index)
	}
}

func TestTokenize_NeverEmptyClean(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"...",
		`'" ()`,
		"Once upon a time, in a deep green wood.",
		"line one\nline two\ttabbed",
	}
	for _, in := range inputs {
		for _, tok := range text.Tokenize(in) {
			if tok.Clean == "" {
				t.Errorf("Tokenize(%q): emitted token %q with empty Clean", in, tok.Raw)
			}
		}
	}
}

func TestTokenize_WhitespaceRuns(t *testing.T) {
	t.Parallel()

	tokens := text.Tokenize("one  two\t\tthree\nfour")
	if len(tokens) != 4 {
		t.Fatalf("Tokenize: got %d tokens, want 4", len(tokens))
	}
	for i, want := range []string{"one", "two", "three", "four"} {
		if tokens[i].Clean != want {
			t.Errorf("Tokenize[%d].Clean = %q, want %q", i, tokens[i].Clean, want)
		}
		if tokens[i].Index != i {
			t.Errorf("Tokenize[%d].Index = %d, want %d", i, tokens[i].Index, i)
		}
	}
}

func TestTokenize_Empty(t *testing.T) {
	t.Parallel()

	if got := text.Tokenize(""); got != nil {
		t.Errorf("Tokenize(\"\") = %v, want nil", got)
	}
	if got := text.Tokenize(" \n\t "); got != nil {
		t.Errorf("Tokenize(whitespace) = %v, want nil", got)
	}
}

func TestSplitParagraphs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "double newline splits",
			in:   "First paragraph.\n\nSecond paragraph.",
			want: []string{"First paragraph.", "Second paragraph."},
		},
		{
			name: "single newline does not split",
			in:   "one line\nanother line",
			want: []string{"one line\nanother line"},
		},
		{
			name: "many newlines are one break",
			in:   "a\n\n\n\nb",
			want: []string{"a", "b"},
		},
		{
			name: "windows line endings",
			in:   "a\r\n\r\nb",
			want: []string{"a", "b"},
		},
		{
			name: "blank-ish paragraphs dropped",
			in:   "a\n\n   \n\nb",
			want: []string{"a", "b"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := text.SplitParagraphs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitParagraphs(%q): got %d paragraphs %q, want %d", tt.in, len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitParagraphs(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
