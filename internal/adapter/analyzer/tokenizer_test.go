package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize_WithStemming(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("running dogs are playing")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}

	want := []string{"run", "dog", "plai"}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("token %d = %q, want %q (all: %v)", i, tokens[i], w, tokens)
		}
	}
}

func TestTokenizer_Tokenize_WithoutStemming(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("running dogs are playing")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}

	hasRunning := false
	for _, token := range tokens {
		if token == "running" {
			hasRunning = true
		}
	}
	if !hasRunning {
		t.Errorf("expected 'running' to remain unstemmed, got %v", tokens)
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("a I go to")
	for _, token := range tokens {
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("")
	if len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
}

func TestTokenizer_StopwordsOnly(t *testing.T) {
	tok := NewTokenizer(true)

	for _, text := range []string{"to be or not to be", "um yeah okay so really", "I do it"} {
		if tokens := tok.Tokenize(text); len(tokens) != 0 {
			t.Errorf("Tokenize(%q) = %v, want no terms", text, tokens)
		}
		if words := tok.Words(text); len(words) == 0 {
			t.Errorf("Words(%q) returned nothing", text)
		}
	}
}

func TestTokenizer_Words(t *testing.T) {
	tok := NewTokenizer(true)

	words := tok.Words("I Do It, don't")
	want := []string{"i", "do", "it", "dont"}
	if len(words) != len(want) {
		t.Fatalf("Words = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, words[i], want[i])
		}
	}
}

func TestTokenizer_NonASCIIUnstemmed(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("café naïveté")
	if len(tokens) != 2 || tokens[0] != "café" || tokens[1] != "naïveté" {
		t.Errorf("expected non-ASCII words unchanged, got %v", tokens)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello-world", 2},
		{"don't stop", 2},
		{"CamelCase", 1},
		{"123numbers456", 1},
		{"  ", 0},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
