// Package text implements the lexical side of hybrid search (spec
// component C5): tokenization, a positional inverted index, and BM25F
// scoring. The IDF formula and k1/b parameter conventions are generalized
// from a single flat bag-of-terms sparse vector into a multi-field
// positional index that supports phrase queries.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TokenizerKind selects how raw text is split into terms.
type TokenizerKind int

const (
	// Simple lowercases and splits on non-letter/non-digit runes.
	Simple TokenizerKind = iota
	// LanguageAware additionally applies Unicode NFKC normalization so
	// visually/semantically equivalent code points collapse to one term.
	LanguageAware
	// WhitespacePreserving splits only on whitespace, keeping punctuation
	// attached to adjacent terms; useful for code or structured tokens.
	WhitespacePreserving
	// NGram emits character n-grams (default n=3) instead of whole words,
	// trading precision for tolerance to typos and partial matches.
	NGram
)

func (k TokenizerKind) String() string {
	switch k {
	case Simple:
		return "simple"
	case LanguageAware:
		return "language_aware"
	case WhitespacePreserving:
		return "whitespace_preserving"
	case NGram:
		return "ngram"
	default:
		return "unknown"
	}
}

// Token is a single term occurrence at a 0-based position within a field.
type Token struct {
	Term     string
	Position int
}

// Tokenize splits text per the given tokenizer kind, returning terms
// labelled with their positions (used for phrase matching).
func Tokenize(kind TokenizerKind, text string) []Token {
	switch kind {
	case LanguageAware:
		return tokenizeLanguageAware(text)
	case WhitespacePreserving:
		return tokenizeWhitespace(text)
	case NGram:
		return tokenizeNGram(text, 3)
	default:
		return tokenizeSimple(text)
	}
}

func tokenizeSimple(text string) []Token {
	text = strings.ToLower(text)
	var tokens []Token
	var sb strings.Builder
	pos := 0
	flush := func() {
		if sb.Len() > 0 {
			tokens = append(tokens, Token{Term: sb.String(), Position: pos})
			sb.Reset()
			pos++
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func tokenizeLanguageAware(text string) []Token {
	normalized := norm.NFKC.String(strings.ToLower(text))
	return tokenizeSimple(normalized)
}

func tokenizeWhitespace(text string) []Token {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{Term: f, Position: i}
	}
	return tokens
}

func tokenizeNGram(text string, n int) []Token {
	runes := []rune(strings.ToLower(text))
	if len(runes) < n {
		if len(runes) == 0 {
			return nil
		}
		return []Token{{Term: string(runes), Position: 0}}
	}
	tokens := make([]Token, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		tokens = append(tokens, Token{Term: string(runes[i : i+n]), Position: i})
	}
	return tokens
}

// stopWords matches common filler terms so they don't dominate scoring.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true,
}

// filterStopWords removes stop words from the given simple/language-aware
// token stream. N-gram and whitespace-preserving tokenization skip this:
// stop words are meaningless at the character-gram level and whitespace
// preservation is explicitly about keeping the literal text intact.
func filterStopWords(tokens []Token) []Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if !stopWords[t.Term] && len(t.Term) > 1 {
			out = append(out, t)
		}
	}
	return out
}
