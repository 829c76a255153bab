package text

import "testing"

func TestTokenizeSimple(t *testing.T) {
	tokens := Tokenize(Simple, "The Quick Brown Fox!")
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].Term != "the" {
		t.Errorf("expected lowercase term, got %q", tokens[0].Term)
	}
}

func TestTokenizeNGram(t *testing.T) {
	tokens := Tokenize(NGram, "abcd")
	want := []string{"abc", "bcd"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d ngrams, got %d", len(want), len(tokens))
	}
	for i, w := range want {
		if tokens[i].Term != w {
			t.Errorf("ngram %d: got %q want %q", i, tokens[i].Term, w)
		}
	}
}

func TestTokenizeWhitespacePreserving(t *testing.T) {
	tokens := Tokenize(WhitespacePreserving, "foo.bar baz,qux")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Term != "foo.bar" {
		t.Errorf("expected punctuation preserved, got %q", tokens[0].Term)
	}
}

func TestBM25RanksRelevantDocHigher(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(0, map[string]string{"body": "the quick brown fox jumps over the lazy dog"})
	ix.AddDocument(1, map[string]string{"body": "completely unrelated text about astronomy and space"})
	ix.AddDocument(2, map[string]string{"body": "fox fox fox fox fox"})

	hits := ix.Search("fox", 10, nil)
	if len(hits) < 2 {
		t.Fatalf("expected at least 2 hits, got %d", len(hits))
	}
	if hits[0].DocID != 2 {
		t.Errorf("expected doc 2 (densest in 'fox') to rank first, got %d", hits[0].DocID)
	}
	for _, h := range hits {
		if h.DocID == 1 {
			t.Error("unrelated doc 1 should not match 'fox' at all")
		}
	}
}

func TestBM25FFieldWeighting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldWeights = map[string]float64{"title": 3.0, "body": 1.0}
	ix := New(cfg)

	ix.AddDocument(0, map[string]string{"title": "vector database", "body": "some generic content here"})
	ix.AddDocument(1, map[string]string{"title": "generic content", "body": "vector database mentioned once"})

	hits := ix.Search("vector database", 10, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].DocID != 0 {
		t.Errorf("expected doc 0 (title match, higher weight) to rank first, got %d", hits[0].DocID)
	}
}

func TestPhraseMatch(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(0, map[string]string{"body": "the new york city skyline"})
	ix.AddDocument(1, map[string]string{"body": "new ideas in the york region"})

	if !ix.PhraseMatch(0, "body", []string{"new", "york"}) {
		t.Error("expected phrase match in doc 0")
	}
	if ix.PhraseMatch(1, "body", []string{"new", "york"}) {
		t.Error("did not expect phrase match in doc 1 (terms not adjacent)")
	}
}

func TestSoftDeleteExcludedFromSearch(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(0, map[string]string{"body": "alpha beta gamma"})
	ix.AddDocument(1, map[string]string{"body": "alpha beta gamma delta"})

	ix.SoftDelete(0)
	hits := ix.Search("alpha", 10, nil)
	for _, h := range hits {
		if h.DocID == 0 {
			t.Error("soft-deleted doc 0 should not appear in search results")
		}
	}

	ix.Restore(0)
	hits = ix.Search("alpha", 10, nil)
	found := false
	for _, h := range hits {
		if h.DocID == 0 {
			found = true
		}
	}
	if !found {
		t.Error("restored doc 0 should reappear in search results")
	}
}

func TestReindexReplacesFields(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument(0, map[string]string{"body": "alpha"})
	if ix.DocCount() != 1 {
		t.Fatalf("expected 1 doc, got %d", ix.DocCount())
	}

	ix.AddDocument(0, map[string]string{"body": "beta"})
	if ix.DocCount() != 1 {
		t.Fatalf("expected reindex to keep doc count at 1, got %d", ix.DocCount())
	}

	hits := ix.Search("alpha", 10, nil)
	if len(hits) != 0 {
		t.Error("expected old field content to no longer match after reindex")
	}
	hits = ix.Search("beta", 10, nil)
	if len(hits) != 1 {
		t.Error("expected new field content to match after reindex")
	}
}
