package text

import (
	"math"
	"regexp"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// quotedPhrase matches a "double quoted" run, used by Search to find
// literal adjacency sub-queries within an otherwise bag-of-words query.
var quotedPhrase = regexp.MustCompile(`"([^"]+)"`)

// FieldPosting is one term's occurrence record within a single field of a
// single document.
type FieldPosting struct {
	TermFreq  int
	Positions []int
}

// Config holds BM25F parameters and field weights.
type Config struct {
	Tokenizer    TokenizerKind
	K1           float64 // term frequency saturation, default 1.2
	B            float64 // length normalization, default 0.75
	FieldWeights map[string]float64

	// PhraseBoost multiplies a document's score when a "quoted phrase"
	// sub-query matches it as a contiguous run in at least one field.
	// Defaults to 2.0.
	PhraseBoost float64
}

// DefaultConfig returns k1=1.2, b=0.75, uniform field weight 1.0, phrase
// boost 2.0.
func DefaultConfig() Config {
	return Config{Tokenizer: Simple, K1: 1.2, B: 0.75, FieldWeights: map[string]float64{}, PhraseBoost: 2.0}
}

// Hit is a scored document from Search.
type Hit struct {
	DocID uint32
	Score float64
}

// Index is a multi-field positional inverted index with BM25F scoring,
// generalizing a single-field flat term->weight encoding into per-field
// postings that also retain term positions for phrase queries.
type Index struct {
	mu sync.RWMutex

	cfg Config

	// postings[term][docID][field] = positions/term-freq for that field.
	postings map[string]map[uint32]map[string]*FieldPosting

	docFreq map[string]int // number of live docs containing term, any field
	fieldLen map[uint32]map[string]int
	totalFieldLen map[string]float64
	totalDocs int
	removed *roaring.Bitmap
}

// New creates an empty index.
func New(cfg Config) *Index {
	if cfg.K1 == 0 {
		cfg.K1 = 1.2
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	if cfg.FieldWeights == nil {
		cfg.FieldWeights = map[string]float64{}
	}
	if cfg.PhraseBoost == 0 {
		cfg.PhraseBoost = 2.0
	}
	return &Index{
		cfg:           cfg,
		postings:      make(map[string]map[uint32]map[string]*FieldPosting),
		docFreq:       make(map[string]int),
		fieldLen:      make(map[uint32]map[string]int),
		totalFieldLen: make(map[string]float64),
		removed:       roaring.New(),
	}
}

func (ix *Index) fieldWeight(field string) float64 {
	if w, ok := ix.cfg.FieldWeights[field]; ok {
		return w
	}
	return 1.0
}

// AddDocument indexes (or re-indexes) docID's named text fields.
func (ix *Index) AddDocument(docID uint32, fields map[string]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.hasDocLocked(docID) {
		ix.removeDocLocked(docID)
	} else {
		ix.totalDocs++
	}
	ix.removed.Remove(docID)

	ix.fieldLen[docID] = make(map[string]int)
	seenTerm := make(map[string]bool)

	for field, text := range fields {
		tokens := Tokenize(ix.cfg.Tokenizer, text)
		if ix.cfg.Tokenizer == Simple || ix.cfg.Tokenizer == LanguageAware {
			tokens = filterStopWords(tokens)
		}
		ix.fieldLen[docID][field] = len(tokens)
		ix.totalFieldLen[field] += float64(len(tokens))

		perTerm := make(map[string]*FieldPosting)
		for _, tok := range tokens {
			fp, ok := perTerm[tok.Term]
			if !ok {
				fp = &FieldPosting{}
				perTerm[tok.Term] = fp
			}
			fp.TermFreq++
			fp.Positions = append(fp.Positions, tok.Position)
		}

		for term, fp := range perTerm {
			if ix.postings[term] == nil {
				ix.postings[term] = make(map[uint32]map[string]*FieldPosting)
			}
			if ix.postings[term][docID] == nil {
				ix.postings[term][docID] = make(map[string]*FieldPosting)
			}
			ix.postings[term][docID][field] = fp
			if !seenTerm[term] {
				seenTerm[term] = true
				ix.docFreq[term]++
			}
		}
	}
}

func (ix *Index) hasDocLocked(docID uint32) bool {
	_, ok := ix.fieldLen[docID]
	return ok
}

// removeDocLocked undoes AddDocument's bookkeeping for docID without
// touching totalDocs (the caller decides whether this is a reindex or a
// deletion).
func (ix *Index) removeDocLocked(docID uint32) {
	for field, length := range ix.fieldLen[docID] {
		ix.totalFieldLen[field] -= float64(length)
	}
	for term, byDoc := range ix.postings {
		if _, ok := byDoc[docID]; ok {
			delete(byDoc, docID)
			ix.docFreq[term]--
			if ix.docFreq[term] <= 0 {
				delete(ix.docFreq, term)
			}
		}
	}
	delete(ix.fieldLen, docID)
}

// Delete removes docID from the index entirely.
func (ix *Index) Delete(docID uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.hasDocLocked(docID) {
		return
	}
	ix.removeDocLocked(docID)
	ix.removed.Remove(docID)
	ix.totalDocs--
}

// SoftDelete marks docID as tombstoned: its postings remain so IDF/avgLen
// stay stable, but it is excluded from Search results.
func (ix *Index) SoftDelete(docID uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removed.Add(docID)
}

// Restore clears the tombstone set by SoftDelete.
func (ix *Index) Restore(docID uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removed.Remove(docID)
}

func (ix *Index) avgFieldLen(field string) float64 {
	if ix.totalDocs == 0 {
		return 0
	}
	return ix.totalFieldLen[field] / float64(ix.totalDocs)
}

func (ix *Index) idf(term string) float64 {
	df := float64(ix.docFreq[term])
	n := float64(ix.totalDocs)
	if df == 0 {
		return 0
	}
	v := math.Log((n-df+0.5)/(df+0.5) + 1)
	if v < 0 {
		v = 0
	}
	return v
}

// Search runs BM25F scoring for the given query terms against every field,
// returning up to k live documents, highest score first. accept, if
// non-nil, additionally gates which documents are eligible.
func (ix *Index) Search(query string, k int, accept func(uint32) bool) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tokens := Tokenize(ix.cfg.Tokenizer, query)
	if ix.cfg.Tokenizer == Simple || ix.cfg.Tokenizer == LanguageAware {
		tokens = filterStopWords(tokens)
	}
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var terms []string
	for _, t := range tokens {
		if !seen[t.Term] {
			seen[t.Term] = true
			terms = append(terms, t.Term)
		}
	}

	scores := make(map[uint32]float64)
	for _, term := range terms {
		byDoc, ok := ix.postings[term]
		if !ok {
			continue
		}
		idf := ix.idf(term)
		if idf <= 0 {
			continue
		}
		for docID, fields := range byDoc {
			if ix.removed.Contains(docID) {
				continue
			}
			if accept != nil && !accept(docID) {
				continue
			}
			pseudoTF := 0.0
			for field, fp := range fields {
				w := ix.fieldWeight(field)
				avgLen := ix.avgFieldLen(field)
				norm := 1 - ix.cfg.B + ix.cfg.B*float64(ix.fieldLen[docID][field])/maxFloat(avgLen, 1)
				pseudoTF += w * float64(fp.TermFreq) / norm
			}
			score := idf * (pseudoTF * (ix.cfg.K1 + 1)) / (pseudoTF + ix.cfg.K1)
			scores[docID] += score
		}
	}

	phrases := ix.extractPhraseTermsLocked(query)
	if len(phrases) > 0 {
		for docID := range scores {
			if ix.anyPhraseMatchesLocked(docID, phrases) {
				scores[docID] *= ix.cfg.PhraseBoost
			}
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// extractPhraseTermsLocked tokenizes each "quoted phrase" sub-query into an
// ordered term list, using the index's own tokenizer so phrase terms match
// the same normalization the postings were built with.
func (ix *Index) extractPhraseTermsLocked(query string) [][]string {
	matches := quotedPhrase.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return nil
	}
	phrases := make([][]string, 0, len(matches))
	for _, m := range matches {
		tokens := Tokenize(ix.cfg.Tokenizer, m[1])
		if len(tokens) < 2 {
			continue
		}
		terms := make([]string, len(tokens))
		for i, t := range tokens {
			terms[i] = t.Term
		}
		phrases = append(phrases, terms)
	}
	return phrases
}

// anyPhraseMatchesLocked reports whether docID matches any of the phrases
// as a contiguous run in at least one field.
func (ix *Index) anyPhraseMatchesLocked(docID uint32, phrases [][]string) bool {
	fields := ix.fieldLen[docID]
	for _, terms := range phrases {
		for field := range fields {
			if ix.phraseMatchLocked(docID, field, terms) {
				return true
			}
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// PhraseMatch reports whether docID's field contains the given terms as a
// contiguous phrase, verified via position+1 adjacency across postings.
func (ix *Index) PhraseMatch(docID uint32, field string, terms []string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.phraseMatchLocked(docID, field, terms)
}

func (ix *Index) phraseMatchLocked(docID uint32, field string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	if ix.removed.Contains(docID) {
		return false
	}

	first, ok := ix.postings[terms[0]][docID][field]
	if !ok {
		return false
	}

	for _, startPos := range first.Positions {
		matched := true
		for offset := 1; offset < len(terms); offset++ {
			fp, ok := ix.postings[terms[offset]][docID][field]
			if !ok {
				matched = false
				break
			}
			if !containsPosition(fp.Positions, startPos+offset) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func containsPosition(positions []int, target int) bool {
	for _, p := range positions {
		if p == target {
			return true
		}
	}
	return false
}

// DocCount returns the number of currently indexed (non hard-deleted) docs.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.totalDocs
}
