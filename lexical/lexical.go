// Package lexical implements an inverted index with BM25 ranking.
//
// Postings are Roaring bitmaps over dense internal handles, so candidate
// generation for a multi-term query is a bitmap union. Documents are keyed
// by caller-assigned string ids; updates are remove-then-reinsert.
//
// Writes must be serialized externally against reads; concurrent read-only
// searches are safe as long as no Add or Remove is interleaved.
package lexical

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/fusego/internal/math32"
	"github.com/hupe1980/fusego/model"
)

const (
	// DefaultK1 is the default BM25 term-frequency saturation parameter.
	DefaultK1 = 1.2

	// DefaultB is the default BM25 length-normalization parameter.
	DefaultB = 0.75
)

// Options represents the options for configuring the index.
type Options struct {
	// K1 is the BM25 term-frequency saturation parameter.
	K1 float64

	// B is the BM25 length-normalization parameter.
	B float64

	// Tokenizer overrides the default tokenizer.
	Tokenizer *Tokenizer
}

// DefaultOptions holds the default index options.
var DefaultOptions = Options{
	K1: DefaultK1,
	B:  DefaultB,
}

// Result is a single ranked lexical hit.
type Result struct {
	// ID is the caller-assigned document id.
	ID string

	// Score is the BM25 score, always > 0 for a returned hit.
	Score float32

	// Metadata is the metadata stored with the document, if any.
	Metadata model.Metadata
}

// SearchOptions controls a single search call.
type SearchOptions struct {
	// Filter rejects candidates whose metadata does not equal every
	// filter entry.
	Filter map[string]any
}

type document struct {
	handle    uint32
	termFreqs map[string]int
	length    int
	metadata  model.Metadata
}

// Index is an in-memory inverted index with BM25 scoring.
type Index struct {
	k1        float64
	b         float64
	tokenizer *Tokenizer

	docs       map[string]*document
	idByHandle []string
	freeList   []uint32

	postings    map[string]*roaring.Bitmap // term -> document handles
	totalLength int64
}

// New creates a new empty index.
func New(optFns ...func(o *Options)) *Index {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.K1 <= 0 {
		opts.K1 = DefaultK1
	}
	if opts.B < 0 || opts.B > 1 {
		opts.B = DefaultB
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = NewTokenizer()
	}

	return &Index{
		k1:        opts.K1,
		b:         opts.B,
		tokenizer: opts.Tokenizer,
		docs:      make(map[string]*document),
		postings:  make(map[string]*roaring.Bitmap),
	}
}

// Tokenizer returns the tokenizer so callers can tune stopwords at runtime.
func (idx *Index) Tokenizer() *Tokenizer { return idx.tokenizer }

// DocumentCount returns the number of indexed documents.
func (idx *Index) DocumentCount() int { return len(idx.docs) }

// TotalDocumentLength returns the sum of all document token counts.
func (idx *Index) TotalDocumentLength() int64 { return idx.totalLength }

// DocumentFrequency returns the number of documents containing term.
func (idx *Index) DocumentFrequency(term string) int {
	bm, ok := idx.postings[term]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// TermCount returns the number of distinct terms with live postings.
func (idx *Index) TermCount() int { return len(idx.postings) }

func (idx *Index) allocateHandle(id string) uint32 {
	if n := len(idx.freeList); n > 0 {
		h := idx.freeList[n-1]
		idx.freeList = idx.freeList[:n-1]
		idx.idByHandle[h] = id
		return h
	}
	idx.idByHandle = append(idx.idByHandle, id)
	return uint32(len(idx.idByHandle) - 1)
}

// Add indexes a document. If the id already exists, the old document is
// removed first, making Add an idempotent update.
func (idx *Index) Add(id, text string, metadata model.Metadata) {
	if _, ok := idx.docs[id]; ok {
		idx.Remove(id)
	}

	tokens := idx.tokenizer.Tokenize(text)

	termFreqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreqs[tok]++
	}

	doc := &document{
		handle:    idx.allocateHandle(id),
		termFreqs: termFreqs,
		length:    len(tokens),
		metadata:  metadata,
	}

	idx.docs[id] = doc
	idx.totalLength += int64(doc.length)

	for term := range termFreqs {
		bm, ok := idx.postings[term]
		if !ok {
			bm = roaring.New()
			idx.postings[term] = bm
		}
		bm.Add(doc.handle)
	}
}

// Remove deletes a document. It returns false if the id is unknown;
// absence is not an error.
func (idx *Index) Remove(id string) bool {
	doc, ok := idx.docs[id]
	if !ok {
		return false
	}

	for term := range doc.termFreqs {
		bm := idx.postings[term]
		bm.Remove(doc.handle)
		if bm.IsEmpty() {
			// Posting entries disappear once their frequency hits zero.
			delete(idx.postings, term)
		}
	}

	idx.totalLength -= int64(doc.length)
	idx.idByHandle[doc.handle] = ""
	idx.freeList = append(idx.freeList, doc.handle)
	delete(idx.docs, id)

	return true
}

// idf computes ln((N - n + 0.5)/(n + 0.5) + 1) for a document frequency n.
func (idx *Index) idf(df int) float64 {
	n := float64(df)
	bigN := float64(len(idx.docs))
	return float64(math32.Log(float32((bigN-n+0.5)/(n+0.5) + 1)))
}

// Search scores the union of postings for all query terms and returns up
// to limit results sorted by descending BM25 score. No matching term
// yields an empty result, not an error.
func (idx *Index) Search(query string, limit int, optFns ...func(o *SearchOptions)) []Result {
	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if limit <= 0 || len(idx.docs) == 0 {
		return nil
	}

	tokens := idx.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	// Distinct query terms with live postings.
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	bitmaps := make([]*roaring.Bitmap, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		if bm, ok := idx.postings[tok]; ok {
			terms = append(terms, tok)
			bitmaps = append(bitmaps, bm)
		}
	}
	if len(bitmaps) == 0 {
		return nil
	}

	candidates := roaring.FastOr(bitmaps...)
	avgdl := float64(idx.totalLength) / float64(len(idx.docs))

	results := make([]Result, 0, candidates.GetCardinality())

	it := candidates.Iterator()
	for it.HasNext() {
		handle := it.Next()
		doc := idx.docs[idx.idByHandle[handle]]

		if !model.MatchesFilter(doc.metadata, opts.Filter) {
			continue
		}

		var score float64
		for _, term := range terms {
			tf := float64(doc.termFreqs[term])
			if tf == 0 {
				continue
			}
			idf := idx.idf(idx.DocumentFrequency(term))
			norm := 1 - idx.b + idx.b*float64(doc.length)/avgdl
			score += idf * (tf * (idx.k1 + 1)) / (tf + idx.k1*norm)
		}

		if score <= 0 {
			continue
		}

		results = append(results, Result{
			ID:       idx.idByHandle[handle],
			Score:    float32(score),
			Metadata: doc.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results
}
