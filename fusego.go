package fusego

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/fusego/cache"
	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/lexical"
	"github.com/hupe1980/fusego/metric"
	"github.com/hupe1980/fusego/model"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultVectorWeight is the default weight of the vector ranking.
	DefaultVectorWeight float32 = 0.7

	// DefaultKeywordWeight is the default weight of the keyword ranking.
	DefaultKeywordWeight float32 = 0.3

	// DefaultRRFK is the default rank constant for reciprocal rank fusion.
	DefaultRRFK = 60

	// maxCandidateLimit caps how many candidates each sub-search fetches.
	maxCandidateLimit = 1000

	// searchCategory prefixes cache keys; index mutations invalidate it.
	searchCategory = "search"
)

// Embedder produces a fixed-length vector for text. Embedding production
// is a caller-owned collaborator; the retriever only calls through it.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// Document is the unit of indexing. Either Text or Vector must be set;
// when Vector is missing and an Embedder is configured, Text is embedded.
type Document struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata model.Metadata
}

// Query carries the search input. Text drives the keyword ranking, Vector
// the vector ranking. A text-only query with a configured Embedder is
// embedded and searched on both.
type Query struct {
	Text   string
	Vector []float32
}

// SearchOptions configures a single search call.
type SearchOptions struct {
	// VectorWeight and KeywordWeight are normalized to sum to 1 before
	// fusion. A zero-weight source is skipped entirely.
	VectorWeight  float32
	KeywordWeight float32

	// Method selects the fusion algorithm.
	Method FusionMethod

	// RRFK is the rank constant for reciprocal rank fusion.
	RRFK int

	// Threshold removes results scoring below it after fusion.
	Threshold float32

	// Filter rejects documents whose metadata does not equal all given
	// key/value pairs.
	Filter map[string]any

	// EF overrides the beam width of the vector sub-search. Zero uses
	// the index default.
	EF int
}

// docEntry tracks how a document is spread across the two indexes.
type docEntry struct {
	handle    uint32
	hasVector bool
	hasText   bool
	metadata  model.Metadata
}

// Retriever combines a vector index and a lexical index behind a single
// ranked search, with a result cache in front.
//
// Writes (Add, AddBatch, Remove) must be externally serialized against
// each other and against reads. Concurrent read-only searches are safe.
type Retriever struct {
	dimension    int
	vectorIndex  *hnsw.Index
	lexicalIndex *lexical.Index
	resultCache  *cache.ResultCache
	distanceType metric.DistanceType
	embedder     Embedder
	logger       *Logger
	metrics      MetricsCollector

	docs     map[string]*docEntry
	byHandle map[uint32]string
}

// New creates a Retriever for vectors of the given dimension.
func New(dimension int, opts ...Option) (*Retriever, error) {
	o := options{
		distanceType:     metric.DistanceTypeCosine,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}

	for _, opt := range opts {
		opt(&o)
	}

	hnswOptions := append([]func(*hnsw.Options){func(ho *hnsw.Options) {
		ho.DistanceType = o.distanceType
	}}, o.hnswOptions...)

	vectorIndex, err := hnsw.New(dimension, hnswOptions...)
	if err != nil {
		return nil, err
	}

	return &Retriever{
		dimension:    dimension,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexical.New(o.lexicalOptions...),
		resultCache:  cache.New(o.cacheOptions...),
		distanceType: o.distanceType,
		embedder:     o.embedder,
		logger:       o.logger,
		metrics:      o.metricsCollector,
		docs:         make(map[string]*docEntry),
		byHandle:     make(map[uint32]string),
	}, nil
}

// VectorIndex exposes the underlying proximity graph, e.g. for snapshot
// export.
func (r *Retriever) VectorIndex() *hnsw.Index { return r.vectorIndex }

// LexicalIndex exposes the underlying lexical index.
func (r *Retriever) LexicalIndex() *lexical.Index { return r.lexicalIndex }

// Cache exposes the result cache, e.g. for stats.
func (r *Retriever) Cache() *cache.ResultCache { return r.resultCache }

// Len returns the number of indexed documents.
func (r *Retriever) Len() int { return len(r.docs) }

// Add indexes a document. Re-adding an existing id removes the old
// version first; there is no partial update.
func (r *Retriever) Add(ctx context.Context, doc Document) error {
	start := time.Now()

	err := r.add(ctx, doc)

	r.metrics.RecordAdd(time.Since(start), err)
	r.logger.LogAdd(ctx, doc.ID, err)

	return err
}

func (r *Retriever) add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return ErrInvalidID
	}

	if doc.Text == "" && doc.Vector == nil {
		return ErrEmptyDocument
	}

	vector := doc.Vector
	if vector == nil && r.embedder != nil {
		embedded, err := r.embedder(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document %q: %w", doc.ID, err)
		}

		vector = embedded
	}

	r.remove(doc.ID)

	entry := &docEntry{metadata: doc.Metadata}

	if vector != nil {
		handle, err := r.vectorIndex.Insert(vector)
		if err != nil {
			return translateError(err)
		}

		entry.handle = handle
		entry.hasVector = true
		r.byHandle[handle] = doc.ID
	}

	if doc.Text != "" {
		r.lexicalIndex.Add(doc.ID, doc.Text, doc.Metadata)
		entry.hasText = true
	}

	r.docs[doc.ID] = entry
	r.resultCache.InvalidateCategory(searchCategory)

	return nil
}

// AddBatch indexes documents strictly sequentially and stops at the first
// failure. There is no rollback: documents applied before the failure
// stay indexed. It returns the number applied.
func (r *Retriever) AddBatch(ctx context.Context, docs []Document) (int, error) {
	start := time.Now()

	var (
		applied int
		err     error
	)

	for i, doc := range docs {
		if err = r.add(ctx, doc); err != nil {
			err = fmt.Errorf("document %d (%q): %w", i, doc.ID, err)

			break
		}

		applied++
	}

	r.metrics.RecordBatchAdd(len(docs), applied, time.Since(start))
	r.logger.LogBatchAdd(ctx, len(docs), applied, err)

	return applied, err
}

// Remove deletes a document from both indexes. It reports whether the id
// was present; removing an unknown id is not an error.
func (r *Retriever) Remove(ctx context.Context, id string) bool {
	start := time.Now()

	found := r.remove(id)
	if found {
		r.resultCache.InvalidateCategory(searchCategory)
	}

	r.metrics.RecordRemove(time.Since(start), found)
	r.logger.LogRemove(ctx, id, found)

	return found
}

func (r *Retriever) remove(id string) bool {
	entry, ok := r.docs[id]
	if !ok {
		return false
	}

	if entry.hasVector {
		r.vectorIndex.Delete(entry.handle)
		delete(r.byHandle, entry.handle)
	}

	if entry.hasText {
		r.lexicalIndex.Remove(id)
	}

	delete(r.docs, id)

	return true
}

// Search returns the limit most relevant documents for the query, ranked
// by fused score. Results come from the cache when an identical query was
// answered since the last index mutation.
func (r *Retriever) Search(ctx context.Context, query Query, limit int, optFns ...func(o *SearchOptions)) ([]model.SearchResult, error) {
	start := time.Now()

	results, cacheHit, err := r.search(ctx, query, limit, optFns...)

	r.metrics.RecordSearch(limit, time.Since(start), cacheHit, err)
	r.logger.LogSearch(ctx, limit, len(results), cacheHit, err)

	return results, err
}

func (r *Retriever) search(ctx context.Context, query Query, limit int, optFns ...func(o *SearchOptions)) ([]model.SearchResult, bool, error) {
	opts := SearchOptions{
		VectorWeight:  DefaultVectorWeight,
		KeywordWeight: DefaultKeywordWeight,
		Method:        FusionRRF,
		RRFK:          DefaultRRFK,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if limit <= 0 {
		return nil, false, ErrInvalidLimit
	}

	if opts.VectorWeight < 0 || opts.KeywordWeight < 0 || opts.VectorWeight+opts.KeywordWeight == 0 {
		return nil, false, &ErrInvalidWeight{VectorWeight: opts.VectorWeight, KeywordWeight: opts.KeywordWeight}
	}

	switch opts.Method {
	case FusionRRF, FusionLinear, FusionMax:
	default:
		return nil, false, &ErrUnknownFusionMethod{Method: opts.Method}
	}

	vector := query.Vector
	if vector == nil && query.Text != "" && r.embedder != nil {
		embedded, err := r.embedder(ctx, query.Text)
		if err != nil {
			return nil, false, fmt.Errorf("embed query: %w", err)
		}

		vector = embedded
	}

	if vector == nil && query.Text == "" {
		return nil, false, ErrEmptyQuery
	}

	key := cache.NewKey(searchCategory, query.Text,
		vector, limit, opts.VectorWeight, opts.KeywordWeight, opts.Method, opts.RRFK, opts.Threshold, opts.Filter, opts.EF)

	if cached, ok := r.resultCache.Get(key); ok {
		return cached, true, nil
	}

	// Weights are normalized to sum to 1. A zero-weight source is
	// dropped so that weight pairs like (1, 0) degrade to the pure
	// single-source ranking.
	sum := opts.VectorWeight + opts.KeywordWeight
	vectorWeight := opts.VectorWeight / sum
	keywordWeight := opts.KeywordWeight / sum

	runVector := vector != nil && vectorWeight > 0
	runKeyword := query.Text != "" && keywordWeight > 0

	if !runVector && !runKeyword {
		// A pure-vector ranking of a text-only query needs an embedder;
		// a vector-only query cannot be ranked by the keyword source.
		if query.Text != "" {
			return nil, false, ErrNoEmbedder
		}

		return nil, false, ErrEmptyQuery
	}

	candidateLimit := 3 * limit
	if candidateLimit > maxCandidateLimit {
		candidateLimit = maxCandidateLimit
	}

	var (
		vectorResults  scoredList
		keywordResults scoredList
	)

	g, gctx := errgroup.WithContext(ctx)

	if runVector {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := r.searchVector(vector, candidateLimit, opts)
			if err != nil {
				return err
			}

			vectorResults = res

			return nil
		})
	}

	if runKeyword {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			keywordResults = r.searchKeyword(query.Text, candidateLimit, opts)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var results []model.SearchResult

	switch {
	case runVector && runKeyword:
		fused, err := fuse(opts.Method, vectorResults, keywordResults, fuseParams{
			vectorWeight:  vectorWeight,
			keywordWeight: keywordWeight,
			rrfK:          opts.RRFK,
		})
		if err != nil {
			return nil, false, err
		}

		results = fused
	case runVector:
		results = vectorResults
	default:
		results = keywordResults
	}

	results = applyThreshold(results, opts.Threshold)

	if len(results) > limit {
		results = results[:limit]
	}

	r.resultCache.Set(key, results)

	return results, false, nil
}

// searchVector runs the vector sub-search and converts distances into
// bounded similarity scores.
func (r *Retriever) searchVector(vector []float32, limit int, opts SearchOptions) (scoredList, error) {
	var filter func(id uint32) bool

	if len(opts.Filter) > 0 {
		filter = func(id uint32) bool {
			docID, ok := r.byHandle[id]
			if !ok {
				return false
			}

			return model.MatchesFilter(r.docs[docID].metadata, opts.Filter)
		}
	}

	raw, err := r.vectorIndex.Search(vector, limit, func(so *hnsw.SearchOptions) {
		so.EF = opts.EF
		so.Filter = filter
	})
	if err != nil {
		return nil, translateError(err)
	}

	results := make(scoredList, 0, len(raw))

	for _, item := range raw {
		docID, ok := r.byHandle[item.ID]
		if !ok {
			continue
		}

		similarity := r.similarity(item.Distance)

		results = append(results, model.SearchResult{
			ID:          docID,
			Score:       similarity,
			VectorScore: similarity,
			Source:      model.SourceVector,
			Metadata:    r.docs[docID].metadata,
		})
	}

	return results, nil
}

// searchKeyword runs the lexical sub-search and normalizes its scores by
// the batch maximum.
func (r *Retriever) searchKeyword(text string, limit int, opts SearchOptions) scoredList {
	raw := r.lexicalIndex.Search(text, limit, func(so *lexical.SearchOptions) {
		so.Filter = opts.Filter
	})

	results := make(scoredList, 0, len(raw))

	for _, item := range raw {
		results = append(results, model.SearchResult{
			ID:           item.ID,
			Score:        item.Score,
			KeywordScore: item.Score,
			Source:       model.SourceKeyword,
			Metadata:     item.Metadata,
		})
	}

	normalizeKeywordScores(results)

	return results
}

// similarity converts a distance into a bounded similarity. Cosine
// distance maps to 1-d; unbounded metrics map to 1/(1+d).
func (r *Retriever) similarity(distance float32) float32 {
	if r.distanceType == metric.DistanceTypeCosine {
		s := 1 - distance
		if s < 0 {
			return 0
		}
		if s > 1 {
			return 1
		}

		return s
	}

	return 1 / (1 + distance)
}

func applyThreshold(results []model.SearchResult, threshold float32) []model.SearchResult {
	if threshold <= 0 {
		return results
	}

	filtered := results[:0]

	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}

	return filtered
}
