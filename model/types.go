package model

// Metadata is an opaque string-keyed bag of scalar values attached to a
// document or vector record. The engine never interprets it beyond
// equality-based filtering.
type Metadata map[string]any

// Source indicates which sub-index produced a search result.
type Source string

const (
	// SourceVector marks a result found only by the proximity graph.
	SourceVector Source = "vector"
	// SourceKeyword marks a result found only by the lexical index.
	SourceKeyword Source = "keyword"
	// SourceBoth marks a result found by both sub-indexes.
	SourceBoth Source = "both"
)

// SearchResult is a single ranked hit returned by the retriever.
type SearchResult struct {
	// ID is the caller-assigned document identifier.
	ID string

	// Score is the fused relevance score. After fusion it lies in [0,1].
	Score float32

	// VectorScore is the normalized similarity from the proximity graph,
	// zero if the vector side did not see this document.
	VectorScore float32

	// KeywordScore is the normalized BM25 score from the lexical index,
	// zero if the keyword side did not see this document.
	KeywordScore float32

	// Source records which sub-index (or both) contributed the result.
	Source Source

	// Metadata is the metadata stored with the document, if any.
	Metadata Metadata
}

// MatchesFilter reports whether md satisfies an equality-based filter.
// A nil or empty filter matches everything; a document with no metadata
// matches only the empty filter.
func MatchesFilter(md Metadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := md[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
