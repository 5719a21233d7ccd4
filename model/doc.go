// Package model defines the shared types exchanged between the fusego
// sub-indexes and the retriever.
//
//   - Metadata: opaque string-keyed bag, filtered by equality only
//   - SearchResult: fused hit with per-source scores and attribution
//   - Source: which sub-index produced a hit (vector, keyword, both)
package model
