// Package fusego is an embedded hybrid retrieval engine. It combines an
// approximate-nearest-neighbor vector index (HNSW), a BM25 lexical index
// and a configurable fusion layer (reciprocal rank, linear, max) behind a
// single ranked search, with an LRU result cache in front.
//
// Basic usage:
//
//	retriever, err := fusego.New(768, fusego.WithEmbedder(embed))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = retriever.Add(ctx, fusego.Document{
//	    ID:   "doc-1",
//	    Text: "the quick brown fox",
//	})
//
//	results, err := retriever.Search(ctx, fusego.Query{Text: "quick fox"}, 10)
//
// The subpackages hnsw, lexical, quantization and cache are usable on
// their own; persistence and blobstore move index snapshots to durable
// storage.
package fusego
