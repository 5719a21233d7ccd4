package lexical

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/hupe1980/fusego/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatSatOnTheMat(t *testing.T) {
	idx := New() // k1=1.2, b=0.75

	idx.Add("d1", "the cat sat on the mat", nil)

	results := idx.Search("cat mat", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0))

	assert.Empty(t, idx.Search("dog", 10))
}

func TestAddRemoveRestoresState(t *testing.T) {
	idx := New()

	idx.Add("base", "quick brown fox", nil)

	docCount := idx.DocumentCount()
	totalLen := idx.TotalDocumentLength()
	termCount := idx.TermCount()

	idx.Add("d2", "lazy dog jumps over fence", nil)
	require.Equal(t, docCount+1, idx.DocumentCount())

	require.True(t, idx.Remove("d2"))

	assert.Equal(t, docCount, idx.DocumentCount())
	assert.Equal(t, totalLen, idx.TotalDocumentLength())
	assert.Equal(t, termCount, idx.TermCount())
	assert.Zero(t, idx.DocumentFrequency("lazy"))
}

func TestRemoveUnknownID(t *testing.T) {
	idx := New()
	assert.False(t, idx.Remove("ghost"))
}

func TestAddIsIdempotentUpdate(t *testing.T) {
	idx := New()

	idx.Add("d1", "alpha beta gamma", nil)
	idx.Add("d1", "delta epsilon", nil)

	assert.Equal(t, 1, idx.DocumentCount())
	assert.Equal(t, int64(2), idx.TotalDocumentLength())
	assert.Zero(t, idx.DocumentFrequency("alpha"))
	assert.Equal(t, 1, idx.DocumentFrequency("delta"))
}

func TestPostingEntryDroppedAtZeroFrequency(t *testing.T) {
	idx := New()

	idx.Add("d1", "singleton term here", nil)
	idx.Add("d2", "singleton elsewhere", nil)

	assert.Equal(t, 2, idx.DocumentFrequency("singleton"))

	idx.Remove("d1")
	assert.Equal(t, 1, idx.DocumentFrequency("singleton"))

	idx.Remove("d2")
	assert.Zero(t, idx.DocumentFrequency("singleton"))
	assert.Zero(t, idx.TermCount())
}

func TestScoreZeroForNonMatchingDocument(t *testing.T) {
	idx := New()

	idx.Add("match", "database index search", nil)
	idx.Add("other", "cooking recipes pasta", nil)

	results := idx.Search("database", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "match", results[0].ID)
}

func TestSearchRankingFavorsHigherTermFrequency(t *testing.T) {
	idx := New()

	idx.Add("once", "search engines process text", nil)
	idx.Add("twice", "search search relevance tuning", nil)

	results := idx.Search("search", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "twice", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchLimit(t *testing.T) {
	idx := New()

	idx.Add("d1", "shared token one", nil)
	idx.Add("d2", "shared token two", nil)
	idx.Add("d3", "shared token three", nil)

	results := idx.Search("shared", 2)
	assert.Len(t, results, 2)
}

func TestSearchMetadataFilter(t *testing.T) {
	idx := New()

	idx.Add("en", "hello world greeting", model.Metadata{"lang": "en"})
	idx.Add("de", "hello welt greeting", model.Metadata{"lang": "de"})

	results := idx.Search("greeting", 10, func(o *SearchOptions) {
		o.Filter = map[string]any{"lang": "de"}
	})
	require.Len(t, results, 1)
	assert.Equal(t, "de", results[0].ID)
}

func TestSearchEmptyQueryTokens(t *testing.T) {
	idx := New()
	idx.Add("d1", "content here", nil)

	// Stopwords and short tokens only: valid empty result, not an error.
	assert.Empty(t, idx.Search("the a of", 10))
	assert.Empty(t, idx.Search("", 10))
}

func TestConfigurableK1B(t *testing.T) {
	// b=0 disables length normalization: a long and a short document with
	// the same term frequency score identically.
	idx := New(func(o *Options) {
		o.K1 = 1.5
		o.B = 0
	})

	idx.Add("short", "token extra", nil)
	idx.Add("long", "token filler filler filler filler filler filler", nil)

	results := idx.Search("token", 10)
	require.Len(t, results, 2)
	assert.InDelta(t, float64(results[0].Score), float64(results[1].Score), 1e-6)
}

func TestTokenizer(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercase and split", "Hello, World!", []string{"hello", "world"}},
		{"short tokens dropped", "a I go ok", []string{"go", "ok"}},
		{"stopwords dropped", "the quick brown fox", []string{"quick", "brown", "fox"}},
		{"numbers kept", "error 404 found", []string{"error", "404", "found"}},
		{"mixed separators", "foo_bar.baz-qux", []string{"foo", "bar", "baz", "qux"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.in))
		})
	}
}

func TestTokenizerRuntimeStopwords(t *testing.T) {
	tok := NewTokenizer()

	tok.AddStopword("fox")
	assert.Equal(t, []string{"quick"}, tok.Tokenize("quick fox"))

	tok.RemoveStopword("fox")
	assert.Equal(t, []string{"quick", "fox"}, tok.Tokenize("quick fox"))

	assert.False(t, tok.IsStopword("fox"))
	assert.True(t, tok.IsStopword("the"))
}

func TestHandleRecycling(t *testing.T) {
	idx := New()

	idx.Add("d1", "first document", nil)
	idx.Add("d2", "second document", nil)
	idx.Remove("d1")
	idx.Add("d3", "third document", nil)

	results := idx.Search("document", 10)
	require.Len(t, results, 2)

	ids := []string{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []string{"d2", "d3"}, ids)
}

func BenchmarkSearch(b *testing.B) {
	vocab := []string{
		"engine", "index", "vector", "graph", "query", "score", "token",
		"cache", "layer", "merge", "rank", "batch", "store", "shard",
	}

	idx := New()
	rng := rand.New(rand.NewSource(17))

	for i := 0; i < 5000; i++ {
		words := make([]string, 12)
		for j := range words {
			words[j] = vocab[rng.Intn(len(vocab))]
		}
		idx.Add(fmt.Sprintf("doc-%d", i), strings.Join(words, " "), nil)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		idx.Search("vector graph cache", 10)
	}
}
