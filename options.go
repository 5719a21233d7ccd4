package fusego

import (
	"github.com/hupe1980/fusego/cache"
	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/lexical"
	"github.com/hupe1980/fusego/metric"
)

type options struct {
	distanceType     metric.DistanceType
	hnswOptions      []func(o *hnsw.Options)
	lexicalOptions   []func(o *lexical.Options)
	cacheOptions     []func(o *cache.Options)
	embedder         Embedder
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures Retriever constructor behavior.
type Option func(*options)

// WithDistanceType configures the distance function of the vector index.
// The default is cosine distance.
func WithDistanceType(dt metric.DistanceType) Option {
	return func(o *options) {
		o.distanceType = dt
	}
}

// WithHNSWOptions forwards options to the underlying vector index, e.g.
// M, EFConstruction or a fixed random seed.
func WithHNSWOptions(optFns ...func(o *hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

// WithLexicalOptions forwards options to the underlying lexical index,
// e.g. the BM25 parameters k1 and b or a custom tokenizer.
func WithLexicalOptions(optFns ...func(o *lexical.Options)) Option {
	return func(o *options) {
		o.lexicalOptions = append(o.lexicalOptions, optFns...)
	}
}

// WithCacheOptions forwards options to the result cache, e.g. maximum
// size, default TTL or disabling caching entirely.
func WithCacheOptions(optFns ...func(o *cache.Options)) Option {
	return func(o *options) {
		o.cacheOptions = append(o.cacheOptions, optFns...)
	}
}

// WithEmbedder configures a caller-supplied embedding function. When set,
// text-only queries and documents without vectors are embedded before
// hitting the vector index.
func WithEmbedder(embedder Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithLogger configures structured logging. The default logger discards
// all output.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}

		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. The default collector is a no-op.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}

		o.metricsCollector = collector
	}
}
