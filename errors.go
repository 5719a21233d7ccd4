package fusego

import (
	"errors"
	"fmt"

	"github.com/hupe1980/fusego/hnsw"
)

var (
	// ErrInvalidLimit is returned when a search limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrEmptyQuery is returned when a query carries neither text nor a
	// vector.
	ErrEmptyQuery = errors.New("query must carry text or a vector")

	// ErrNoEmbedder is returned when a text query needs a vector but no
	// embedder was configured.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrInvalidID is returned when a document id is empty.
	ErrInvalidID = errors.New("document id must not be empty")

	// ErrEmptyDocument is returned when a document carries neither text
	// nor a vector.
	ErrEmptyDocument = errors.New("document must carry text or a vector")
)

// ErrUnknownFusionMethod indicates a fusion method the retriever does not
// implement. This is a configuration error, not a runtime condition.
type ErrUnknownFusionMethod struct {
	Method FusionMethod
}

func (e *ErrUnknownFusionMethod) Error() string {
	return fmt.Sprintf("unknown fusion method: %q", string(e.Method))
}

// ErrInvalidWeight indicates a negative fusion weight or a weight pair
// that sums to zero.
type ErrInvalidWeight struct {
	VectorWeight  float32
	KeywordWeight float32
}

func (e *ErrInvalidWeight) Error() string {
	return fmt.Sprintf("invalid fusion weights: vector=%v keyword=%v", e.VectorWeight, e.KeywordWeight)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError normalizes errors from the underlying indexes into the
// root error types.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
