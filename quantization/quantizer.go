// Package quantization provides lossy vector compression for
// memory-efficient storage: product quantization against trained
// per-segment codebooks and training-free scalar quantization.
package quantization

import (
	"errors"
	"fmt"
)

// ErrNotTrained is returned when a quantizer that requires training is
// used before Train has been called.
var ErrNotTrained = errors.New("quantizer not trained")

// ErrDimensionMismatch is returned when a vector does not match the
// dimension the quantizer was built for.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Quantizer defines the interface for vector quantization methods.
type Quantizer interface {
	// Train calibrates the quantizer on a set of vectors. Quantizers
	// without a training requirement return nil immediately.
	Train(vectors [][]float32) error

	// Encode compresses a float32 vector.
	Encode(v []float32) ([]byte, error)

	// Decode reconstructs an approximate float32 vector.
	Decode(b []byte) ([]float32, error)

	// CompressionRatio returns the achieved bytes-in / bytes-out ratio.
	CompressionRatio() float64
}
