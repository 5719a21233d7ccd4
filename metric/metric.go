// Package metric provides the distance functions used by the proximity
// graph index. The same function must be used for both build and query.
package metric

import (
	"fmt"

	"github.com/hupe1980/fusego/internal/math32"
)

// DistanceType selects the distance function for an index instance.
type DistanceType int

const (
	// DistanceTypeCosine is 1 - cosine similarity. Bounded to [0,2].
	DistanceTypeCosine DistanceType = iota
	// DistanceTypeEuclidean is the L2 distance.
	DistanceTypeEuclidean
	// DistanceTypeManhattan is the L1 distance.
	DistanceTypeManhattan
)

// String returns a string representation of the DistanceType.
func (dt DistanceType) String() string {
	switch dt {
	case DistanceTypeCosine:
		return "Cosine"
	case DistanceTypeEuclidean:
		return "Euclidean"
	case DistanceTypeManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", int(dt))
	}
}

// Func calculates the distance between two equal-length vectors.
// Callers are responsible for dimension checks.
type Func func(v1, v2 []float32) float32

// NewDistanceFunc returns the distance function for the given type,
// or an error for an unknown type.
func NewDistanceFunc(dt DistanceType) (Func, error) {
	switch dt {
	case DistanceTypeCosine:
		return Cosine, nil
	case DistanceTypeEuclidean:
		return Euclidean, nil
	case DistanceTypeManhattan:
		return Manhattan, nil
	default:
		return nil, fmt.Errorf("unsupported distance type: %v", dt)
	}
}

// Magnitude calculates the L2 norm of v.
func Magnitude(v []float32) float32 {
	return math32.Sqrt(math32.Dot(v, v))
}

// CosineSimilarity calculates the cosine similarity between v1 and v2.
// Zero-magnitude inputs yield a similarity of 0.
func CosineSimilarity(v1, v2 []float32) float32 {
	magA := Magnitude(v1)
	magB := Magnitude(v2)

	// Avoid division by zero
	if magA == 0 || magB == 0 {
		return 0
	}

	return math32.Dot(v1, v2) / (magA * magB)
}

// Cosine calculates the cosine distance (1 - cosine similarity).
func Cosine(v1, v2 []float32) float32 {
	return 1 - CosineSimilarity(v1, v2)
}

// Euclidean calculates the L2 distance between v1 and v2.
func Euclidean(v1, v2 []float32) float32 {
	return math32.Sqrt(math32.SquaredL2(v1, v2))
}

// SquaredL2 calculates the squared L2 distance between v1 and v2.
func SquaredL2(v1, v2 []float32) float32 {
	return math32.SquaredL2(v1, v2)
}

// Manhattan calculates the L1 distance between v1 and v2.
func Manhattan(v1, v2 []float32) float32 {
	var sum float32
	for i := range v1 {
		d := v1[i] - v2[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}
