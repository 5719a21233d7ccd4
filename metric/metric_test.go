package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-6)
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0, 0}, []float32{0, 1, 0}), 1e-6)
	assert.InDelta(t, 2.0, Cosine([]float32{1, 0, 0}, []float32{-1, 0, 0}), 1e-6)

	// Scale invariance.
	assert.InDelta(t, 0.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-6)

	// Zero magnitude yields zero similarity, i.e. distance 1.
	assert.InDelta(t, 1.0, Cosine([]float32{0, 0, 0}, []float32{1, 0, 0}), 1e-6)
}

func TestEuclidean(t *testing.T) {
	assert.InDelta(t, 0.0, Euclidean([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 5.0, Euclidean([]float32{0, 0}, []float32{3, 4}), 1e-6)
}

func TestManhattan(t *testing.T) {
	assert.InDelta(t, 0.0, Manhattan([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 7.0, Manhattan([]float32{0, 0}, []float32{3, -4}), 1e-6)
}

func TestNewDistanceFunc(t *testing.T) {
	for _, dt := range []DistanceType{DistanceTypeCosine, DistanceTypeEuclidean, DistanceTypeManhattan} {
		fn, err := NewDistanceFunc(dt)
		require.NoError(t, err, dt.String())
		assert.NotNil(t, fn)
	}

	_, err := NewDistanceFunc(DistanceType(99))
	assert.Error(t, err)
}
