package quantization

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainingVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		out[i] = v
	}
	return out
}

func TestProductQuantizerRoundTrip(t *testing.T) {
	const (
		dim           = 64
		numSubvectors = 8
		numCentroids  = 16
	)

	seed := int64(42)
	pq, err := NewProductQuantizer(dim, numSubvectors, numCentroids, func(o *ProductQuantizerOptions) {
		o.RandomSeed = &seed
	})
	require.NoError(t, err)
	require.False(t, pq.IsTrained())

	vectors := trainingVectors(500, dim, 7)
	require.NoError(t, pq.Train(vectors))
	require.True(t, pq.IsTrained())

	v := vectors[0]
	codes, err := pq.Encode(v)
	require.NoError(t, err)
	assert.Len(t, codes, numSubvectors)

	decoded, err := pq.Decode(codes)
	require.NoError(t, err)
	assert.Len(t, decoded, dim)

	// Compression is idempotent given a fixed codebook.
	recodes, err := pq.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, codes, recodes)
}

func TestProductQuantizerNotTrained(t *testing.T) {
	pq, err := NewProductQuantizer(16, 4, 8)
	require.NoError(t, err)

	v := make([]float32, 16)

	_, err = pq.Encode(v)
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = pq.Decode(make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = pq.AsymmetricDistance(v, make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = pq.Compress(v)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestProductQuantizerValidation(t *testing.T) {
	_, err := NewProductQuantizer(10, 3, 16)
	assert.Error(t, err, "dimension not divisible by numSubvectors")

	_, err = NewProductQuantizer(16, 4, 300)
	assert.Error(t, err, "too many centroids for one-byte codes")

	pq, err := NewProductQuantizer(16, 4, 8)
	require.NoError(t, err)
	require.NoError(t, pq.Train(trainingVectors(100, 16, 1)))

	var dm *ErrDimensionMismatch
	_, err = pq.Encode(make([]float32, 8))
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 16, dm.Expected)
}

func TestProductQuantizerTrainRaggedVectors(t *testing.T) {
	pq, err := NewProductQuantizer(4, 2, 4)
	require.NoError(t, err)

	// Every training vector is checked, not just the first one.
	vectors := [][]float32{
		make([]float32, 4),
		make([]float32, 2),
		make([]float32, 4),
	}

	var dm *ErrDimensionMismatch
	err = pq.Train(vectors)
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.False(t, pq.IsTrained())
}

func TestAsymmetricDistance(t *testing.T) {
	const dim = 32

	seed := int64(3)
	pq, err := NewProductQuantizer(dim, 4, 32, func(o *ProductQuantizerOptions) {
		o.RandomSeed = &seed
	})
	require.NoError(t, err)

	vectors := trainingVectors(400, dim, 9)
	require.NoError(t, pq.Train(vectors))

	for _, v := range vectors[:20] {
		cv, err := pq.Compress(v)
		require.NoError(t, err)
		assert.Greater(t, cv.Norm, float32(0))

		d, err := pq.AsymmetricDistance(v, cv.Codes)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, float32(0))

		// Training data stays within a loose quantization-error bound.
		assert.Less(t, d, float32(dim))
	}
}

func TestTrainingDeterministicWithSeed(t *testing.T) {
	vectors := trainingVectors(300, 32, 5)

	build := func() *ProductQuantizer {
		seed := int64(11)
		pq, err := NewProductQuantizer(32, 4, 16, func(o *ProductQuantizerOptions) {
			o.RandomSeed = &seed
		})
		require.NoError(t, err)
		require.NoError(t, pq.Train(vectors))
		return pq
	}

	assert.Equal(t, build().Codebooks(), build().Codebooks())
}

func TestRetrainReplacesCodebook(t *testing.T) {
	seed := int64(2)
	pq, err := NewProductQuantizer(16, 4, 8, func(o *ProductQuantizerOptions) {
		o.RandomSeed = &seed
	})
	require.NoError(t, err)

	require.NoError(t, pq.Train(trainingVectors(200, 16, 1)))
	first := pq.Codebooks()

	require.NoError(t, pq.Train(trainingVectors(200, 16, 99)))
	assert.NotEqual(t, first, pq.Codebooks())
}

func TestCompressionRatio(t *testing.T) {
	pq, err := NewProductQuantizer(128, 8, 256)
	require.NoError(t, err)

	// 128*4 bytes down to 8 codes + 4-byte norm.
	assert.InDelta(t, float64(128*4)/float64(8+4), pq.CompressionRatio(), 1e-9)
}

func TestTrainWithFewVectors(t *testing.T) {
	pq, err := NewProductQuantizer(8, 2, 16)
	require.NoError(t, err)

	// Fewer vectors than centroids still trains.
	require.NoError(t, pq.Train(trainingVectors(4, 8, 1)))
	require.True(t, pq.IsTrained())

	_, err = pq.Encode(make([]float32, 8))
	require.NoError(t, err)
}
