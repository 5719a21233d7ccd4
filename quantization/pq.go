package quantization

import (
	"errors"
	"math/rand"
	"time"

	"github.com/hupe1980/fusego/internal/math32"
	"github.com/hupe1980/fusego/metric"
)

const (
	// DefaultMaxIterations bounds the Lloyd iterations per codebook.
	DefaultMaxIterations = 25

	// DefaultTolerance is the relative inertia improvement below which
	// Lloyd iterations stop.
	DefaultTolerance = 1e-4
)

// CompressedVector is the lossy compressed form of a vector: one code per
// segment plus the original norm.
type CompressedVector struct {
	Codes []byte
	Norm  float32
}

// ProductQuantizerOptions configures training.
type ProductQuantizerOptions struct {
	// MaxIterations bounds the Lloyd iterations per segment codebook.
	MaxIterations int

	// Tolerance stops training once the relative inertia improvement of a
	// Lloyd iteration falls below it.
	Tolerance float64

	// RandomSeed fixes k-means++ seeding so repeated training runs on the
	// same data produce identical codebooks. If nil, time-seeded.
	RandomSeed *int64
}

// ProductQuantizer compresses vectors by quantizing fixed-size contiguous
// segments against per-segment codebooks trained with k-means.
//
// Example: a 128-dim vector with 8 segments compresses to 8 one-byte codes
// plus a norm, roughly 16x smaller than the float32 original.
type ProductQuantizer struct {
	numSubvectors int
	numCentroids  int
	dimension     int
	subvectorDim  int

	codebooks [][][]float32 // [segment][centroid][subvectorDim]
	trained   bool

	rng  *rand.Rand
	opts ProductQuantizerOptions
}

// Compile-time check
var _ Quantizer = (*ProductQuantizer)(nil)

// NewProductQuantizer creates a product quantizer. dimension must be
// divisible by numSubvectors, and numCentroids must fit a one-byte code.
func NewProductQuantizer(dimension, numSubvectors, numCentroids int, optFns ...func(o *ProductQuantizerOptions)) (*ProductQuantizer, error) {
	if dimension <= 0 || numSubvectors <= 0 {
		return nil, errors.New("dimension and numSubvectors must be positive")
	}
	if dimension%numSubvectors != 0 {
		return nil, errors.New("dimension must be divisible by numSubvectors")
	}
	if numCentroids < 1 || numCentroids > 256 {
		return nil, errors.New("numCentroids must be in [1,256] for one-byte codes")
	}

	opts := ProductQuantizerOptions{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var rng *rand.Rand
	if opts.RandomSeed != nil {
		rng = rand.New(rand.NewSource(*opts.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &ProductQuantizer{
		numSubvectors: numSubvectors,
		numCentroids:  numCentroids,
		dimension:     dimension,
		subvectorDim:  dimension / numSubvectors,
		rng:           rng,
		opts:          opts,
	}, nil
}

// IsTrained reports whether a codebook has been built.
func (pq *ProductQuantizer) IsTrained() bool { return pq.trained }

// Codebooks returns the trained per-segment centroid sets. The returned
// slices must be treated as read-only.
func (pq *ProductQuantizer) Codebooks() [][][]float32 { return pq.codebooks }

// Train builds one codebook per segment via k-means. Retraining replaces
// the codebook wholesale.
func (pq *ProductQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("no vectors provided for training")
	}
	for _, v := range vectors {
		if len(v) != pq.dimension {
			return &ErrDimensionMismatch{Expected: pq.dimension, Actual: len(v)}
		}
	}

	codebooks := make([][][]float32, pq.numSubvectors)

	for m := 0; m < pq.numSubvectors; m++ {
		subvectors := make([][]float32, len(vectors))
		for i, vec := range vectors {
			start := m * pq.subvectorDim
			subvectors[i] = vec[start : start+pq.subvectorDim]
		}

		codebooks[m] = pq.kmeans(subvectors)
	}

	pq.codebooks = codebooks
	pq.trained = true
	return nil
}

// Compress quantizes a vector into per-segment codes plus its norm.
func (pq *ProductQuantizer) Compress(v []float32) (*CompressedVector, error) {
	codes, err := pq.Encode(v)
	if err != nil {
		return nil, err
	}
	return &CompressedVector{
		Codes: codes,
		Norm:  metric.Magnitude(v),
	}, nil
}

// Encode quantizes a vector into one code per segment. Encoding against a
// fixed codebook is idempotent: compress, decompress, recompress yields
// identical codes.
func (pq *ProductQuantizer) Encode(v []float32) ([]byte, error) {
	if !pq.trained {
		return nil, ErrNotTrained
	}
	if len(v) != pq.dimension {
		return nil, &ErrDimensionMismatch{Expected: pq.dimension, Actual: len(v)}
	}

	codes := make([]byte, pq.numSubvectors)
	for m := 0; m < pq.numSubvectors; m++ {
		start := m * pq.subvectorDim
		codes[m] = byte(nearestCentroid(v[start:start+pq.subvectorDim], pq.codebooks[m]))
	}
	return codes, nil
}

// Decode reconstructs an approximate vector by concatenating the assigned
// centroids.
func (pq *ProductQuantizer) Decode(codes []byte) ([]float32, error) {
	if !pq.trained {
		return nil, ErrNotTrained
	}
	if len(codes) != pq.numSubvectors {
		return nil, errors.New("invalid code length")
	}

	out := make([]float32, pq.dimension)
	for m, code := range codes {
		if int(code) >= pq.numCentroids {
			return nil, errors.New("code out of centroid range")
		}
		copy(out[m*pq.subvectorDim:], pq.codebooks[m][code])
	}
	return out, nil
}

// AsymmetricDistance computes the L2 distance between a full-precision
// query and a compressed vector without reconstructing it: per segment,
// the squared distance to the assigned centroid, summed and square-rooted.
func (pq *ProductQuantizer) AsymmetricDistance(query []float32, codes []byte) (float32, error) {
	if !pq.trained {
		return 0, ErrNotTrained
	}
	if len(query) != pq.dimension {
		return 0, &ErrDimensionMismatch{Expected: pq.dimension, Actual: len(query)}
	}
	if len(codes) != pq.numSubvectors {
		return 0, errors.New("invalid code length")
	}

	var sum float32
	for m, code := range codes {
		start := m * pq.subvectorDim
		sum += math32.SquaredL2(query[start:start+pq.subvectorDim], pq.codebooks[m][code])
	}
	return math32.Sqrt(sum), nil
}

// CompressionRatio returns original bytes over compressed bytes; the
// constant overhead is the stored norm.
func (pq *ProductQuantizer) CompressionRatio() float64 {
	return float64(pq.dimension*4) / float64(pq.numSubvectors+4)
}

// kmeans clusters subvectors with k-means++ seeding and Lloyd iterations.
func (pq *ProductQuantizer) kmeans(subvectors [][]float32) [][]float32 {
	k := pq.numCentroids
	dim := pq.subvectorDim

	if len(subvectors) < k {
		// Not enough data for k distinct clusters; repeat inputs.
		centroids := make([][]float32, k)
		for i := range centroids {
			centroids[i] = make([]float32, dim)
			copy(centroids[i], subvectors[i%len(subvectors)])
		}
		return centroids
	}

	centroids := pq.seedCentroids(subvectors, k)

	assignments := make([]int, len(subvectors))
	prevInertia := -1.0

	for iter := 0; iter < pq.opts.MaxIterations; iter++ {
		// Assign each subvector to its nearest centroid.
		inertia := 0.0
		for i, sv := range subvectors {
			best := nearestCentroid(sv, centroids)
			assignments[i] = best
			inertia += float64(math32.SquaredL2(sv, centroids[best]))
		}

		if prevInertia >= 0 {
			improvement := prevInertia - inertia
			if improvement < pq.opts.Tolerance*prevInertia {
				break
			}
		}
		prevInertia = inertia

		// Recompute centroids as cluster means.
		sums := make([][]float32, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}
		for i, sv := range subvectors {
			c := assignments[i]
			counts[c]++
			for j, val := range sv {
				sums[c][j] += val
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random subvector.
				copy(centroids[c], subvectors[pq.rng.Intn(len(subvectors))])
				continue
			}
			inv := 1 / float32(counts[c])
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] * inv
			}
		}
	}

	return centroids
}

// seedCentroids implements k-means++: the first centroid is sampled
// uniformly, each subsequent one with probability proportional to the
// squared distance to the nearest already-chosen centroid.
func (pq *ProductQuantizer) seedCentroids(subvectors [][]float32, k int) [][]float32 {
	dim := pq.subvectorDim

	centroids := make([][]float32, k)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
	}

	copy(centroids[0], subvectors[pq.rng.Intn(len(subvectors))])

	minDistSq := make([]float32, len(subvectors))
	var total float64
	for i, sv := range subvectors {
		d := math32.SquaredL2(sv, centroids[0])
		minDistSq[i] = d
		total += float64(d)
	}

	for c := 1; c < k; c++ {
		var idx int
		if total <= 0 {
			// All remaining points coincide with chosen centroids.
			idx = pq.rng.Intn(len(subvectors))
		} else {
			target := pq.rng.Float64() * total
			var cum float64
			idx = len(subvectors) - 1
			for i, d := range minDistSq {
				cum += float64(d)
				if cum >= target {
					idx = i
					break
				}
			}
		}

		copy(centroids[c], subvectors[idx])

		// Tighten nearest-centroid distances.
		total = 0
		for i, sv := range subvectors {
			d := math32.SquaredL2(sv, centroids[c])
			if d < minDistSq[i] {
				minDistSq[i] = d
			}
			total += float64(minDistSq[i])
		}
	}

	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := math32.SquaredL2(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := math32.SquaredL2(v, centroids[i]); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
