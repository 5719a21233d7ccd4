package quantization

import (
	"encoding/binary"
	"errors"
	"math"
)

// ScalarQuantizer performs per-vector linear quantization over the
// vector's observed value range. No training is required: the scale and
// offset are derived from each vector and stored alongside the codes.
//
// Encoded layout (little-endian):
//
//	[min:float32][max:float32][codes...]
//
// With 8 bits each dimension is one byte; with 4 bits two dimensions share
// a byte (low nibble first).
type ScalarQuantizer struct {
	dimension int
	bits      int
}

// Compile-time check
var _ Quantizer = (*ScalarQuantizer)(nil)

// NewScalarQuantizer creates a scalar quantizer for the given dimension.
// bits must be 4 or 8.
func NewScalarQuantizer(dimension, bits int) (*ScalarQuantizer, error) {
	if dimension <= 0 {
		return nil, errors.New("dimension must be positive")
	}
	if bits != 4 && bits != 8 {
		return nil, errors.New("bits must be 4 or 8")
	}
	return &ScalarQuantizer{dimension: dimension, bits: bits}, nil
}

// Train is a no-op: scalar quantization is calibrated per vector.
func (sq *ScalarQuantizer) Train([][]float32) error { return nil }

func (sq *ScalarQuantizer) levels() float32 {
	return float32(uint(1)<<sq.bits) - 1
}

func (sq *ScalarQuantizer) codesLen() int {
	if sq.bits == 4 {
		return (sq.dimension + 1) / 2
	}
	return sq.dimension
}

// Encode quantizes v into bit-packed codes preceded by the value range.
func (sq *ScalarQuantizer) Encode(v []float32) ([]byte, error) {
	if len(v) != sq.dimension {
		return nil, &ErrDimensionMismatch{Expected: sq.dimension, Actual: len(v)}
	}

	vmin, vmax := v[0], v[0]
	for _, val := range v[1:] {
		if val < vmin {
			vmin = val
		}
		if val > vmax {
			vmax = val
		}
	}
	if vmin == vmax {
		// Degenerate range; keep the scale finite.
		vmax = vmin + 1
	}

	out := make([]byte, 8+sq.codesLen())
	binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(vmin))
	binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(vmax))

	scale := sq.levels() / (vmax - vmin)
	for i, val := range v {
		code := uint8((val-vmin)*scale + 0.5)

		if sq.bits == 8 {
			out[8+i] = code
			continue
		}
		if i%2 == 0 {
			out[8+i/2] = code
		} else {
			out[8+i/2] |= code << 4
		}
	}

	return out, nil
}

// Decode reconstructs an approximate vector.
func (sq *ScalarQuantizer) Decode(b []byte) ([]float32, error) {
	if len(b) != 8+sq.codesLen() {
		return nil, errors.New("invalid scalar code length")
	}

	vmin := math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))
	vmax := math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))
	step := (vmax - vmin) / sq.levels()

	out := make([]float32, sq.dimension)
	for i := range out {
		var code uint8
		if sq.bits == 8 {
			code = b[8+i]
		} else if i%2 == 0 {
			code = b[8+i/2] & 0x0f
		} else {
			code = b[8+i/2] >> 4
		}
		out[i] = float32(code)*step + vmin
	}

	return out, nil
}

// CompressionRatio returns original bytes over compressed bytes including
// the per-vector range header.
func (sq *ScalarQuantizer) CompressionRatio() float64 {
	return float64(sq.dimension*4) / float64(8+sq.codesLen())
}
