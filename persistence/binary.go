// Package persistence serializes proximity graph snapshots into a
// checksummed, optionally compressed binary format and moves them through
// a caller-supplied blob store.
package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/metric"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Encode serializes a snapshot:
//
//	[magic u32][version u32][codec u8][bodyLen u64][body][crc32 u32]
//
// The CRC32 (IEEE) covers the compressed body. CRC32 detects accidental
// corruption only; it is not tamper-proof.
func Encode(w io.Writer, s *hnsw.Snapshot, codec Compression) error {
	body, err := encodeBody(s)
	if err != nil {
		return err
	}

	compressed, err := compress(body, codec)
	if err != nil {
		return err
	}

	header := make([]byte, 17)
	binary.LittleEndian.PutUint32(header[0:4], MagicNumber)
	binary.LittleEndian.PutUint32(header[4:8], Version)
	header[8] = byte(codec)
	binary.LittleEndian.PutUint64(header[9:17], uint64(len(compressed)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(compressed); err != nil {
		return err
	}

	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, ComputeChecksum(compressed))
	_, err = w.Write(trailer)
	return err
}

// Decode reads a snapshot written by Encode. Corruption is surfaced as an
// error wrapping ErrImport.
func Decode(r io.Reader) (*hnsw.Snapshot, error) {
	header := make([]byte, 17)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrImport, err)
	}

	if binary.LittleEndian.Uint32(header[0:4]) != MagicNumber {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(header[4:8]) != Version {
		return nil, ErrInvalidVersion
	}
	codec := Compression(header[8])
	bodyLen := binary.LittleEndian.Uint64(header[9:17])
	if bodyLen > math.MaxInt64 {
		return nil, fmt.Errorf("%w: implausible body length %d", ErrImport, bodyLen)
	}

	// The declared length is untrusted until the checksum passes, so the
	// body is read incrementally rather than allocated up front.
	compressed, err := io.ReadAll(io.LimitReader(r, int64(bodyLen)))
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrImport, err)
	}
	if uint64(len(compressed)) != bodyLen {
		return nil, fmt.Errorf("%w: short body: %d of %d bytes", ErrImport, len(compressed), bodyLen)
	}

	trailer := make([]byte, 4)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return nil, fmt.Errorf("%w: short checksum: %v", ErrImport, err)
	}
	if binary.LittleEndian.Uint32(trailer) != ComputeChecksum(compressed) {
		return nil, ErrChecksumMismatch
	}

	body, err := decompress(compressed, codec)
	if err != nil {
		return nil, err
	}

	return decodeBody(body)
}

func compress(body []byte, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(body, nil), nil
	default:
		return nil, ErrUnknownCompression
	}
}

func decompress(data []byte, codec Compression) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		body, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrImport, err)
		}
		return body, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		body, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrImport, err)
		}
		return body, nil
	default:
		return nil, ErrUnknownCompression
	}
}

type sliceWriter struct {
	buf []byte
}

func (w *sliceWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *sliceWriter) i32(v int) {
	w.u32(uint32(int32(v)))
}

func (w *sliceWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *sliceWriter) f64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func encodeBody(s *hnsw.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	w := &sliceWriter{buf: make([]byte, 0, 1024)}

	w.i32(s.Config.Dimension)
	w.i32(s.Config.M)
	w.i32(s.Config.EFConstruction)
	w.i32(int(s.Config.DistanceType))
	w.f64(s.Config.LevelMultiplier)

	w.u32(s.EntryPoint)
	w.i32(s.MaxLevel)
	w.u32(s.NextID)
	w.u32(uint32(len(s.Nodes)))

	for _, n := range s.Nodes {
		w.u32(n.ID)
		w.i32(n.Level)
		for _, v := range n.Vector {
			w.f32(v)
		}
		for _, conns := range n.Connections {
			w.u32(uint32(len(conns)))
			for _, c := range conns {
				w.u32(c)
			}
		}
	}

	return w.buf, nil
}

type sliceReader struct {
	buf []byte
	off int
}

func (r *sliceReader) remaining() int { return len(r.buf) - r.off }

func (r *sliceReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated body", ErrImport)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *sliceReader) i32() (int, error) {
	v, err := r.u32()
	return int(int32(v)), err
}

func (r *sliceReader) f32() (float32, error) {
	v, err := r.u32()
	return math.Float32frombits(v), err
}

func (r *sliceReader) f64() (float64, error) {
	if r.off+8 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated body", ErrImport)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(v), nil
}

func decodeBody(body []byte) (*hnsw.Snapshot, error) {
	r := &sliceReader{buf: body}
	s := &hnsw.Snapshot{}

	var err error
	if s.Config.Dimension, err = r.i32(); err != nil {
		return nil, err
	}
	if s.Config.M, err = r.i32(); err != nil {
		return nil, err
	}
	if s.Config.EFConstruction, err = r.i32(); err != nil {
		return nil, err
	}
	dt, err := r.i32()
	if err != nil {
		return nil, err
	}
	s.Config.DistanceType = metric.DistanceType(dt)
	if s.Config.LevelMultiplier, err = r.f64(); err != nil {
		return nil, err
	}

	if s.EntryPoint, err = r.u32(); err != nil {
		return nil, err
	}
	if s.MaxLevel, err = r.i32(); err != nil {
		return nil, err
	}
	if s.NextID, err = r.u32(); err != nil {
		return nil, err
	}
	nodeCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	if s.Config.Dimension <= 0 || nodeCount > s.NextID {
		return nil, fmt.Errorf("%w: implausible header", ErrImport)
	}

	// Declared counts are untrusted; every count must be covered by
	// bytes actually present before anything is allocated from it. A node
	// record is at least id, level, the vector and one layer count.
	minNodeBytes := uint64(12) + 4*uint64(s.Config.Dimension)
	if uint64(nodeCount)*minNodeBytes > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: %d nodes exceed body size", ErrImport, nodeCount)
	}

	s.Nodes = make([]hnsw.NodeSnapshot, nodeCount)
	for i := range s.Nodes {
		n := &s.Nodes[i]

		if n.ID, err = r.u32(); err != nil {
			return nil, err
		}
		if n.Level, err = r.i32(); err != nil {
			return nil, err
		}
		if n.Level < 0 {
			return nil, fmt.Errorf("%w: negative level", ErrImport)
		}
		if (uint64(n.Level)+1)*4 > uint64(r.remaining()) {
			return nil, fmt.Errorf("%w: node level %d exceeds body size", ErrImport, n.Level)
		}

		n.Vector = make([]float32, s.Config.Dimension)
		for j := range n.Vector {
			if n.Vector[j], err = r.f32(); err != nil {
				return nil, err
			}
		}

		n.Connections = make([][]uint32, n.Level+1)
		for lvl := range n.Connections {
			count, err := r.u32()
			if err != nil {
				return nil, err
			}
			if uint64(count)*4 > uint64(r.remaining()) {
				return nil, fmt.Errorf("%w: implausible connection count %d", ErrImport, count)
			}
			n.Connections[lvl] = make([]uint32, count)
			for k := range n.Connections[lvl] {
				if n.Connections[lvl][k], err = r.u32(); err != nil {
					return nil, err
				}
			}
		}
	}

	if r.off != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrImport, len(body)-r.off)
	}

	return s, nil
}
