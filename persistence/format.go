package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies fusego snapshot files ("FSG1").
	MagicNumber uint32 = 0x46534731

	// Version is the current snapshot format version.
	Version uint32 = 1
)

// Compression selects the codec applied to the snapshot body.
type Compression uint8

const (
	// CompressionNone stores the body uncompressed.
	CompressionNone Compression = iota
	// CompressionLZ4 favors decode speed.
	CompressionLZ4
	// CompressionZstd favors ratio.
	CompressionZstd
)

// String returns a string representation of the Compression codec.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionLZ4:
		return "LZ4"
	case CompressionZstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Import errors. All corruption of an incoming snapshot surfaces as an
// error wrapping ErrImport; the caller decides whether to fall back to an
// empty index.
var (
	ErrImport             = errors.New("persistence: import failed")
	ErrInvalidMagic       = fmt.Errorf("%w: invalid magic number", ErrImport)
	ErrInvalidVersion     = fmt.Errorf("%w: unsupported version", ErrImport)
	ErrChecksumMismatch   = fmt.Errorf("%w: checksum mismatch", ErrImport)
	ErrUnknownCompression = fmt.Errorf("%w: unknown compression codec", ErrImport)
)
