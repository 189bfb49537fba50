// Package codec provides the byte-level compression and value serialization
// codecs used by the cache tiers.
package codec

import (
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"cache-engine/internal/common/errors"
)

// Algorithm identifies a compression algorithm.
type Algorithm string

const (
	// AlgorithmNone stores the payload uncompressed
	AlgorithmNone Algorithm = "none"
	// AlgorithmFast is s2: low CPU, moderate ratio
	AlgorithmFast Algorithm = "fast"
	// AlgorithmBalanced is zstd at its default level
	AlgorithmBalanced Algorithm = "balanced"
	// AlgorithmMax is zstd at its best-compression level, for cold or large entries
	AlgorithmMax Algorithm = "max"
)

// ParseAlgorithm converts a string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmNone, AlgorithmFast, AlgorithmBalanced, AlgorithmMax:
		return Algorithm(s), nil
	default:
		return "", errors.Validation("unknown compression algorithm: " + s)
	}
}

// Compressor compresses and decompresses cache payloads. Payloads below
// MinSize skip compression entirely, and a compressed form is kept only when
// it is actually smaller than the input.
type Compressor struct {
	minSize    int
	zstdEnc    *zstd.Encoder
	zstdMaxEnc *zstd.Encoder
	zstdDec    *zstd.Decoder
}

// NewCompressor creates a Compressor. minSize is the byte threshold below
// which payloads are stored uncompressed.
func NewCompressor(minSize int) (*Compressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Internal("failed to create zstd encoder", err)
	}

	maxEnc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, errors.Internal("failed to create zstd max-ratio encoder", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Internal("failed to create zstd decoder", err)
	}

	return &Compressor{
		minSize:    minSize,
		zstdEnc:    enc,
		zstdMaxEnc: maxEnc,
		zstdDec:    dec,
	}, nil
}

// Compress compresses data with the requested algorithm. It returns the
// stored bytes, the algorithm actually applied (AlgorithmNone when the
// payload was below the threshold or compression did not shrink it) and the
// achieved ratio (stored size / original size).
func (c *Compressor) Compress(data []byte, algorithm Algorithm) ([]byte, Algorithm, float64, error) {
	if algorithm == AlgorithmNone || len(data) < c.minSize {
		return data, AlgorithmNone, 1.0, nil
	}

	var compressed []byte
	switch algorithm {
	case AlgorithmFast:
		compressed = s2.Encode(nil, data)
	case AlgorithmBalanced:
		compressed = c.zstdEnc.EncodeAll(data, nil)
	case AlgorithmMax:
		compressed = c.zstdMaxEnc.EncodeAll(data, nil)
	default:
		return nil, AlgorithmNone, 0, errors.Validation("unknown compression algorithm: " + string(algorithm))
	}

	// Keep the original when compression does not pay for itself
	if len(compressed) >= len(data) {
		return data, AlgorithmNone, 1.0, nil
	}

	ratio := float64(len(compressed)) / float64(len(data))
	return compressed, algorithm, ratio, nil
}

// Decompress reverses Compress for the given algorithm.
func (c *Compressor) Decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmFast:
		out, err := s2.Decode(nil, data)
		if err != nil {
			return nil, errors.Serialization("failed to decompress s2 payload", err)
		}
		return out, nil
	case AlgorithmBalanced, AlgorithmMax:
		out, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Serialization("failed to decompress zstd payload", err)
		}
		return out, nil
	default:
		return nil, errors.Serialization("unknown compression algorithm: "+string(algorithm), nil)
	}
}

// MinSize returns the compression threshold in bytes.
func (c *Compressor) MinSize() int {
	return c.minSize
}
