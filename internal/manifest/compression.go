package manifest

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"restore-chain/internal/errors"
)

// CompressionType names a compression algorithm
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionLZ4  CompressionType = "lz4"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompressionType accepts an algorithm name in any case; "" means none
func ParseCompressionType(s string) (CompressionType, error) {
	switch CompressionType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip:
		return CompressionGzip, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Compressor compresses and restores manifest payloads
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
	DefaultLevel() int
	MinLevel() int
	MaxLevel() int
}

// CompressionManager dispatches to the registered compressors
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a manager with gzip, lz4 and zstd registered
func NewCompressionManager() *CompressionManager {
	return &CompressionManager{
		compressors: map[CompressionType]Compressor{
			CompressionGzip: gzipCompressor{},
			CompressionLZ4:  lz4Compressor{},
			CompressionZstd: zstdCompressor{},
		},
	}
}

// Compress compresses data; a level outside the algorithm's range uses its default
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, error) {
	if algorithm == CompressionNone || algorithm == "" {
		return data, nil
	}

	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	if level < compressor.MinLevel() || level > compressor.MaxLevel() {
		level = compressor.DefaultLevel()
	}

	return compressor.Compress(data, level)
}

// Decompress restores data compressed with algorithm
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionNone || algorithm == "" {
		return data, nil
	}

	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	return compressor.Decompress(data)
}

func compressionError(message string, cause error) error {
	return errors.NewAppError(errors.ErrorTypeStorage, message, cause)
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, compressionError("failed to create gzip writer", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, compressionError("failed to write data to gzip writer", err)
	}
	if err := writer.Close(); err != nil {
		return nil, compressionError("failed to close gzip writer", err)
	}

	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, compressionError("failed to create gzip reader", err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, compressionError("failed to decompress gzip data", err)
	}
	return out, nil
}

func (gzipCompressor) Algorithm() CompressionType { return CompressionGzip }
func (gzipCompressor) DefaultLevel() int          { return gzip.DefaultCompression }
func (gzipCompressor) MinLevel() int              { return gzip.BestSpeed }
func (gzipCompressor) MaxLevel() int              { return gzip.BestCompression }

type lz4Compressor struct{}

func (lz4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	// lz4 only distinguishes fast and high compression
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, compressionError("failed to set LZ4 compression level", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, compressionError("failed to write data to LZ4 writer", err)
	}
	if err := writer.Close(); err != nil {
		return nil, compressionError("failed to close LZ4 writer", err)
	}

	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, compressionError("failed to decompress LZ4 data", err)
	}
	return out, nil
}

func (lz4Compressor) Algorithm() CompressionType { return CompressionLZ4 }
func (lz4Compressor) DefaultLevel() int          { return 1 }
func (lz4Compressor) MinLevel() int              { return 1 }
func (lz4Compressor) MaxLevel() int              { return 12 }

type zstdCompressor struct{}

func (zstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, compressionError("failed to create zstd encoder", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, compressionError("failed to create zstd decoder", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, compressionError("failed to decompress zstd data", err)
	}
	return out, nil
}

func (zstdCompressor) Algorithm() CompressionType { return CompressionZstd }
func (zstdCompressor) DefaultLevel() int          { return 3 }
func (zstdCompressor) MinLevel() int              { return 1 }
func (zstdCompressor) MaxLevel() int              { return 22 }
