package envelope

import "github.com/klauspost/compress/zstd"

// CompressionType defines the compression algorithm applied to a sealed
// envelope.
type CompressionType int

const (
	// NoCompression indicates no compression.
	NoCompression CompressionType = iota
	// ZstdCompression indicates Zstandard compression.
	ZstdCompression
)

var (
	// encoder and decoder for zstd are reusable and thread-safe.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// CompressData compresses data using the given algorithm.
func CompressData(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == NoCompression {
		return data, nil
	}

	// Currently we only support Zstd.
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// DecompressData reverses CompressData.
func DecompressData(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == NoCompression {
		return data, nil
	}

	// Currently we only support Zstd.
	return zstdDecoder.DecodeAll(data, nil)
}
