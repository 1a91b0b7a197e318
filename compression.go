package bgen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/zlib"
)

// Compression indicates how (and whether) the SNP block probability is compressed
type Compression uint32

const (
	CompressionDisabled Compression = iota
	CompressionZLIB
	CompressionZStandard
)

func (c Compression) String() string {
	switch c {
	case CompressionDisabled:
		return "None"
	case CompressionZLIB:
		return "Zlib"
	case CompressionZStandard:
		return "Zstd"

	default:
		return "Illegal selection"
	}
}

// DefaultZlibCompressionLevel matches the level bgenix uses when transcoding
// to v1.1 unless -compression-level overrides it.
const DefaultZlibCompressionLevel = 9

// Compress compresses data with the given scheme. The level applies to zlib
// only.
func Compress(c Compression, data []byte, level int) ([]byte, error) {
	switch c {
	case CompressionDisabled:
		return data, nil
	case CompressionZLIB:
		return compressZLIB(data, level)
	case CompressionZStandard:
		return CompressZStandard(nil, data)
	}

	return nil, pfx.Err(fmt.Errorf("%w: compression flag %d", ErrUnsupportedCompression, c))
}

// Decompress decompresses data with the given scheme. The decompressed size
// is always known from a preceding field in the BGEN format, so a length
// mismatch is treated as corruption.
func Decompress(c Compression, data []byte, expectedSize int) ([]byte, error) {
	var out []byte
	var err error

	switch c {
	case CompressionDisabled:
		out = data
	case CompressionZLIB:
		out, err = decompressZLIB(data, expectedSize)
	case CompressionZStandard:
		out, err = DecompressZStandard(make([]byte, 0, expectedSize), data)
	default:
		return nil, pfx.Err(fmt.Errorf("%w: compression flag %d", ErrUnsupportedCompression, c))
	}
	if err != nil {
		return nil, pfx.Err(err)
	}

	if len(out) != expectedSize {
		return nil, pfx.Err(fmt.Errorf("%w: got %d bytes, expected %d", ErrCompressionMismatch, len(out), expectedSize))
	}

	return out, nil
}

func compressZLIB(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, pfx.Err(err)
	}
	if err := zw.Close(); err != nil {
		return nil, pfx.Err(err)
	}

	return buf.Bytes(), nil
}

func decompressZLIB(data []byte, expectedSize int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer zr.Close()

	out := make([]byte, 0, expectedSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, pfx.Err(err)
	}

	return buf.Bytes(), nil
}
