//go:build !cgo

package bgen

// If cgo is not enabled, we will use the klauspost pure-Go zstd
// implementation. It is slower than the libzstd bindings.

import "github.com/klauspost/compress/zstd"

var (
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
)

// DecompressZStandard decompresses Zstd compressed data for bgen13. The dst
// buffer is reused when it has capacity.
func DecompressZStandard(dst, src []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst[:0])
}

// CompressZStandard compresses src, appending to dst's capacity when
// possible.
func CompressZStandard(dst, src []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(src, dst[:0]), nil
}
