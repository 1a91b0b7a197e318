package bgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrips(t *testing.T) {
	payload := bytes.Repeat([]byte("genotype probability data "), 100)

	for _, c := range []Compression{CompressionDisabled, CompressionZLIB, CompressionZStandard} {
		compressed, err := Compress(c, payload, DefaultZlibCompressionLevel)
		require.NoError(t, err, c.String())

		out, err := Decompress(c, compressed, len(payload))
		require.NoError(t, err, c.String())
		require.Equal(t, payload, out, c.String())
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	payload := []byte("some bytes to squash")

	for _, c := range []Compression{CompressionZLIB, CompressionZStandard} {
		compressed, err := Compress(c, payload, DefaultZlibCompressionLevel)
		require.NoError(t, err)

		_, err = Decompress(c, compressed, len(payload)+1)
		require.ErrorIs(t, err, ErrCompressionMismatch, c.String())
	}
}

func TestDecompressUnknownScheme(t *testing.T) {
	_, err := Decompress(Compression(3), []byte{1, 2, 3}, 3)
	require.ErrorIs(t, err, ErrUnsupportedCompression)
}
