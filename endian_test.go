package bgen

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrips(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeUint8(&buf, 0xAB))
	require.NoError(t, writeUint16(&buf, 0xABCD))
	require.NoError(t, writeUint32(&buf, 0xDEADBEEF))
	require.NoError(t, writeUint64(&buf, 0x0102030405060708))

	v8, err := readUint8(&buf)
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), v8)

	v16, err := readUint16(&buf)
	require.NoError(t, err)
	require.Equal(t, uint16(0xABCD), v16)

	v32, err := readUint32(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v32)

	v64, err := readUint64(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), v64)
}

func TestLittleEndianOnDisk(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, 0x01020304))
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf.Bytes())
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "rs12345", "a longer string with spaces"} {
		var buf bytes.Buffer
		require.NoError(t, writeString(&buf, s))
		require.Equal(t, 2+len(s), buf.Len())

		got, err := readString(&buf)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestTruncatedReads(t *testing.T) {
	// A clean EOF at a boundary stays io.EOF so stream loops can stop.
	_, err := readUint32(bytes.NewReader(nil))
	require.Equal(t, io.EOF, err)

	// A partial integer is a truncation.
	_, err = readUint32(bytes.NewReader([]byte{1, 2}))
	require.ErrorIs(t, err, ErrTruncatedInput)

	// A string whose body is missing is a truncation, not an EOF.
	var buf bytes.Buffer
	require.NoError(t, writeUint16(&buf, 10))
	_, err = readString(&buf)
	require.ErrorIs(t, err, ErrTruncatedInput)
}
