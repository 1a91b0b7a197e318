package bgen

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// All multi-byte integers in the BGEN format are little-endian on disk
// regardless of host. These helpers read and write fixed-width integers and
// u16-length-prefixed strings over plain io.Reader/io.Writer streams.

func readBytes(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF {
		// Nothing read at all; let callers detect a clean end of stream.
		return io.EOF
	}
	if err != nil {
		return pfx.Err(fmt.Errorf("%w: wanted %d bytes, read %d: %v", ErrTruncatedInput, len(buf), n, err))
	}
	return nil
}

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if err := readBytes(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readBytes(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readBytes(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readBytes(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readString reads a u16 byte count followed by that many bytes.
func readString(r io.Reader) (string, error) {
	size, err := readUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if err := readBytes(r, buf); err != nil {
		if err == io.EOF {
			err = pfx.Err(fmt.Errorf("%w: string body of %d bytes missing", ErrTruncatedInput, size))
		}
		return "", err
	}
	return string(buf), nil
}

func writeBytes(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil || n != len(buf) {
		return pfx.Err(fmt.Errorf("%w: wrote %d of %d bytes: %v", ErrWriteFailed, n, len(buf), err))
	}
	return nil
}

func writeUint8(w io.Writer, v uint8) error {
	return writeBytes(w, []byte{v})
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return writeBytes(w, buf[:])
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return writeBytes(w, buf[:])
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return writeBytes(w, buf[:])
}

// writeString writes a u16 byte count followed by the string bytes.
func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return pfx.Err(fmt.Errorf("%w: string of %d bytes exceeds u16 length prefix", ErrWriteFailed, len(s)))
	}
	if err := writeUint16(w, uint16(len(s))); err != nil {
		return err
	}
	return writeBytes(w, []byte(s))
}
