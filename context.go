package bgen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// MagicNumber contains the value required to confirm that a file is BGEN-conformant
const MagicNumber = "bgen"

const (
	offsetVariant        = 0
	offsetHeaderLength   = 4
	offsetNumberVariants = 8
	offsetNumberSamples  = 12
	offsetMagicNumber    = 16
	offsetFreeStorage    = 20
)

// fixedHeaderSize counts the header bytes that are always present: length,
// variant count, sample count, magic, and the trailing flag word.
const fixedHeaderSize = 20

// Context describes a BGEN file's header block. It is immutable once read,
// except that NumberOfVariants may be overwritten when a filtered output is
// produced.
type Context struct {
	NumberOfVariants     uint32
	NumberOfSamples      uint32
	Compression          Compression
	Layout               Layout
	HasSampleIdentifiers bool

	// FreeData is the opaque payload between the fixed header fields and
	// the flag word.
	FreeData []byte
}

// HeaderSize returns the on-disk size of the header block in bytes.
func (c *Context) HeaderSize() uint32 {
	return fixedHeaderSize + uint32(len(c.FreeData))
}

// Flags assembles the 32-bit flag word from the context.
func (c *Context) Flags() uint32 {
	flags := uint32(c.Compression) & flagsCompressionMask
	flags |= (uint32(c.Layout) << flagsLayoutShift) & flagsLayoutMask
	if c.HasSampleIdentifiers {
		flags |= flagsSampleIdentifier
	}

	return flags
}

// ReadOffset reads the u32 offset field that precedes the header block. The
// first variant sits at byte offset+4.
func ReadOffset(r io.Reader) (uint32, error) {
	return readUint32(r)
}

// WriteOffset writes the u32 offset field that precedes the header block.
func WriteOffset(w io.Writer, offset uint32) error {
	return writeUint32(w, offset)
}

// ReadHeaderBlock decodes the header block that follows the offset field and
// returns the Context along with the number of bytes consumed.
func ReadHeaderBlock(r io.Reader) (Context, int, error) {
	var c Context

	headerSize, err := readUint32(r)
	if err != nil {
		return c, 0, pfx.Err(err)
	}
	if headerSize < fixedHeaderSize {
		return c, 4, pfx.Err(fmt.Errorf("%w: header size %d is below the %d-byte minimum", ErrTruncatedInput, headerSize, fixedHeaderSize))
	}

	if c.NumberOfVariants, err = readUint32(r); err != nil {
		return c, 4, pfx.Err(err)
	}
	if c.NumberOfSamples, err = readUint32(r); err != nil {
		return c, 8, pfx.Err(err)
	}

	magic := make([]byte, 4)
	if err := readBytes(r, magic); err != nil {
		return c, 12, pfx.Err(err)
	}
	if !bytes.Equal(magic, []byte(MagicNumber)) && !bytes.Equal(magic, []byte{0, 0, 0, 0}) {
		return c, 16, pfx.Err(fmt.Errorf("the header value at offset %d is expected to resolve to the magic number %q (%v as a byte slice), but instead resolved to %v",
			offsetMagicNumber, MagicNumber, []byte(MagicNumber), magic))
	}

	c.FreeData = make([]byte, headerSize-fixedHeaderSize)
	if err := readBytes(r, c.FreeData); err != nil {
		return c, 16, pfx.Err(err)
	}

	flags, err := readUint32(r)
	if err != nil {
		return c, int(headerSize) - 4, pfx.Err(err)
	}

	c.Compression = Compression(flags & flagsCompressionMask)
	if c.Compression > CompressionZStandard {
		return c, int(headerSize), pfx.Err(fmt.Errorf("%w: compression flag %d", ErrUnsupportedCompression, uint32(c.Compression)))
	}

	c.Layout = Layout((flags & flagsLayoutMask) >> flagsLayoutShift)
	if c.Layout != Layout1 && c.Layout != Layout2 {
		return c, int(headerSize), pfx.Err(fmt.Errorf("%w: layout flag %d", ErrUnsupportedLayout, uint32(c.Layout)))
	}

	c.HasSampleIdentifiers = flags&flagsSampleIdentifier != 0

	return c, int(headerSize), nil
}

// WriteHeaderBlock encodes the header block (everything after the offset
// field) and returns the number of bytes written.
func WriteHeaderBlock(w io.Writer, c Context) (int, error) {
	if err := writeUint32(w, c.HeaderSize()); err != nil {
		return 0, pfx.Err(err)
	}
	if err := writeUint32(w, c.NumberOfVariants); err != nil {
		return 4, pfx.Err(err)
	}
	if err := writeUint32(w, c.NumberOfSamples); err != nil {
		return 8, pfx.Err(err)
	}
	if err := writeBytes(w, []byte(MagicNumber)); err != nil {
		return 12, pfx.Err(err)
	}
	if err := writeBytes(w, c.FreeData); err != nil {
		return 16, pfx.Err(err)
	}
	if err := writeUint32(w, c.Flags()); err != nil {
		return int(c.HeaderSize()) - 4, pfx.Err(err)
	}

	return int(c.HeaderSize()), nil
}
