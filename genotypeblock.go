package bgen

import (
	"encoding/binary"
	"fmt"

	"github.com/carbocation/pfx"
)

// GenotypeDataBlock is a view over a decompressed layout-2 probability
// block. Buffer holds the still-packed probability bits so transcoders can
// run lookup tables over the raw encoding without per-sample floating point.
type GenotypeDataBlock struct {
	NumberOfSamples uint32
	NumberOfAlleles uint16

	// PloidyExtent holds the minimum and maximum ploidy over all samples.
	PloidyExtent [2]uint8

	// Ploidy holds one byte per sample: ploidy in the low 6 bits, missing
	// in the high bit.
	Ploidy []byte

	Phased bool
	Bits   uint8

	// Buffer is the packed probability data following the bits field.
	Buffer []byte
}

// UnpackGenotypeDataBlock lays a GenotypeDataBlock over the decompressed
// bytes of a layout-2 probability block. The pack aliases data; it remains
// valid only as long as data does.
func UnpackGenotypeDataBlock(data []byte, context *Context, pack *GenotypeDataBlock) error {
	if len(data) < 10 {
		return pfx.Err(fmt.Errorf("%w: layout-2 block of %d bytes is missing its preamble", ErrTruncatedInput, len(data)))
	}

	pack.NumberOfSamples = binary.LittleEndian.Uint32(data[0:4])
	if pack.NumberOfSamples != context.NumberOfSamples {
		return pfx.Err(fmt.Errorf("%w: block encodes %d samples, header says %d", ErrInvalidVariantRecord, pack.NumberOfSamples, context.NumberOfSamples))
	}

	pack.NumberOfAlleles = binary.LittleEndian.Uint16(data[4:6])
	pack.PloidyExtent[0] = data[6]
	pack.PloidyExtent[1] = data[7]

	n := int(pack.NumberOfSamples)
	if len(data) < 10+n {
		return pfx.Err(fmt.Errorf("%w: layout-2 block of %d bytes cannot hold %d ploidy bytes", ErrTruncatedInput, len(data), n))
	}
	pack.Ploidy = data[8 : 8+n]

	phased := data[8+n]
	if phased > 1 {
		return pfx.Err(fmt.Errorf("%w: phased byte is %d", ErrInvalidVariantRecord, phased))
	}
	pack.Phased = phased == 1

	pack.Bits = data[9+n]
	if pack.Bits < 1 || pack.Bits > 32 {
		return pfx.Err(fmt.Errorf("%w: %d bits per probability", ErrInvalidVariantRecord, pack.Bits))
	}

	pack.Buffer = data[10+n:]
	return nil
}
