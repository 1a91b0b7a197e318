package bgen

import (
	"fmt"

	"github.com/carbocation/pfx"
)

type Sample struct {
	SampleID string
}

// ReadSamples returns the sample identifiers stored in the file underlying
// the View.
func ReadSamples(v *View) ([]Sample, error) {
	if !v.context.HasSampleIdentifiers {
		return nil, pfx.Err(fmt.Errorf("this file indicates that it does not have sample IDs"))
	}

	samples := make([]Sample, 0, len(v.sampleIDs))
	for _, id := range v.sampleIDs {
		samples = append(samples, Sample{SampleID: id})
	}

	return samples, nil
}

// readSampleIdentifierBlock decodes the block that follows the header when
// flag bit 31 is set: a u32 block byte length, a u32 sample count, then one
// u16-length-prefixed identifier per sample. It returns the identifiers and
// the number of bytes consumed.
func readSampleIdentifierBlock(r *View) ([]string, int, error) {
	blockLength, err := readUint32(r.file)
	if err != nil {
		return nil, 0, pfx.Err(err)
	}

	nSamples, err := readUint32(r.file)
	if err != nil {
		return nil, 4, pfx.Err(err)
	}
	if nSamples != r.context.NumberOfSamples {
		return nil, 8, pfx.Err(fmt.Errorf("%w: sample identifier block holds %d samples, header says %d", ErrInvalidVariantRecord, nSamples, r.context.NumberOfSamples))
	}

	consumed := 8
	ids := make([]string, 0, nSamples)
	for i := uint32(0); i < nSamples; i++ {
		id, err := readString(r.file)
		if err != nil {
			return nil, consumed, truncated(err)
		}
		consumed += 2 + len(id)
		if consumed > int(blockLength) {
			return nil, consumed, pfx.Err(fmt.Errorf("%w: sample identifiers overrun their block length %d", ErrInvalidVariantRecord, blockLength))
		}
		ids = append(ids, id)
	}

	return ids, consumed, nil
}
