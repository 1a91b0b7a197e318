package bgen

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// ConcatOptions control Concatenate.
type ConcatOptions struct {
	// SetFreeData, when non-nil, replaces the output's free-data field. The
	// replacement may change the free-data length; the offset is adjusted.
	SetFreeData *string

	// OmitSampleIdentifierBlock drops the first file's sample-identifier
	// block from the output and clears its header flag.
	OmitSampleIdentifierBlock bool

	// Logf, when set, receives per-file progress messages.
	Logf func(format string, args ...interface{})
}

// Concatenate copies the first input whole, then appends each subsequent
// input's post-header variant stream, verifying that sample counts and
// header flags match the first file. The output header is finally rewritten
// in place with the summed variant count, so out must be seekable.
func Concatenate(filenames []string, inputs []io.ReadSeeker, out io.WriteSeeker, opts ConcatOptions) (Context, error) {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	var result Context
	if len(inputs) == 0 || len(inputs) != len(filenames) {
		return result, pfx.Err(fmt.Errorf("%d input files for %d filenames", len(inputs), len(filenames)))
	}

	// The first file's header is kept (possibly with edits).
	offset, err := ReadOffset(inputs[0])
	if err != nil {
		return result, err
	}
	if result, _, err = ReadHeaderBlock(inputs[0]); err != nil {
		return result, err
	}

	// Later inputs are checked against the first file's flags as stored,
	// before any of the edits below change them.
	firstFlags := result.Flags()

	logf("Adding file %q (%d of %d, %d variants)...\n", filenames[0], 1, len(inputs), result.NumberOfVariants)

	if opts.OmitSampleIdentifierBlock {
		result.HasSampleIdentifiers = false
		if _, err := inputs[0].Seek(int64(offset)+4, io.SeekStart); err != nil {
			return result, pfx.Err(err)
		}
		offset = result.HeaderSize()
	}

	if opts.SetFreeData != nil {
		offset += uint32(len(*opts.SetFreeData)) - uint32(len(result.FreeData))
		result.FreeData = []byte(*opts.SetFreeData)
	}

	if err := WriteOffset(out, offset); err != nil {
		return result, err
	}
	if _, err := WriteHeaderBlock(out, result); err != nil {
		return result, err
	}

	// Copy everything else: the sample block (unless we skipped past it)
	// and the variant stream.
	if _, err := io.Copy(out, inputs[0]); err != nil {
		return result, pfx.Err(err)
	}

	for i := 1; i < len(inputs); i++ {
		inOffset, err := ReadOffset(inputs[i])
		if err != nil {
			return result, err
		}
		context, _, err := ReadHeaderBlock(inputs[i])
		if err != nil {
			return result, err
		}

		logf("Adding file %q (%d of %d, %d variants)...\n", filenames[i], i+1, len(inputs), context.NumberOfVariants)

		if context.NumberOfSamples != result.NumberOfSamples {
			return result, pfx.Err(fmt.Errorf("input file #%d (%q) has the wrong number of samples (%d, expected %d)",
				i+1, filenames[i], context.NumberOfSamples, result.NumberOfSamples))
		}
		if context.Flags() != firstFlags {
			return result, pfx.Err(fmt.Errorf("input file #%d (%q) has the wrong flags (%x, expected %x)",
				i+1, filenames[i], context.Flags(), firstFlags))
		}

		// Seek forwards to data
		if _, err := inputs[i].Seek(int64(inOffset)+4, io.SeekStart); err != nil {
			return result, pfx.Err(err)
		}
		if _, err := io.Copy(out, inputs[i]); err != nil {
			return result, pfx.Err(err)
		}

		result.NumberOfVariants += context.NumberOfVariants
	}

	// Finally fix the number of variants in the header, which starts at
	// byte 4.
	if _, err := out.Seek(4, io.SeekStart); err != nil {
		return result, pfx.Err(err)
	}
	if _, err := WriteHeaderBlock(out, result); err != nil {
		return result, err
	}

	return result, nil
}
