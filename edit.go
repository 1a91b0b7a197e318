package bgen

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// EditFreeData overwrites the file's free-data field in place. The new value
// must have exactly the length of the existing field: free data always
// starts at byte 20 and nothing after it may move. Without really, the
// checks run but the file is untouched.
func EditFreeData(filename string, f io.ReadWriteSeeker, freeData string, really bool) error {
	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return pfx.Err(err)
	}
	context, _, err := ReadHeaderBlock(f)
	if err != nil {
		return err
	}

	if len(context.FreeData) != len(freeData) {
		return pfx.Err(fmt.Errorf("in bgen file %q: size of new free data (%d bytes) does not match that of free data in file (%q, %d bytes)",
			filename, len(freeData), string(context.FreeData), len(context.FreeData)))
	}

	if !really {
		return nil
	}

	if _, err := f.Seek(offsetFreeStorage, io.SeekStart); err != nil {
		return pfx.Err(err)
	}

	return writeBytes(f, []byte(freeData))
}

// RemoveSampleIdentifiers clears the sample-identifier flag and zeroes the
// bytes between the header and the variant data. It reports whether the file
// had identifiers to remove. Without really, nothing is written.
func RemoveSampleIdentifiers(filename string, f io.ReadWriteSeeker, really bool) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, pfx.Err(err)
	}

	offset, err := ReadOffset(f)
	if err != nil {
		return false, err
	}
	context, headerSize, err := ReadHeaderBlock(f)
	if err != nil {
		return false, err
	}

	if !context.HasSampleIdentifiers {
		return false, nil
	}
	if !really {
		return true, nil
	}

	// First clear the flag; flags are the last four bytes of the header.
	context.HasSampleIdentifiers = false
	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return true, pfx.Err(err)
	}
	if _, err := WriteHeaderBlock(f, context); err != nil {
		return true, err
	}

	// Now blank out the identifiers.
	if _, err := f.Seek(int64(headerSize)+4, io.SeekStart); err != nil {
		return true, pfx.Err(err)
	}
	zeros := make([]byte, int64(offset)-int64(headerSize))

	return true, writeBytes(f, zeros)
}
