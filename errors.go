package bgen

import "errors"

// Error kinds shared across the codec, the view and the index layer. Call
// sites wrap these with detail via fmt.Errorf and %w so callers can test
// with errors.Is.
var (
	// ErrTruncatedInput indicates the file ended in the middle of a field.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrWriteFailed indicates a short or failed write to the output stream.
	ErrWriteFailed = errors.New("write failed")

	// ErrUnsupportedLayout indicates the header flags encode a layout
	// outside the enumerated set.
	ErrUnsupportedLayout = errors.New("unsupported layout")

	// ErrUnsupportedCompression indicates the header flags encode a
	// compression scheme outside the enumerated set.
	ErrUnsupportedCompression = errors.New("unsupported compression")

	// ErrUnsupportedTranscode indicates a variant cannot be represented in
	// the requested output format.
	ErrUnsupportedTranscode = errors.New("unsupported transcode")

	// ErrInvalidVariantRecord indicates a count mismatch or internal
	// inconsistency within a variant's identifying block.
	ErrInvalidVariantRecord = errors.New("invalid variant record")

	// ErrCompressionMismatch indicates decompressed data did not have the
	// length promised by the preceding size field.
	ErrCompressionMismatch = errors.New("decompressed size mismatch")

	// ErrStateViolation indicates a View method was called out of order.
	ErrStateViolation = errors.New("view state violation")

	// ErrIndexExists indicates an incomplete .tmp index from an earlier
	// build is already present and Clobber was not set.
	ErrIndexExists = errors.New("index file exists")

	// ErrIndexStale indicates the index fingerprint no longer matches the
	// data file.
	ErrIndexStale = errors.New("index is stale")

	// ErrIndexCorrupt indicates the index sidecar could not be read.
	ErrIndexCorrupt = errors.New("index is corrupt")
)
