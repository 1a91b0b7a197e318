package bgen

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// FileMetadata fingerprints a BGEN file so an index can detect that the data
// file changed out from under it.
type FileMetadata struct {
	Filename      string
	Size          int64
	LastWriteTime int64

	// FirstBytes holds the file's first 1000 bytes (fewer for tiny files).
	FirstBytes []byte
}

const fingerprintBytes = 1000

type viewState int

const (
	stateAtVariantID viewState = iota
	stateAtProbBlock
)

// View is a stateful reader over a BGEN file: it decodes the header once at
// open, then serves variants through a cursor that advances monotonically
// unless a query explicitly seeks. A View must not be shared across
// goroutines.
type View struct {
	FilePath string

	file     inputHandle
	offset   uint32
	context  Context
	metadata FileMetadata

	sampleIDs []string

	state        viewState
	variantsSeen uint32

	query   *IndexQuery
	queryIx int

	// Cached buffers, reused across variants.
	compressed   []byte
	uncompressed []byte

	// Shape of the most recently decoded layout-2 block.
	lastBits   uint8
	lastPhased bool
}

// NewView opens the BGEN file at path (a local path or a gs:// URL), decodes
// its header and sample-identifier block, and captures the file's
// fingerprint. The View owns the underlying handle until Close.
func NewView(path string) (*View, error) {
	file, size, mtime, err := openInput(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	v := &View{
		FilePath: path,
		file:     file,
		metadata: FileMetadata{
			Filename:      path,
			Size:          size,
			LastWriteTime: mtime,
		},
	}

	n := int64(fingerprintBytes)
	if size < n {
		n = size
	}
	v.metadata.FirstBytes = make([]byte, n)
	if err := readBytes(file, v.metadata.FirstBytes); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}

	if v.offset, err = ReadOffset(file); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}
	if v.context, _, err = ReadHeaderBlock(file); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}

	if v.context.HasSampleIdentifiers {
		if v.sampleIDs, _, err = readSampleIdentifierBlock(v); err != nil {
			file.Close()
			return nil, pfx.Err(err)
		}
	}

	// The variant stream begins at offset+4 regardless of how much of the
	// sample block we consumed.
	if _, err := file.Seek(int64(v.offset)+4, io.SeekStart); err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}

	v.state = stateAtVariantID
	return v, nil
}

func (v *View) Close() error {
	return v.file.Close()
}

// Context returns the header descriptor. The caller must not modify it.
func (v *View) Context() *Context {
	return &v.context
}

// FileMetadata returns the fingerprint captured at open.
func (v *View) FileMetadata() *FileMetadata {
	return &v.metadata
}

// Offset returns the u32 offset field from the start of the file.
func (v *View) Offset() uint32 {
	return v.offset
}

// NumberOfVariants returns the advisory variant count: the attached query's
// plan size, or the header's count when no query is set.
func (v *View) NumberOfVariants() uint32 {
	if v.query != nil {
		return uint32(v.query.NumberOfVariants())
	}

	return v.context.NumberOfVariants
}

// CurrentFilePosition reports the byte offset of the cursor.
func (v *View) CurrentFilePosition() (int64, error) {
	pos, err := v.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, pfx.Err(err)
	}

	return pos, nil
}

// SetQuery directs subsequent ReadVariant calls to serve variants in the
// plan's order, seeking to each plan entry before decoding it.
func (v *View) SetQuery(q *IndexQuery) error {
	if !q.initialised {
		return pfx.Err(fmt.Errorf("%w: query attached before Initialise", ErrStateViolation))
	}

	v.query = q
	v.queryIx = 0
	return nil
}

// ReadVariant advances the cursor past the next variant's identifying block,
// leaving it at the start of the probability block. It returns false at the
// end of the stream (or of the plan, when a query is attached).
func (v *View) ReadVariant(variant *Variant) (bool, error) {
	if v.state != stateAtVariantID {
		return false, pfx.Err(fmt.Errorf("%w: ReadVariant called with an unread probability block pending", ErrStateViolation))
	}

	if v.query != nil {
		if v.queryIx >= v.query.NumberOfVariants() {
			return false, nil
		}
		entry := v.query.LocateVariant(v.queryIx)
		v.queryIx++
		if _, err := v.file.Seek(entry.FileStart, io.SeekStart); err != nil {
			return false, pfx.Err(err)
		}
	}

	if err := ReadSNPIdentifyingData(v.file, &v.context, variant); err != nil {
		if err == io.EOF && v.query == nil {
			return false, nil
		}

		return false, pfx.Err(err)
	}

	v.state = stateAtProbBlock
	v.variantsSeen++
	return true, nil
}

// IgnoreGenotypeDataBlock skips the pending probability block using its
// length prefix, without decompressing anything.
func (v *View) IgnoreGenotypeDataBlock() error {
	if v.state != stateAtProbBlock {
		return pfx.Err(fmt.Errorf("%w: no probability block is pending", ErrStateViolation))
	}

	var skip int64
	switch v.context.Layout {
	case Layout1:
		if v.context.Compression == CompressionDisabled {
			// No length prefix; the block is 6 bytes per sample.
			skip = 6 * int64(v.context.NumberOfSamples)
		} else {
			size, err := readUint32(v.file)
			if err != nil {
				return truncated(err)
			}
			skip = int64(size)
		}
	case Layout2:
		size, err := readUint32(v.file)
		if err != nil {
			return truncated(err)
		}
		skip = int64(size)
	}

	if _, err := v.file.Seek(skip, io.SeekCurrent); err != nil {
		return pfx.Err(err)
	}

	v.state = stateAtVariantID
	return nil
}

// readDecompressedBlock reads the pending probability block and returns its
// decompressed payload, which aliases a buffer owned by the View.
func (v *View) readDecompressedBlock() ([]byte, error) {
	if v.state != stateAtProbBlock {
		return nil, pfx.Err(fmt.Errorf("%w: no probability block is pending", ErrStateViolation))
	}

	var compressedSize, uncompressedSize int

	switch v.context.Layout {
	case Layout1:
		uncompressedSize = 6 * int(v.context.NumberOfSamples)
		switch v.context.Compression {
		case CompressionDisabled:
			compressedSize = uncompressedSize
		case CompressionZLIB:
			size, err := readUint32(v.file)
			if err != nil {
				return nil, truncated(err)
			}
			compressedSize = int(size)
		default:
			return nil, pfx.Err(fmt.Errorf("%w: compression choice %s is not compatible with %s", ErrUnsupportedCompression, v.context.Compression, v.context.Layout))
		}

	case Layout2:
		size, err := readUint32(v.file)
		if err != nil {
			return nil, truncated(err)
		}
		if v.context.Compression == CompressionDisabled {
			compressedSize = int(size)
			uncompressedSize = int(size)
		} else {
			dSize, err := readUint32(v.file)
			if err != nil {
				return nil, truncated(err)
			}
			compressedSize = int(size) - 4
			uncompressedSize = int(dSize)
		}
	}

	if cap(v.compressed) < compressedSize {
		v.compressed = make([]byte, compressedSize)
	}
	v.compressed = v.compressed[:compressedSize]
	if err := readBytes(v.file, v.compressed); err != nil {
		return nil, truncated(err)
	}

	v.state = stateAtVariantID

	if v.context.Compression == CompressionDisabled {
		return v.compressed, nil
	}

	out, err := Decompress(v.context.Compression, v.compressed, uncompressedSize)
	if err != nil {
		return nil, pfx.Err(err)
	}
	v.uncompressed = out

	return out, nil
}

// ReadGenotypeDataBlock decodes the pending probability block, driving the
// full decode against the sink.
func (v *View) ReadGenotypeDataBlock(sink VariantDataSink) error {
	data, err := v.readDecompressedBlock()
	if err != nil {
		return err
	}

	if v.context.Layout == Layout1 {
		return ParseProbabilityDataV11(data, &v.context, sink)
	}

	var pack GenotypeDataBlock
	if err := UnpackGenotypeDataBlock(data, &v.context, &pack); err != nil {
		return err
	}
	v.lastBits = pack.Bits
	v.lastPhased = pack.Phased

	return ParseProbabilityDataV12(&pack, sink)
}

// ReadAndUnpackV12GenotypeDataBlock decompresses the pending layout-2 block
// into a GenotypeDataBlock without decoding probabilities. The pack aliases
// View-owned buffers and is valid only until the next block is read.
func (v *View) ReadAndUnpackV12GenotypeDataBlock(pack *GenotypeDataBlock) error {
	if v.context.Layout != Layout2 {
		return pfx.Err(fmt.Errorf("%w: layout is %s", ErrUnsupportedLayout, v.context.Layout))
	}

	data, err := v.readDecompressedBlock()
	if err != nil {
		return err
	}

	return UnpackGenotypeDataBlock(data, &v.context, pack)
}

// ReadProbabilities decodes the pending probability block into a
// freshly-allocated Probability.
func (v *View) ReadProbabilities() (*Probability, error) {
	collector := NewProbabilityCollector()
	if err := v.ReadGenotypeDataBlock(collector); err != nil {
		return nil, err
	}

	if v.context.Layout == Layout2 {
		// Recover bit width and phasedness for the caller; the collector
		// only sees dequantized values.
		collector.P.NProbabilityBits = v.lastBits
		collector.P.Phased = v.lastPhased
	} else {
		collector.P.NProbabilityBits = 16
	}

	return collector.P, nil
}

// GetSampleIDs invokes cb once per stored sample identifier, in file order.
// Files without a sample-identifier block invoke cb zero times.
func (v *View) GetSampleIDs(cb func(id string)) {
	for _, id := range v.sampleIDs {
		cb(id)
	}
}
