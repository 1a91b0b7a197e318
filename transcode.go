package bgen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// TranscodeOptions control the v1.1 and VCF transcoders.
type TranscodeOptions struct {
	// CompressionLevel is the zlib level used when emitting v1.1 blocks.
	CompressionLevel int

	// Progress, when set, is called after each transcoded variant.
	Progress func(done, total uint32)
}

// computeV11ProbabilityEncodingTable precomputes the layout-2-to-layout-1
// probability conversion. In 8-bit layout-2 encoding each diploid sample is
// two bytes: first byte = p_AA*255, second byte = p_AB*255, with p_BB
// implied. The table maps that 16-bit pair to a 48-bit value holding the
// three layout-1 u16 probabilities scaled by 32768.
func computeV11ProbabilityEncodingTable() []uint64 {
	table := make([]uint64, 65536)
	for x := uint64(0); x <= 255; x++ {
		for y := uint64(0); y <= 255-x; y++ {
			z := 255 - x - y
			key := y<<8 | x
			a := uint64(math.Round(float64(x) / 255 * 32768))
			b := uint64(math.Round(float64(y) / 255 * 32768))
			c := uint64(math.Round(float64(z) / 255 * 32768))
			table[key] = a | b<<16 | c<<32
		}
	}

	return table
}

// TranscodeToV11 rewrites the view's variants as a BGEN v1.1 (layout 1,
// zlib) file. Only 8-bit, unphased, diploid, biallelic layout-2 input is
// supported; anything else fails with ErrUnsupportedTranscode.
func TranscodeToV11(view *View, w io.Writer, opts TranscodeOptions) error {
	if view.Context().Layout != Layout2 {
		return pfx.Err(fmt.Errorf("%w: input layout is %s, only %s can be transcoded to v1.1", ErrUnsupportedTranscode, view.Context().Layout, Layout2))
	}

	outputContext := *view.Context()
	outputContext.Layout = Layout1
	outputContext.Compression = CompressionZLIB
	outputContext.HasSampleIdentifiers = false
	outputContext.FreeData = append([]byte(nil), view.Context().FreeData...)
	outputContext.NumberOfVariants = view.NumberOfVariants()

	if err := WriteOffset(w, outputContext.HeaderSize()); err != nil {
		return err
	}
	if _, err := WriteHeaderBlock(w, outputContext); err != nil {
		return err
	}

	table := computeV11ProbabilityEncodingTable()
	nSamples := int(outputContext.NumberOfSamples)
	serialisation := make([]byte, 6*nSamples)
	var idData bytes.Buffer

	total := view.NumberOfVariants()
	var v Variant
	var pack GenotypeDataBlock

	for i := uint32(0); i < total; i++ {
		ok, err := view.ReadVariant(&v)
		if err != nil {
			return err
		}
		if !ok {
			return pfx.Err(fmt.Errorf("%w: stream ended after %d of %d variants", ErrTruncatedInput, i, total))
		}

		if len(v.Alleles) != 2 {
			return pfx.Err(fmt.Errorf("%w: found variant with %d alleles, only 2 alleles are supported by BGEN v1.1", ErrUnsupportedTranscode, len(v.Alleles)))
		}

		idData.Reset()
		if err := WriteSNPIdentifyingData(
			&idData, &outputContext,
			v.ID, v.RSID, v.Chromosome, v.Position,
			2, func(i int) string { return string(v.Alleles[i]) },
		); err != nil {
			return err
		}

		if err := view.ReadAndUnpackV12GenotypeDataBlock(&pack); err != nil {
			return err
		}

		if pack.Bits != 8 {
			return pfx.Err(fmt.Errorf("%w: expected 8 bits per probability, found %d", ErrUnsupportedTranscode, pack.Bits))
		}
		if pack.Phased {
			return pfx.Err(fmt.Errorf("%w: expected unphased data", ErrUnsupportedTranscode))
		}
		if pack.PloidyExtent[0] != 2 || pack.PloidyExtent[1] != 2 {
			return pfx.Err(fmt.Errorf("%w: expected diploid samples, found ploidy %d-%d", ErrUnsupportedTranscode, pack.PloidyExtent[0], pack.PloidyExtent[1]))
		}
		if len(pack.Buffer) < 2*nSamples {
			return pfx.Err(fmt.Errorf("%w: %d probability bytes for %d samples", ErrTruncatedInput, len(pack.Buffer), nSamples))
		}

		for s := 0; s < nSamples; s++ {
			out := serialisation[6*s : 6*s+6]
			if pack.Ploidy[s]&0x80 != 0 {
				// data is missing, encode as zeros.
				for b := range out {
					out[b] = 0
				}
				continue
			}
			value := table[binary.LittleEndian.Uint16(pack.Buffer[2*s:])]
			binary.LittleEndian.PutUint16(out[0:2], uint16(value))
			binary.LittleEndian.PutUint16(out[2:4], uint16(value>>16))
			binary.LittleEndian.PutUint16(out[4:6], uint16(value>>32))
		}

		compressed, err := Compress(CompressionZLIB, serialisation, opts.CompressionLevel)
		if err != nil {
			return err
		}

		if err := writeBytes(w, idData.Bytes()); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(compressed))); err != nil {
			return err
		}
		if err := writeBytes(w, compressed); err != nil {
			return err
		}

		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}

	return nil
}

// vcfEncodingTable maps a packed (x,y) genotype key to a fixed-width
// "<GT>:<p_AA>,<p_AB>,<p_BB>" field for one bit width.
type vcfEncodingTable struct {
	valueSize int
	data      []byte
}

func vcfDecimalPlaces(bits uint8) int {
	switch bits {
	case 1:
		return 0
	case 2:
		return 2
	case 4:
		return 3
	default:
		return 4
	}
}

func computeVCFEncodingTable(bits uint8) *vcfEncodingTable {
	dps := vcfDecimalPlaces(bits)

	// Each probability renders as dps+2 bytes ("x.xxx…"), or one byte when
	// dps is zero. GT is 3 bytes, plus one colon and two commas.
	probWidth := dps + 1
	if dps > 0 {
		probWidth = dps + 2
	}
	valueSize := 3 + 3 + 3*probWidth

	nDistinct := 1 << bits
	maxProb := nDistinct - 1

	data := bytes.Repeat([]byte{' '}, valueSize*nDistinct*nDistinct)
	for x := 0; x <= maxProb; x++ {
		for y := 0; y <= maxProb-x; y++ {
			z := maxProb - x - y
			key := y<<bits | x
			p0 := float64(x) / float64(maxProb)
			p1 := float64(y) / float64(maxProb)
			p2 := float64(z) / float64(maxProb)

			gt := "./."
			switch {
			case p0 > 0.9:
				gt = "0/0"
			case p1 > 0.9:
				gt = "0/1"
			case p2 > 0.9:
				gt = "1/1"
			}

			field := fmt.Sprintf("%s:%.*f,%.*f,%.*f", gt, dps, p0, dps, p1, dps, p2)
			copy(data[key*valueSize:], field)
		}
	}

	return &vcfEncodingTable{valueSize: valueSize, data: data}
}

// extractEncodedGenotype pulls sample i's raw 2*bits-bit genotype encoding
// out of a packed diploid buffer.
func extractEncodedGenotype(buffer []byte, i int, bits uint8) uint16 {
	byteIx := 2 * i * int(bits) / 8
	word := uint16(buffer[byteIx])
	if byteIx+1 < len(buffer) {
		word |= uint16(buffer[byteIx+1]) << 8
	}

	mask := uint16(0xFFFF) >> (16 - 2*bits)
	shift := 0
	if bits < 4 {
		shift = 2 * int(bits) * (i % (4 / int(bits)))
	}

	return (word >> shift) & mask
}

const vcfHeader = "##fileformat=VCFv4.2\n" +
	"##FORMAT=<ID=GT,Type=String,Number=1,Description=\"Threshholded genotype call\">\n" +
	"##FORMAT=<ID=GP,Type=Float,Number=G,Description=\"Genotype call probabilities\">\n" +
	"##FORMAT=<ID=HP,Type=Float,Number=.,Description=\"Haplotype call probabilities\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT"

// TranscodeToVCF writes the view's variants as VCF text. Layout-2 diploid
// biallelic unphased data at 1, 2, 4 or 8 bits goes through per-bit-width lookup
// tables; everything else is decoded generically through a sink.
func TranscodeToVCF(view *View, w io.Writer, opts TranscodeOptions) error {
	var header bytes.Buffer
	header.WriteString(vcfHeader)
	view.GetSampleIDs(func(id string) {
		header.WriteByte('\t')
		header.WriteString(id)
	})
	header.WriteByte('\n')
	if err := writeBytes(w, header.Bytes()); err != nil {
		return err
	}

	encodingTables := map[uint8]*vcfEncodingTable{}
	var lineBuf []byte

	total := view.NumberOfVariants()
	var v Variant
	var pack GenotypeDataBlock

	for i := uint32(0); i < total; i++ {
		ok, err := view.ReadVariant(&v)
		if err != nil {
			return err
		}
		if !ok {
			return pfx.Err(fmt.Errorf("%w: stream ended after %d of %d variants", ErrTruncatedInput, i, total))
		}
		if len(v.Alleles) < 2 {
			return pfx.Err(fmt.Errorf("%w: variant %q has %d alleles", ErrInvalidVariantRecord, v.RSID, len(v.Alleles)))
		}

		id := v.RSID
		if v.ID != v.RSID {
			id = v.RSID + ";" + v.ID
		}

		lineBuf = lineBuf[:0]
		lineBuf = append(lineBuf, v.Chromosome...)
		lineBuf = append(lineBuf, '\t')
		lineBuf = strconv.AppendUint(lineBuf, uint64(v.Position), 10)
		lineBuf = append(lineBuf, '\t')
		lineBuf = append(lineBuf, id...)
		lineBuf = append(lineBuf, '\t')
		lineBuf = append(lineBuf, v.Alleles[0]...)
		lineBuf = append(lineBuf, '\t')
		for j := 1; j < len(v.Alleles); j++ {
			if j > 1 {
				lineBuf = append(lineBuf, ',')
			}
			lineBuf = append(lineBuf, v.Alleles[j]...)
		}
		lineBuf = append(lineBuf, "\t.\t.\t.\tGT:GP"...)
		if err := writeBytes(w, lineBuf); err != nil {
			return err
		}

		if view.Context().Layout == Layout2 {
			if err := view.ReadAndUnpackV12GenotypeDataBlock(&pack); err != nil {
				return err
			}

			fastBits := pack.Bits == 1 || pack.Bits == 2 || pack.Bits == 4 || pack.Bits == 8
			if fastBits && pack.NumberOfAlleles == 2 && pack.PloidyExtent[0] == 2 && pack.PloidyExtent[1] == 2 && !pack.Phased {
				table, ok := encodingTables[pack.Bits]
				if !ok {
					table = computeVCFEncodingTable(pack.Bits)
					encodingTables[pack.Bits] = table
				}
				if err := writeFastVCFSamples(w, &pack, table); err != nil {
					return err
				}
			} else {
				writer := newVCFProbWriter(w)
				if err := ParseProbabilityDataV12(&pack, writer); err != nil {
					return err
				}
				if writer.err != nil {
					return writer.err
				}
			}
		} else {
			// Use generic, possibly slow method
			writer := newVCFProbWriter(w)
			if err := view.ReadGenotypeDataBlock(writer); err != nil {
				return err
			}
			if writer.err != nil {
				return writer.err
			}
		}

		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}

	return nil
}

func writeFastVCFSamples(w io.Writer, pack *GenotypeDataBlock, table *vcfEncodingTable) error {
	buf := make([]byte, 0, int(pack.NumberOfSamples)*(1+table.valueSize)+1)
	for i := 0; i < int(pack.NumberOfSamples); i++ {
		if pack.Ploidy[i]&0x80 != 0 {
			buf = append(buf, "\t./."...)
			continue
		}

		genotype := int(extractEncodedGenotype(pack.Buffer, i, pack.Bits))
		buf = append(buf, '\t')
		buf = append(buf, table.data[genotype*table.valueSize:(genotype+1)*table.valueSize]...)
	}
	buf = append(buf, '\n')

	return writeBytes(w, buf)
}

// vcfProbWriter is the generic VCF sink used for data the fast path cannot
// serve: phased data, non-diploid samples, multiallelic variants and odd bit
// widths.
type vcfProbWriter struct {
	w   io.Writer
	err error

	nAlleles int
	data     []float64

	ploidy  int
	order   OrderType
	missing bool

	// Scratch for enumerating genotypes for the GT field.
	genotypeAlleleLimits []uint16
	genotype             []uint16
	gtBuffer             strings.Builder
}

func newVCFProbWriter(w io.Writer) *vcfProbWriter {
	return &vcfProbWriter{w: w}
}

func (s *vcfProbWriter) write(p []byte) {
	if s.err != nil {
		return
	}
	s.err = writeBytes(s.w, p)
}

func (s *vcfProbWriter) Initialise(nSamples, nAlleles int) {
	s.nAlleles = nAlleles
}

func (s *vcfProbWriter) SetMinMaxPloidy(minPloidy, maxPloidy, minEntries, maxEntries uint32) {
	if cap(s.data) < int(maxEntries) {
		s.data = make([]float64, 0, maxEntries)
	}
}

func (s *vcfProbWriter) SetSample(i int) bool {
	return true
}

func (s *vcfProbWriter) SetNumberOfEntries(ploidy, nEntries int, order OrderType, value ValueType) {
	s.data = s.data[:0]
	s.data = append(s.data, make([]float64, nEntries)...)
	s.ploidy = ploidy
	s.order = order
	s.missing = false
	s.write([]byte{'\t'})
}

func (s *vcfProbWriter) SetValue(entry int, value float64) {
	s.data[entry] = value
	if entry == len(s.data)-1 {
		s.writeSampleEntry()
	}
}

func (s *vcfProbWriter) SetMissingValue(entry int) {
	s.data[entry] = -1
	s.missing = true
	if entry == len(s.data)-1 {
		s.writeSampleEntry()
	}
}

func (s *vcfProbWriter) Finalise() {
	s.write([]byte{'\n'})
}

func (s *vcfProbWriter) writeSampleEntry() {
	var buf []byte

	if s.missing {
		separator := "/"
		if s.order == OrderPerPhasedHaplotypePerAllele {
			separator = "|"
		}
		for i := 0; i < s.ploidy; i++ {
			if i > 0 {
				buf = append(buf, separator...)
			}
			buf = append(buf, '.')
		}
	} else {
		buf = append(buf, s.constructGT(s.data, 0.9)...)
	}
	buf = append(buf, ':')

	for i, p := range s.data {
		if i > 0 {
			buf = append(buf, ',')
		}
		if p == -1 {
			buf = append(buf, '.')
		} else {
			buf = strconv.AppendFloat(buf, p, 'g', 6, 64)
		}
	}

	s.write(buf)
}

func (s *vcfProbWriter) constructGT(probs []float64, threshold float64) string {
	if s.order == OrderPerPhasedHaplotypePerAllele {
		return s.constructPhasedGT(probs, threshold)
	}

	return s.constructUnphasedGT(probs, threshold)
}

func (s *vcfProbWriter) constructPhasedGT(probs []float64, threshold float64) string {
	s.gtBuffer.Reset()
	// For phased data it is simple: per haplotype, the first allele whose
	// probability clears the threshold.
	for i := 0; i < s.ploidy; i++ {
		if i > 0 {
			s.gtBuffer.WriteByte('|')
		}
		j := 0
		for ; j < s.nAlleles; j++ {
			if probs[i*s.nAlleles+j] > threshold {
				break
			}
		}
		if j < s.nAlleles {
			s.gtBuffer.WriteString(strconv.Itoa(j))
		} else {
			s.gtBuffer.WriteByte('.')
		}
	}

	return s.gtBuffer.String()
}

func (s *vcfProbWriter) constructUnphasedGT(probs []float64, threshold float64) string {
	// To construct the GT field for unphased data we enumerate the possible
	// genotypes. With ploidy n and k alleles these are the k-vectors of
	// allele counts summing to n, in colex order: lexicographic order of
	// the vectors read right-to-left. E.g. for ploidy 3 and 3 alleles:
	// AAA, AAB, ABB, BBB, AAC, ABC, BBC, ACC, BCC, CCC.
	k := s.nAlleles

	s.genotypeAlleleLimits = s.genotypeAlleleLimits[:0]
	for i := 0; i < k-1; i++ {
		s.genotypeAlleleLimits = append(s.genotypeAlleleLimits, uint16(s.ploidy))
	}
	s.genotype = s.genotype[:0]
	s.genotype = append(s.genotype, make([]uint16, k)...)
	// First genotype is all ref allele.
	s.genotype[0] = uint16(s.ploidy)

	metThreshold := false
	for index := 0; index < len(probs); index++ {
		if probs[index] > threshold {
			metThreshold = true
			break
		}

		// Advance to the next genotype vector.
		j := 0
		for ; j < k-1; j++ {
			value := s.genotype[j+1]
			if value < s.genotypeAlleleLimits[j] {
				s.genotype[j+1]++
				s.genotype[0]--
				for l := 0; l < j; l++ {
					s.genotypeAlleleLimits[l]--
				}
				break
			}
			// This count is at its limit; all lower-order counts must
			// already be zero. Reset and carry.
			s.genotype[j+1] = 0
			s.genotype[0] += value
			for l := 0; l < j; l++ {
				s.genotypeAlleleLimits[l] += value
			}
		}
		if j == k-1 {
			break
		}
	}

	s.gtBuffer.Reset()
	if metThreshold {
		first := true
		for allele := 0; allele < k; allele++ {
			for count := uint16(0); count < s.genotype[allele]; count++ {
				if !first {
					s.gtBuffer.WriteByte('/')
				}
				s.gtBuffer.WriteString(strconv.Itoa(allele))
				first = false
			}
		}
	} else {
		for i := 0; i < s.ploidy; i++ {
			if i > 0 {
				s.gtBuffer.WriteByte('/')
			}
			s.gtBuffer.WriteByte('.')
		}
	}

	return s.gtBuffer.String()
}

// ProcessNoTranscode copies the selected variants' raw bytes, paying no
// decode cost: the original header (with the variant count overwritten to
// the plan's size), the sample-identifier block verbatim, then one raw
// byte-range copy per plan entry. The view's cursor is consumed.
func ProcessNoTranscode(view *View, q *IndexQuery, w io.Writer, progress func(done, total uint32)) error {
	if err := CheckMetadata(view.FileMetadata(), q.FileMetadata()); err != nil {
		return err
	}

	outputContext := *view.Context()
	outputContext.NumberOfVariants = uint32(q.NumberOfVariants())

	if err := WriteOffset(w, view.Offset()); err != nil {
		return err
	}
	if _, err := WriteHeaderBlock(w, outputContext); err != nil {
		return err
	}

	// Copy everything between the header and the variant data (the
	// sample-identifier block and any slack) verbatim.
	headerEnd := int64(outputContext.HeaderSize()) + 4
	if _, err := view.file.Seek(headerEnd, io.SeekStart); err != nil {
		return pfx.Err(err)
	}
	if _, err := io.CopyN(w, view.file, int64(view.Offset())+4-headerEnd); err != nil {
		return pfx.Err(err)
	}

	total := uint32(q.NumberOfVariants())
	for i := 0; i < q.NumberOfVariants(); i++ {
		entry := q.LocateVariant(i)
		if _, err := view.file.Seek(entry.FileStart, io.SeekStart); err != nil {
			return pfx.Err(err)
		}
		if _, err := io.CopyN(w, view.file, entry.Size); err != nil {
			return pfx.Err(err)
		}
		if progress != nil {
			progress(uint32(i+1), total)
		}
	}

	return nil
}
