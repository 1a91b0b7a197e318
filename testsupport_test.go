package bgen

// Test-only encoders for synthesizing BGEN files. The library deliberately
// has no general-purpose layout-2 writer; tests build their own bytes so
// decode paths are exercised against independently-constructed input.

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

type testSample struct {
	ploidy  uint8
	missing bool

	// raw holds the stored (explicit) probability entries as raw
	// fixed-point values at the variant's bit width.
	raw []uint64
}

type testVariant struct {
	id, rsid, chrom string
	pos             uint32
	alleles         []string

	bits    uint8
	phased  bool
	samples []testSample
}

func diploid8(rawAA, rawAB uint64) testSample {
	return testSample{ploidy: 2, raw: []uint64{rawAA, rawAB}}
}

func missingDiploid8() testSample {
	return testSample{ploidy: 2, missing: true, raw: []uint64{0, 0}}
}

// bitPack packs values LSB-first at the given width, the layout-2 wire
// packing.
func bitPack(values []uint64, bits uint8) []byte {
	out := make([]byte, (len(values)*int(bits)+7)/8)
	offset := uint(0)
	for _, v := range values {
		byteIx := offset >> 3
		shift := offset & 7
		v = v & (uint64(1)<<bits - 1)
		window := v << shift
		for i := byteIx; window != 0; i++ {
			out[i] |= byte(window)
			window >>= 8
		}
		offset += uint(bits)
	}
	return out
}

// encodeV12Block builds the decompressed layout-2 probability payload for
// one variant.
func encodeV12Block(t *testing.T, context *Context, v testVariant) []byte {
	t.Helper()

	if len(v.samples) != int(context.NumberOfSamples) {
		t.Fatalf("variant %q has %d samples, context has %d", v.rsid, len(v.samples), context.NumberOfSamples)
	}

	minPloidy, maxPloidy := uint8(63), uint8(0)
	for _, s := range v.samples {
		if s.ploidy < minPloidy {
			minPloidy = s.ploidy
		}
		if s.ploidy > maxPloidy {
			maxPloidy = s.ploidy
		}
	}

	var buf bytes.Buffer
	mustWrite(t, writeUint32(&buf, context.NumberOfSamples))
	mustWrite(t, writeUint16(&buf, uint16(len(v.alleles))))
	mustWrite(t, writeUint8(&buf, minPloidy))
	mustWrite(t, writeUint8(&buf, maxPloidy))
	for _, s := range v.samples {
		b := s.ploidy
		if s.missing {
			b |= 0x80
		}
		mustWrite(t, writeUint8(&buf, b))
	}
	phased := uint8(0)
	if v.phased {
		phased = 1
	}
	mustWrite(t, writeUint8(&buf, phased))
	mustWrite(t, writeUint8(&buf, v.bits))

	var raw []uint64
	for _, s := range v.samples {
		raw = append(raw, s.raw...)
	}
	buf.Write(bitPack(raw, v.bits))

	return buf.Bytes()
}

// encodeTestBGEN serializes a complete layout-2 BGEN file.
func encodeTestBGEN(t *testing.T, context Context, sampleIDs []string, variants []testVariant) []byte {
	t.Helper()

	context.NumberOfVariants = uint32(len(variants))
	context.Layout = Layout2
	context.HasSampleIdentifiers = len(sampleIDs) > 0

	var sampleBlock bytes.Buffer
	if len(sampleIDs) > 0 {
		blockSize := 8
		for _, id := range sampleIDs {
			blockSize += 2 + len(id)
		}
		mustWrite(t, writeUint32(&sampleBlock, uint32(blockSize)))
		mustWrite(t, writeUint32(&sampleBlock, uint32(len(sampleIDs))))
		for _, id := range sampleIDs {
			mustWrite(t, writeString(&sampleBlock, id))
		}
	}

	var out bytes.Buffer
	offset := context.HeaderSize() + uint32(sampleBlock.Len())
	mustWrite(t, WriteOffset(&out, offset))
	if _, err := WriteHeaderBlock(&out, context); err != nil {
		t.Fatal(err)
	}
	out.Write(sampleBlock.Bytes())

	for _, v := range variants {
		err := WriteSNPIdentifyingData(&out, &context, v.id, v.rsid, v.chrom, v.pos,
			uint16(len(v.alleles)), func(i int) string { return v.alleles[i] })
		if err != nil {
			t.Fatal(err)
		}

		payload := encodeV12Block(t, &context, v)
		switch context.Compression {
		case CompressionDisabled:
			mustWrite(t, writeUint32(&out, uint32(len(payload))))
			out.Write(payload)
		default:
			compressed, err := Compress(context.Compression, payload, DefaultZlibCompressionLevel)
			if err != nil {
				t.Fatal(err)
			}
			mustWrite(t, writeUint32(&out, uint32(len(compressed))+4))
			mustWrite(t, writeUint32(&out, uint32(len(payload))))
			out.Write(compressed)
		}
	}

	return out.Bytes()
}

func writeTestBGEN(t *testing.T, context Context, sampleIDs []string, variants []testVariant) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.bgen")
	if err := os.WriteFile(path, encodeTestBGEN(t, context, sampleIDs, variants), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func mustWrite(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// twoVariantContext is the file shape most tests share: three samples, two
// biallelic 8-bit variants on chromosome 01.
func twoVariantContext() Context {
	return Context{
		NumberOfSamples: 3,
		Compression:     CompressionZLIB,
	}
}

func twoTestVariants() []testVariant {
	return []testVariant{
		{
			id: "SNPID_1", rsid: "RS_1", chrom: "01", pos: 100,
			alleles: []string{"A", "G"}, bits: 8,
			samples: []testSample{
				diploid8(255, 0),
				diploid8(0, 255),
				diploid8(0, 0),
			},
		},
		{
			id: "SNPID_2", rsid: "RS_2", chrom: "01", pos: 200,
			alleles: []string{"C", "T"}, bits: 8,
			samples: []testSample{
				diploid8(0, 0),
				diploid8(128, 64),
				missingDiploid8(),
			},
		},
	}
}
