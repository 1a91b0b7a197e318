package bgen

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChoose(t *testing.T) {
	cases := []struct{ n, k, want int }{
		{3, 1, 3},
		{4, 2, 6},
		{5, 1, 5},
		{2, 1, 2},
		{6, 3, 20},
		{1, 1, 1},
	}
	for _, c := range cases {
		if got := Choose(c.n, c.k); got != c.want {
			t.Errorf("Choose(%d, %d) = %d, want %d", c.n, c.k, got, c.want)
		}
	}
}

func TestEntryCounts(t *testing.T) {
	// Diploid biallelic unphased: 3 genotypes, 2 stored.
	nEntries, nStored := entryCounts(2, 2, false)
	require.Equal(t, 3, nEntries)
	require.Equal(t, 2, nStored)

	// Diploid triallelic unphased: C(4,2)=6 genotypes.
	nEntries, nStored = entryCounts(2, 3, false)
	require.Equal(t, 6, nEntries)
	require.Equal(t, 5, nStored)

	// Diploid biallelic phased: 2 haplotypes x 2 alleles.
	nEntries, nStored = entryCounts(2, 2, true)
	require.Equal(t, 4, nEntries)
	require.Equal(t, 2, nStored)
}

// decodeBlock runs a test variant's encoded block through the full decode.
func decodeBlock(t *testing.T, context *Context, v testVariant) *Probability {
	t.Helper()

	data := encodeV12Block(t, context, v)
	var pack GenotypeDataBlock
	require.NoError(t, UnpackGenotypeDataBlock(data, context, &pack))

	collector := NewProbabilityCollector()
	require.NoError(t, ParseProbabilityDataV12(&pack, collector))

	return collector.P
}

func TestParseProbabilityQuantization(t *testing.T) {
	// decode(encode(B)) must reproduce probabilities within 1/(2^bits-1).
	for _, bits := range []uint8{1, 2, 4, 8, 12, 16, 24, 32} {
		maxRaw := uint64(1)<<bits - 1
		tolerance := 1 / float64(maxRaw)

		v := testVariant{
			rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: bits,
			samples: []testSample{
				{ploidy: 2, raw: []uint64{maxRaw, 0}},
				{ploidy: 2, raw: []uint64{0, maxRaw}},
				{ploidy: 2, raw: []uint64{maxRaw / 3, maxRaw / 3}},
			},
		}
		context := &Context{NumberOfSamples: 3}

		p := decodeBlock(t, context, v)
		require.Len(t, p.SampleProbabilities, 3)

		for si, s := range v.samples {
			got := p.SampleProbabilities[si].Probabilities
			require.Len(t, got, 3)

			pAA := float64(s.raw[0]) / float64(maxRaw)
			pAB := float64(s.raw[1]) / float64(maxRaw)
			expected := []float64{pAA, pAB, 1 - pAA - pAB}
			for i := range expected {
				require.InDelta(t, expected[i], got[i], tolerance, "bits=%d sample=%d entry=%d", bits, si, i)
			}
		}
	}
}

func TestParseProbabilityMissingSample(t *testing.T) {
	context := &Context{NumberOfSamples: 2}
	v := testVariant{
		rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: 8,
		samples: []testSample{
			missingDiploid8(),
			diploid8(255, 0),
		},
	}

	p := decodeBlock(t, context, v)
	require.True(t, p.SampleProbabilities[0].Missing)
	require.False(t, p.SampleProbabilities[1].Missing)

	// The bits of the missing sample are consumed: the second sample still
	// decodes correctly.
	require.InDelta(t, 1.0, p.SampleProbabilities[1].Probabilities[0], 1e-9)
}

func TestParseProbabilityPhased(t *testing.T) {
	context := &Context{NumberOfSamples: 1}
	v := testVariant{
		rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: 8, phased: true,
		// Two haplotypes, one stored probability each: hap0 is A, hap1 is G.
		samples: []testSample{{ploidy: 2, raw: []uint64{255, 0}}},
	}

	p := decodeBlock(t, context, v)
	require.True(t, p.Phased)

	probs := p.SampleProbabilities[0].Probabilities
	require.Len(t, probs, 4)
	require.InDelta(t, 1.0, probs[0], 1e-9) // hap 0, allele A
	require.InDelta(t, 0.0, probs[1], 1e-9)
	require.InDelta(t, 0.0, probs[2], 1e-9)
	require.InDelta(t, 1.0, probs[3], 1e-9) // hap 1, allele G
}

func TestParseProbabilityMultiallelic(t *testing.T) {
	context := &Context{NumberOfSamples: 1}
	// Diploid, 3 alleles: six genotypes in colex order, five stored.
	raw := []uint64{51, 102, 25, 12, 38}
	v := testVariant{
		rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "C", "G"}, bits: 8,
		samples: []testSample{{ploidy: 2, raw: raw}},
	}

	p := decodeBlock(t, context, v)
	probs := p.SampleProbabilities[0].Probabilities
	require.Len(t, probs, 6)

	sum := float64(0)
	for _, value := range probs {
		sum += value
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	for i, r := range raw {
		require.InDelta(t, float64(r)/255, probs[i], 1e-9)
	}
}

func TestParseProbabilityVariablePloidy(t *testing.T) {
	context := &Context{NumberOfSamples: 2}
	v := testVariant{
		rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: 8,
		samples: []testSample{
			// Haploid: two genotypes, one stored.
			{ploidy: 1, raw: []uint64{255}},
			{ploidy: 2, raw: []uint64{0, 255}},
		},
	}

	p := decodeBlock(t, context, v)
	require.Equal(t, uint8(1), p.MinimumPloidy)
	require.Equal(t, uint8(2), p.MaximumPloidy)
	require.Len(t, p.SampleProbabilities[0].Probabilities, 2)
	require.Len(t, p.SampleProbabilities[1].Probabilities, 3)
	require.InDelta(t, 1.0, p.SampleProbabilities[0].Probabilities[0], 1e-9)
	require.InDelta(t, 1.0, p.SampleProbabilities[1].Probabilities[1], 1e-9)
}

// skipOddSink skips every odd sample.
type skipOddSink struct {
	ProbabilityCollector
	skipped int
}

func (s *skipOddSink) SetSample(i int) bool {
	if i%2 == 1 {
		s.skipped++
		return false
	}
	return s.ProbabilityCollector.SetSample(i)
}

func TestParseProbabilitySkippedSamples(t *testing.T) {
	context := &Context{NumberOfSamples: 3}
	v := testVariant{
		rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: 8,
		samples: []testSample{
			diploid8(255, 0),
			diploid8(0, 255),
			diploid8(0, 0),
		},
	}

	data := encodeV12Block(t, context, v)
	var pack GenotypeDataBlock
	require.NoError(t, UnpackGenotypeDataBlock(data, context, &pack))

	sink := &skipOddSink{ProbabilityCollector: *NewProbabilityCollector()}
	require.NoError(t, ParseProbabilityDataV12(&pack, sink))

	require.Equal(t, 1, sink.skipped)
	require.Len(t, sink.P.SampleProbabilities, 2)
	// Sample 2's bits follow the skipped sample's bits and still line up.
	require.InDelta(t, 1.0, sink.P.SampleProbabilities[1].Probabilities[2], 1e-9)
}

func TestParseProbabilityDataV11(t *testing.T) {
	context := &Context{Layout: Layout1, NumberOfSamples: 2}

	var buf bytes.Buffer
	// Sample 0: certain AB. Sample 1: missing (all zeros).
	for _, u := range []uint16{0, 32768, 0, 0, 0, 0} {
		require.NoError(t, writeUint16(&buf, u))
	}

	collector := NewProbabilityCollector()
	require.NoError(t, ParseProbabilityDataV11(buf.Bytes(), context, collector))

	require.Len(t, collector.P.SampleProbabilities, 2)
	require.False(t, collector.P.SampleProbabilities[0].Missing)
	require.InDelta(t, 1.0, collector.P.SampleProbabilities[0].Probabilities[1], 1e-9)
	require.True(t, collector.P.SampleProbabilities[1].Missing)
}

func TestParseProbabilityDataV11WrongSize(t *testing.T) {
	context := &Context{Layout: Layout1, NumberOfSamples: 2}
	err := ParseProbabilityDataV11(make([]byte, 11), context, NewProbabilityCollector())
	require.ErrorIs(t, err, ErrCompressionMismatch)
}

func TestUnpackGenotypeDataBlockValidation(t *testing.T) {
	context := &Context{NumberOfSamples: 3}
	v := twoTestVariants()[0]
	data := encodeV12Block(t, context, v)

	var pack GenotypeDataBlock

	wrongSamples := &Context{NumberOfSamples: 4}
	require.ErrorIs(t, UnpackGenotypeDataBlock(data, wrongSamples, &pack), ErrInvalidVariantRecord)

	bad := append([]byte(nil), data...)
	bad[9+3] = 0 // zero bits
	require.ErrorIs(t, UnpackGenotypeDataBlock(bad, context, &pack), ErrInvalidVariantRecord)

	require.ErrorIs(t, UnpackGenotypeDataBlock(data[:5], context, &pack), ErrTruncatedInput)
}

func TestProbabilitySumProperty(t *testing.T) {
	// For any decoded unphased sample the probabilities sum to exactly 1:
	// the last entry is implicit.
	context := &Context{NumberOfSamples: 1}
	for _, raw := range [][]uint64{{0, 0}, {100, 100}, {255, 0}, {37, 81}} {
		v := testVariant{
			rsid: "rs1", chrom: "01", pos: 1, alleles: []string{"A", "G"}, bits: 8,
			samples: []testSample{{ploidy: 2, raw: raw}},
		}
		p := decodeBlock(t, context, v)

		sum := float64(0)
		for _, value := range p.SampleProbabilities[0].Probabilities {
			sum += value
		}
		require.True(t, math.Abs(sum-1) < 1e-12)
	}
}
