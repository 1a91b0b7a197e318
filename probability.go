package bgen

import (
	"encoding/binary"
	"fmt"

	"github.com/carbocation/pfx"
)

type Probability struct {
	NSamples            uint32
	NAlleles            uint16
	MinimumPloidy       uint8
	MaximumPloidy       uint8
	Phased              bool
	NProbabilityBits    uint8 // nbits. Must be 1-32 inclusive (there is no uint4 which would otherwise suffice)
	SampleProbabilities []*SampleProbability
}

// SampleProbability represents the variant data for one specfific individual at
// one specific locus, including information on whether this data is missing,
// what that individual's ploidy is, and then either (1) the probabilities for
// the phased haplotype or (2) the probabilies for the genotypes.
type SampleProbability struct {
	Missing       bool
	Ploidy        uint8 // Limited to 0-63
	Probabilities []float64
}

// OrderType describes how a sample's probabilities are ordered.
type OrderType int

const (
	// OrderPerUnorderedGenotype: one probability per genotype multiset, in
	// colex order of the allele-count vectors.
	OrderPerUnorderedGenotype OrderType = iota

	// OrderPerPhasedHaplotypePerAllele: one probability per haplotype per
	// allele.
	OrderPerPhasedHaplotypePerAllele
)

// ValueType describes what kind of value the decoder is delivering.
type ValueType int

const (
	ValueProbability ValueType = iota
)

// VariantDataSink receives a probability block as it is decoded. Decoding
// drives the sink in a fixed order: Initialise, SetMinMaxPloidy, then per
// sample SetSample (returning false skips that sample), SetNumberOfEntries
// and the per-entry values, and a single Finalise at the end.
type VariantDataSink interface {
	Initialise(nSamples, nAlleles int)
	SetMinMaxPloidy(minPloidy, maxPloidy, minEntries, maxEntries uint32)
	SetSample(i int) bool
	SetNumberOfEntries(ploidy, nEntries int, order OrderType, value ValueType)
	SetValue(entry int, value float64)
	SetMissingValue(entry int)
	Finalise()
}

// entryCounts returns the total probability count delivered to the sink for
// one sample, and the count physically stored in the stream. The stored
// count omits one implicit probability per haplotype (phased) or per
// genotype vector (unphased): probabilities sum to one.
func entryCounts(ploidy, nAlleles int, phased bool) (nEntries, nStored int) {
	if phased {
		return ploidy * nAlleles, ploidy * (nAlleles - 1)
	}

	nEntries = Choose(ploidy+nAlleles-1, nAlleles-1)
	return nEntries, nEntries - 1
}

// ParseProbabilityDataV12 decodes a layout-2 probability block (already
// decompressed and unpacked into a GenotypeDataBlock) against a sink.
func ParseProbabilityDataV12(pack *GenotypeDataBlock, sink VariantDataSink) error {
	nSamples := int(pack.NumberOfSamples)
	nAlleles := int(pack.NumberOfAlleles)

	sink.Initialise(nSamples, nAlleles)

	minEntries, _ := entryCounts(int(pack.PloidyExtent[0]), nAlleles, pack.Phased)
	maxEntries, _ := entryCounts(int(pack.PloidyExtent[1]), nAlleles, pack.Phased)
	sink.SetMinMaxPloidy(
		uint32(pack.PloidyExtent[0]), uint32(pack.PloidyExtent[1]),
		uint32(minEntries), uint32(maxEntries),
	)

	order := OrderPerUnorderedGenotype
	if pack.Phased {
		order = OrderPerPhasedHaplotypePerAllele
	}

	denominator := float64(uint64(1)<<pack.Bits - 1)
	br := newBitReader(pack.Buffer)

	for i := 0; i < nSamples; i++ {
		ploidy := int(pack.Ploidy[i] & 0x3F)
		missing := pack.Ploidy[i]&0x80 != 0
		nEntries, nStored := entryCounts(ploidy, nAlleles, pack.Phased)

		if !sink.SetSample(i) {
			if err := br.Skip(uint(nStored) * uint(pack.Bits)); err != nil {
				return pfx.Err(err)
			}
			continue
		}

		sink.SetNumberOfEntries(ploidy, nEntries, order, ValueProbability)

		if missing {
			// A missing sample's bits are still present in the stream.
			if err := br.Skip(uint(nStored) * uint(pack.Bits)); err != nil {
				return pfx.Err(err)
			}
			for entry := 0; entry < nEntries; entry++ {
				sink.SetMissingValue(entry)
			}
			continue
		}

		if pack.Phased {
			for hap := 0; hap < ploidy; hap++ {
				sum := float64(0)
				for a := 0; a < nAlleles-1; a++ {
					raw, err := br.ReadUint(pack.Bits)
					if err != nil {
						return pfx.Err(err)
					}
					value := float64(raw) / denominator
					sum += value
					sink.SetValue(hap*nAlleles+a, value)
				}
				sink.SetValue(hap*nAlleles+nAlleles-1, 1-sum)
			}
		} else {
			sum := float64(0)
			for entry := 0; entry < nStored; entry++ {
				raw, err := br.ReadUint(pack.Bits)
				if err != nil {
					return pfx.Err(err)
				}
				value := float64(raw) / denominator
				sum += value
				sink.SetValue(entry, value)
			}
			sink.SetValue(nStored, 1-sum)
		}
	}

	sink.Finalise()
	return nil
}

// ParseProbabilityDataV11 decodes a layout-1 probability block: three u16
// integers per sample scaled by 32768, with all-zero triples meaning
// missing.
func ParseProbabilityDataV11(data []byte, context *Context, sink VariantDataSink) error {
	nSamples := int(context.NumberOfSamples)
	if len(data) != 6*nSamples {
		return pfx.Err(fmt.Errorf("%w: layout-1 block is %d bytes, expected %d", ErrCompressionMismatch, len(data), 6*nSamples))
	}

	sink.Initialise(nSamples, 2)
	sink.SetMinMaxPloidy(2, 2, 3, 3)

	for i := 0; i < nSamples; i++ {
		if !sink.SetSample(i) {
			continue
		}
		sink.SetNumberOfEntries(2, 3, OrderPerUnorderedGenotype, ValueProbability)

		aa := binary.LittleEndian.Uint16(data[6*i:])
		ab := binary.LittleEndian.Uint16(data[6*i+2:])
		bb := binary.LittleEndian.Uint16(data[6*i+4:])

		if aa == 0 && ab == 0 && bb == 0 {
			for entry := 0; entry < 3; entry++ {
				sink.SetMissingValue(entry)
			}
			continue
		}

		sink.SetValue(0, float64(aa)/32768)
		sink.SetValue(1, float64(ab)/32768)
		sink.SetValue(2, float64(bb)/32768)
	}

	sink.Finalise()
	return nil
}

// ProbabilityCollector is a VariantDataSink that accumulates the decoded
// block into a Probability structure.
type ProbabilityCollector struct {
	P *Probability

	current *SampleProbability
}

func NewProbabilityCollector() *ProbabilityCollector {
	return &ProbabilityCollector{P: &Probability{}}
}

func (c *ProbabilityCollector) Initialise(nSamples, nAlleles int) {
	c.P.NSamples = uint32(nSamples)
	c.P.NAlleles = uint16(nAlleles)
	c.P.SampleProbabilities = make([]*SampleProbability, 0, nSamples)
}

func (c *ProbabilityCollector) SetMinMaxPloidy(minPloidy, maxPloidy, minEntries, maxEntries uint32) {
	c.P.MinimumPloidy = uint8(minPloidy)
	c.P.MaximumPloidy = uint8(maxPloidy)
}

func (c *ProbabilityCollector) SetSample(i int) bool {
	c.current = &SampleProbability{}
	c.P.SampleProbabilities = append(c.P.SampleProbabilities, c.current)
	return true
}

func (c *ProbabilityCollector) SetNumberOfEntries(ploidy, nEntries int, order OrderType, value ValueType) {
	c.current.Ploidy = uint8(ploidy)
	c.current.Probabilities = make([]float64, nEntries)
	c.P.Phased = order == OrderPerPhasedHaplotypePerAllele
}

func (c *ProbabilityCollector) SetValue(entry int, value float64) {
	c.current.Probabilities[entry] = value
}

func (c *ProbabilityCollector) SetMissingValue(entry int) {
	c.current.Missing = true
	c.current.Probabilities[entry] = 0
}

func (c *ProbabilityCollector) Finalise() {}
