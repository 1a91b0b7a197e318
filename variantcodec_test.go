package bgen

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSNPIdentifyingDataRoundTripLayout2(t *testing.T) {
	context := &Context{Layout: Layout2, NumberOfSamples: 10}
	alleles := []string{"A", "G", "TTG"}

	var buf bytes.Buffer
	err := WriteSNPIdentifyingData(&buf, context, "SNP1", "rs1", "05", 12345,
		uint16(len(alleles)), func(i int) string { return alleles[i] })
	require.NoError(t, err)

	var v Variant
	require.NoError(t, ReadSNPIdentifyingData(&buf, context, &v))
	require.Equal(t, "SNP1", v.ID)
	require.Equal(t, "rs1", v.RSID)
	require.Equal(t, "05", v.Chromosome)
	require.Equal(t, uint32(12345), v.Position)
	require.Equal(t, []Allele{"A", "G", "TTG"}, v.Alleles)
}

func TestSNPIdentifyingDataRoundTripLayout1(t *testing.T) {
	context := &Context{Layout: Layout1, NumberOfSamples: 10}
	alleles := []string{"C", "T"}

	var buf bytes.Buffer
	err := WriteSNPIdentifyingData(&buf, context, "", "rs2", "22", 999,
		2, func(i int) string { return alleles[i] })
	require.NoError(t, err)

	var v Variant
	require.NoError(t, ReadSNPIdentifyingData(&buf, context, &v))
	require.Equal(t, "rs2", v.RSID)
	require.Equal(t, uint16(2), v.NAlleles)
	require.Equal(t, []Allele{"C", "T"}, v.Alleles)
}

func TestLayout1RejectsNonBiallelicWrite(t *testing.T) {
	context := &Context{Layout: Layout1, NumberOfSamples: 10}
	err := WriteSNPIdentifyingData(io.Discard, context, "x", "y", "01", 1,
		3, func(i int) string { return "A" })
	require.ErrorIs(t, err, ErrInvalidVariantRecord)
}

func TestLayout1SampleCountMismatch(t *testing.T) {
	writeContext := &Context{Layout: Layout1, NumberOfSamples: 10}
	var buf bytes.Buffer
	err := WriteSNPIdentifyingData(&buf, writeContext, "x", "y", "01", 1,
		2, func(i int) string { return "A" })
	require.NoError(t, err)

	readContext := &Context{Layout: Layout1, NumberOfSamples: 11}
	var v Variant
	err = ReadSNPIdentifyingData(&buf, readContext, &v)
	require.ErrorIs(t, err, ErrInvalidVariantRecord)
}

func TestCleanEOFAtVariantBoundary(t *testing.T) {
	var v Variant

	err := ReadSNPIdentifyingData(bytes.NewReader(nil), &Context{Layout: Layout2}, &v)
	require.Equal(t, io.EOF, err)

	err = ReadSNPIdentifyingData(bytes.NewReader(nil), &Context{Layout: Layout1}, &v)
	require.Equal(t, io.EOF, err)
}

func TestTruncatedVariantRecord(t *testing.T) {
	context := &Context{Layout: Layout2, NumberOfSamples: 1}
	var buf bytes.Buffer
	err := WriteSNPIdentifyingData(&buf, context, "SNP1", "rs1", "01", 5,
		2, func(i int) string { return "A" })
	require.NoError(t, err)

	short := buf.Bytes()[:buf.Len()-3]
	var v Variant
	err = ReadSNPIdentifyingData(bytes.NewReader(short), context, &v)
	require.ErrorIs(t, err, ErrTruncatedInput)
}
