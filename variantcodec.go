package bgen

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// ReadSNPIdentifyingData decodes one variant's identifying block in the
// dialect selected by the context's layout. It returns io.EOF, untouched,
// when the stream ends cleanly at a variant boundary.
func ReadSNPIdentifyingData(r io.Reader, context *Context, v *Variant) error {
	if context.Layout == Layout1 {
		// Layout1 repeats the sample count ahead of each variant.
		nSamples, err := readUint32(r)
		if err != nil {
			return err
		}
		if nSamples != context.NumberOfSamples {
			return pfx.Err(fmt.Errorf("%w: variant repeats sample count %d, header says %d", ErrInvalidVariantRecord, nSamples, context.NumberOfSamples))
		}
	}

	var err error
	if v.ID, err = readString(r); err != nil {
		if err == io.EOF && context.Layout == Layout2 {
			// Layout2 variants begin with the SNPID field.
			return io.EOF
		}

		return truncated(err)
	}
	if v.RSID, err = readString(r); err != nil {
		return truncated(err)
	}
	if v.Chromosome, err = readString(r); err != nil {
		return truncated(err)
	}
	if v.Position, err = readUint32(r); err != nil {
		return truncated(err)
	}

	if context.Layout == Layout1 {
		// Assumed to be 2 in Layout1
		v.NAlleles = 2
	} else {
		if v.NAlleles, err = readUint16(r); err != nil {
			return truncated(err)
		}
	}

	v.Alleles = v.Alleles[:0]
	for i := uint16(0); i < v.NAlleles; i++ {
		alleleLength, err := readUint32(r)
		if err != nil {
			return truncated(err)
		}
		buf := make([]byte, alleleLength)
		if err := readBytes(r, buf); err != nil {
			return truncated(err)
		}
		v.Alleles = append(v.Alleles, Allele(buf))
	}

	return nil
}

// WriteSNPIdentifyingData encodes one variant's identifying block in the
// dialect selected by the context's layout. The allele callback yields the
// i-th allele so the caller need not materialize a collection.
func WriteSNPIdentifyingData(
	w io.Writer,
	context *Context,
	SNPID, rsid, chromosome string,
	position uint32,
	nAlleles uint16,
	allele func(i int) string,
) error {
	if context.Layout == Layout1 {
		if nAlleles != 2 {
			return pfx.Err(fmt.Errorf("%w: Layout1 requires 2 alleles, got %d", ErrInvalidVariantRecord, nAlleles))
		}
		if err := writeUint32(w, context.NumberOfSamples); err != nil {
			return err
		}
	}

	if err := writeString(w, SNPID); err != nil {
		return err
	}
	if err := writeString(w, rsid); err != nil {
		return err
	}
	if err := writeString(w, chromosome); err != nil {
		return err
	}
	if err := writeUint32(w, position); err != nil {
		return err
	}

	if context.Layout == Layout2 {
		if err := writeUint16(w, nAlleles); err != nil {
			return err
		}
	}

	for i := 0; i < int(nAlleles); i++ {
		a := allele(i)
		if err := writeUint32(w, uint32(len(a))); err != nil {
			return err
		}
		if err := writeBytes(w, []byte(a)); err != nil {
			return err
		}
	}

	return nil
}

// truncated upgrades a clean EOF in mid-record to a truncation error.
func truncated(err error) error {
	if err == io.EOF {
		return pfx.Err(fmt.Errorf("%w: stream ended inside a variant identifying block", ErrTruncatedInput))
	}

	return err
}
