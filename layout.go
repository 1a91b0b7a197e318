package bgen

// Layout is a versioned variant structure outlined by the BGEN spec. The
// values are the ones carried in bits 2-5 of the header flag word.
type Layout uint32

const (
	Layout1 Layout = 1
	Layout2 Layout = 2
)

func (l Layout) String() string {
	switch l {
	case Layout1:
		return "Layout1"
	case Layout2:
		return "Layout2"

	default:
		return "Illegal selection"
	}
}

// Header flag word: bits 0-1 compression, bits 2-5 layout, bit 31 sample
// identifiers.
const (
	flagsCompressionMask  = uint32(0x3)
	flagsLayoutMask       = uint32(0xF) << 2
	flagsLayoutShift      = 2
	flagsSampleIdentifier = uint32(1) << 31
)
