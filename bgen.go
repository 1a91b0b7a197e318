// Package bgen reads, writes, indexes and transcodes BGEN files: binary,
// chunked, optionally compressed containers of per-variant genotype
// probability data.
//
// A View is the entry point for reading. It decodes the header once, then
// advances a cursor through the variant stream, optionally following an
// IndexQuery plan built from a .bgi sidecar:
//
//	view, err := bgen.NewView("example.bgen")
//	...
//	var v bgen.Variant
//	for {
//		ok, err := view.ReadVariant(&v)
//		if err != nil || !ok {
//			break
//		}
//		probs, err := view.ReadProbabilities()
//		...
//	}
package bgen

// BGENVersion is the supported version of the BGEN file format
const BGENVersion = "1.2"
