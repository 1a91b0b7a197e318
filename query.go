package bgen

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/carbocation/pfx"
)

// GenomicRange is a closed position interval on one chromosome.
type GenomicRange struct {
	Chromosome string
	Start      uint32
	End        uint32
}

func (g GenomicRange) String() string {
	return fmt.Sprintf("%s:%d-%d", g.Chromosome, g.Start, g.End)
}

// ParseGenomicRange parses "<chr>:<pos1>-<pos2>". Either position may be
// omitted, in which case the range extends to the start or end of the
// chromosome as appropriate.
func ParseGenomicRange(spec string) (GenomicRange, error) {
	var g GenomicRange

	colon := strings.IndexByte(spec, ':')
	if colon < 0 {
		return g, pfx.Err(fmt.Errorf("range spec %q is not of the form <chr>:<pos1>-<pos2>", spec))
	}
	g.Chromosome = spec[:colon]

	rest := spec[colon+1:]
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return g, pfx.Err(fmt.Errorf("range spec %q is not of the form <chr>:<pos1>-<pos2>", spec))
	}

	g.Start = 0
	g.End = math.MaxUint32

	if dash > 0 {
		start, err := parseUint32(rest[:dash])
		if err != nil {
			return g, pfx.Err(fmt.Errorf("range spec %q: %v", spec, err))
		}
		g.Start = start
	}
	if dash < len(rest)-1 {
		end, err := parseUint32(rest[dash+1:])
		if err != nil {
			return g, pfx.Err(fmt.Errorf("range spec %q: %v", spec, err))
		}
		g.End = end
	}

	if g.End < g.Start {
		return g, pfx.Err(fmt.Errorf("range spec %q has pos2 < pos1", spec))
	}

	return g, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// PlanEntry locates one variant's bytes in the data file.
type PlanEntry struct {
	FileStart int64
	Size      int64
}

// IndexQuery accumulates include/exclude predicates over an index sidecar
// and freezes them into an immutable plan on Initialise. The plan is sorted
// ascending by file start position and deduplicated by (start, size).
type IndexQuery struct {
	index *BGIIndex
	table string

	inclRanges []GenomicRange
	exclRanges []GenomicRange
	inclRSIDs  map[string]struct{}
	exclRSIDs  map[string]struct{}

	initialised bool
	plan        []PlanEntry
}

// NewIndexQuery opens the index sidecar at path and reads variant rows from
// the named table (or view); pass "" for the default Variant table.
func NewIndexQuery(path, table string) (*IndexQuery, error) {
	index, err := OpenBGI(path)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = "Variant"
	}

	return &IndexQuery{
		index:     index,
		table:     table,
		inclRSIDs: map[string]struct{}{},
		exclRSIDs: map[string]struct{}{},
	}, nil
}

func (q *IndexQuery) Close() error {
	return q.index.Close()
}

// FileMetadata returns the fingerprint recorded when the index was built, or
// nil for legacy indexes without a Metadata table.
func (q *IndexQuery) FileMetadata() *BGIMetadata {
	if q.index.Metadata == nil || q.index.Metadata.FileSize == 0 {
		return nil
	}

	return q.index.Metadata
}

func (q *IndexQuery) IncludeRange(g GenomicRange) *IndexQuery {
	q.inclRanges = append(q.inclRanges, g)
	return q
}

func (q *IndexQuery) ExcludeRange(g GenomicRange) *IndexQuery {
	q.exclRanges = append(q.exclRanges, g)
	return q
}

func (q *IndexQuery) IncludeRSIDs(ids []string) *IndexQuery {
	for _, id := range ids {
		q.inclRSIDs[id] = struct{}{}
	}
	return q
}

func (q *IndexQuery) ExcludeRSIDs(ids []string) *IndexQuery {
	for _, id := range ids {
		q.exclRSIDs[id] = struct{}{}
	}
	return q
}

// queryRow is the projection of a Variant row the planner needs.
type queryRow struct {
	Chromosome        string `db:"chromosome"`
	Position          uint32 `db:"position"`
	RSID              string `db:"rsid"`
	FileStartPosition int64  `db:"file_start_position"`
	SizeInBytes       int64  `db:"size_in_bytes"`
}

func matchesAnyRange(ranges []GenomicRange, chromosome string, position uint32) bool {
	for _, g := range ranges {
		if g.Chromosome == chromosome && position >= g.Start && position <= g.End {
			return true
		}
	}
	return false
}

// Initialise materializes the plan. If any include predicate exists, the
// base set is the union of its matches; otherwise every variant. Variants
// matching any exclude predicate are subtracted.
func (q *IndexQuery) Initialise(progress func(done, total uint32)) error {
	if q.initialised {
		return pfx.Err(fmt.Errorf("%w: query already initialised", ErrStateViolation))
	}

	rows := []queryRow{}
	err := q.index.DB.Select(&rows,
		"SELECT chromosome, position, rsid, file_start_position, size_in_bytes FROM "+q.table+
			" ORDER BY file_start_position ASC",
	)
	if err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrIndexCorrupt, err))
	}

	haveIncludes := len(q.inclRanges) > 0 || len(q.inclRSIDs) > 0

	selected := roaring.New()
	if !haveIncludes {
		selected.AddRange(0, uint64(len(rows)))
	}
	excluded := roaring.New()

	for i, row := range rows {
		if haveIncludes {
			if matchesAnyRange(q.inclRanges, row.Chromosome, row.Position) {
				selected.Add(uint32(i))
			} else if _, ok := q.inclRSIDs[row.RSID]; ok {
				selected.Add(uint32(i))
			}
		}

		if matchesAnyRange(q.exclRanges, row.Chromosome, row.Position) {
			excluded.Add(uint32(i))
		} else if _, ok := q.exclRSIDs[row.RSID]; ok {
			excluded.Add(uint32(i))
		}

		if progress != nil {
			progress(uint32(i+1), uint32(len(rows)))
		}
	}

	selected.AndNot(excluded)

	// Rows arrive sorted by file_start_position, so the plan is built
	// sorted; the sort below only defends against a -table view with its
	// own ordering.
	q.plan = make([]PlanEntry, 0, selected.GetCardinality())
	it := selected.Iterator()
	for it.HasNext() {
		row := rows[it.Next()]
		q.plan = append(q.plan, PlanEntry{FileStart: row.FileStartPosition, Size: row.SizeInBytes})
	}
	sort.Slice(q.plan, func(i, j int) bool {
		if q.plan[i].FileStart != q.plan[j].FileStart {
			return q.plan[i].FileStart < q.plan[j].FileStart
		}
		return q.plan[i].Size < q.plan[j].Size
	})

	// The primary key omits alleles past the second, so a multiallelic
	// variant can surface more than once; deduplicate by location.
	deduped := q.plan[:0]
	for i, entry := range q.plan {
		if i > 0 && entry == q.plan[i-1] {
			continue
		}
		deduped = append(deduped, entry)
	}
	q.plan = deduped

	q.initialised = true
	return nil
}

// NumberOfVariants reports the size of the materialized plan.
func (q *IndexQuery) NumberOfVariants() int {
	return len(q.plan)
}

// LocateVariant returns the i-th plan entry in ascending file order.
func (q *IndexQuery) LocateVariant(i int) PlanEntry {
	return q.plan[i]
}

// CheckMetadata verifies that the data file still matches the fingerprint
// bound to the index. Size and leading bytes are authoritative; the last
// write time is advisory only (copies and touch change it legitimately).
func CheckMetadata(file *FileMetadata, index *BGIMetadata) error {
	if index == nil {
		return nil
	}

	if file.Size != index.FileSize {
		return pfx.Err(fmt.Errorf("%w: size of file %q (%d bytes) differs from that recorded in the index file (%d bytes).\nDo you need to recreate the index?",
			ErrIndexStale, file.Filename, file.Size, index.FileSize))
	}

	if !bytes.Equal(file.FirstBytes, index.FirstThousandBytes) {
		return pfx.Err(fmt.Errorf("%w: file %q has different initial bytes than recorded in the index file - that can't be right.\nDo you need to recreate the index?",
			ErrIndexStale, file.Filename))
	}

	return nil
}
