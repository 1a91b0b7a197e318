package bgen

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// IndexSuffix is appended to a BGEN filename to derive its default index
// filename.
const IndexSuffix = ".bgi"

// indexChunkSize is how many variants are inserted per transaction during an
// index build.
const indexChunkSize = 10

type BGIIndex struct {
	DB       *sqlx.DB
	Metadata *BGIMetadata
}

func (b *BGIIndex) Close() error {
	return b.DB.Close()
}

// VariantIndex conforms to the data found in the rows of the SQLite table
// "Variant" from BGEN Index (.bgi) files, and can be easily parsed with sqlx.
type VariantIndex struct {
	Chromosome        string
	Position          uint32
	RSID              string `db:"rsid"`
	NAlleles          uint16 `db:"number_of_alleles"`
	Allele1           Allele
	Allele2           Allele
	FileStartPosition int64 `db:"file_start_position"`
	SizeInBytes       int64 `db:"size_in_bytes"`
}

// BGIMetadata conforms to the data found in the rows of the SQLite table
// "Metadata" from more recent versions of BGEN.
type BGIMetadata struct {
	Filename           string
	FileSize           int64  `db:"file_size"`
	LastWriteTime      Time   `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	IndexCreationTime  Time   `db:"index_creation_time"`
}

// OpenBGI opens an existing index sidecar read-only-in-spirit: callers query
// it but never write through it.
func OpenBGI(path string) (*BGIIndex, error) {
	bgi := &BGIIndex{
		Metadata: &BGIMetadata{},
	}

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3 permitted
	// URI filenames without the file: prefix, but that is not standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(sqliteDriverName, path)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%w: %v", ErrIndexCorrupt, err))
	}
	bgi.DB = db

	if err := setReadPragmas(db); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	// Not all index files have metadata; ignore any error
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return bgi, nil
}

// IndexOptions control CreateBGI.
type IndexOptions struct {
	// Clobber permits overwriting a leftover .tmp index from an
	// interrupted build.
	Clobber bool

	// WithRowID creates the Variant table without the WITHOUT ROWID
	// feature, suitable for very old sqlite clients.
	WithRowID bool

	// Progress, when set, is called after each indexed variant.
	Progress func(done, total uint32)
}

// CreateBGI builds the index sidecar for the file behind the View. The index
// is written under indexPath+".tmp" and renamed into place only on success;
// any failure removes the temp file. The build connection holds an exclusive
// lock with in-memory journaling and synchronous off: a partial index has no
// durability value, the crash recovery strategy is delete-and-retry.
func CreateBGI(view *View, indexPath string, opts IndexOptions) error {
	tmpPath := indexPath + ".tmp"
	if _, err := os.Stat(tmpPath); err == nil && !opts.Clobber {
		return pfx.Err(fmt.Errorf("%w: an incomplete index file %q already exists.\n"+
			"This probably reflects a previous indexing run that was terminated.\n"+
			"Please delete the file (or use -clobber to overwrite it automatically)", ErrIndexExists, tmpPath))
	}
	_ = os.Remove(tmpPath)

	if err := createBGIDirect(view, tmpPath, opts); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, indexPath); err != nil {
		os.Remove(tmpPath)
		return pfx.Err(err)
	}

	return nil
}

func createBGIDirect(view *View, tmpPath string, opts IndexOptions) error {
	db, err := sqlx.Connect(sqliteDriverName, "file:"+tmpPath)
	if err != nil {
		return pfx.Err(err)
	}
	defer db.Close()

	if _, err := db.Exec(`
	PRAGMA locking_mode = EXCLUSIVE;
	PRAGMA journal_mode = MEMORY;
	PRAGMA synchronous = OFF;
	`); err != nil {
		return pfx.Err(fmt.Errorf("unable to set pragmas: %w", err))
	}

	if err := createIndexTables(db, opts.WithRowID); err != nil {
		return err
	}

	meta := view.FileMetadata()
	if _, err := db.Exec(
		"INSERT INTO Metadata( filename, file_size, last_write_time, first_1000_bytes, index_creation_time ) VALUES( ?, ?, ?, ?, ? )",
		meta.Filename, meta.Size, meta.LastWriteTime, meta.FirstBytes,
		time.Now().Format("2006-01-02 15:04:05"),
	); err != nil {
		return pfx.Err(err)
	}

	return indexVariants(view, db, opts)
}

func createIndexTables(db *sqlx.DB, withRowID bool) error {
	if _, err := db.Exec(`CREATE TABLE Metadata (
 filename TEXT NOT NULL,
 file_size INT NOT NULL,
 last_write_time INT NOT NULL,
 first_1000_bytes BLOB NOT NULL,
 index_creation_time INT NOT NULL
)`); err != nil {
		return pfx.Err(err)
	}

	tag := " WITHOUT ROWID"
	if withRowID {
		tag = ""
	}

	// The key leads with chromosome and position; file_start_position is its
	// last column and size_in_bytes is not part of it.
	if _, err := db.Exec(`CREATE TABLE Variant (
  chromosome TEXT NOT NULL,
  position INT NOT NULL,
  rsid TEXT NOT NULL,
  number_of_alleles INT NOT NULL,
  allele1 TEXT NOT NULL,
  allele2 TEXT NULL,
  file_start_position INT NOT NULL,
  size_in_bytes INT NOT NULL,
  PRIMARY KEY (chromosome, position, rsid, allele1, allele2, file_start_position )
)` + tag); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func indexVariants(view *View, db *sqlx.DB, opts IndexOptions) error {
	tx, err := db.Beginx()
	if err != nil {
		return pfx.Err(err)
	}

	stmt, err := tx.Preparex(
		"INSERT INTO Variant( chromosome, position, rsid, number_of_alleles, allele1, allele2, file_start_position, size_in_bytes ) " +
			"VALUES( ?, ?, ?, ?, ?, ?, ?, ? )",
	)
	if err != nil {
		tx.Rollback()
		return pfx.Err(err)
	}

	var v Variant
	var count uint32
	total := view.NumberOfVariants()

	filePos, err := view.CurrentFilePosition()
	if err != nil {
		tx.Rollback()
		return pfx.Err(err)
	}

	for {
		ok, err := view.ReadVariant(&v)
		if err != nil {
			tx.Rollback()
			return indexBuildError(err, &v, filePos, view)
		}
		if !ok {
			break
		}

		if err := view.IgnoreGenotypeDataBlock(); err != nil {
			tx.Rollback()
			return indexBuildError(err, &v, filePos, view)
		}

		fileEndPos, err := view.CurrentFilePosition()
		if err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}

		if len(v.Alleles) < 2 {
			tx.Rollback()
			return indexBuildError(
				fmt.Errorf("%w: %d alleles", ErrInvalidVariantRecord, len(v.Alleles)),
				&v, filePos, view,
			)
		}

		if _, err := stmt.Exec(
			v.Chromosome, v.Position, v.RSID,
			len(v.Alleles), string(v.Alleles[0]), string(v.Alleles[1]),
			filePos, fileEndPos-filePos,
		); err != nil {
			tx.Rollback()
			return indexBuildError(err, &v, filePos, view)
		}

		count++
		if opts.Progress != nil {
			opts.Progress(count, total)
		}

		// Commit every few variants so a huge build never holds one giant
		// transaction.
		if count%indexChunkSize == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return pfx.Err(err)
			}
			if tx, err = db.Beginx(); err != nil {
				return pfx.Err(err)
			}
			if stmt, err = tx.Preparex(
				"INSERT INTO Variant( chromosome, position, rsid, number_of_alleles, allele1, allele2, file_start_position, size_in_bytes ) " +
					"VALUES( ?, ?, ?, ?, ?, ?, ?, ? )",
			); err != nil {
				tx.Rollback()
				return pfx.Err(err)
			}
		}

		filePos = fileEndPos
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// indexBuildError decorates a failure with the last observed variant
// identity and byte offset, the way the diagnostic should read in a log.
func indexBuildError(err error, v *Variant, filePos int64, view *View) error {
	return pfx.Err(fmt.Errorf(
		"%w\nLast observed variant was %q, %q.\nReached byte %d in input file, which has size %d",
		err, v.ID, v.RSID, filePos, view.FileMetadata().Size,
	))
}
