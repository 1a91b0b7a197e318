//go:build cgo

package bgen

// If cgo is enabled, we will use the mattn cgo sqlite3 driver. It is faster
// than the modernc sqlite driver.

import (
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3"

func setReadPragmas(db *sqlx.DB) error {
	return nil
}
