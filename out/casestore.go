package out

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reservoirsim/ocpcore/ocperr"
	"github.com/reservoirsim/ocpcore/reservoir"
)

// CaseStore persists every committed step's field-rate row to a SQLite
// table, so a long run's history survives a process restart in addition
// to the flat-file writers (§B domain-stack wiring for
// github.com/mattn/go-sqlite3).
type CaseStore struct {
	db *sql.DB
}

const createStepsTable = `
CREATE TABLE IF NOT EXISTS steps (
	time   REAL NOT NULL,
	fopr   REAL NOT NULL,
	fgpr   REAL NOT NULL,
	fwpr   REAL NOT NULL,
	fgir   REAL NOT NULL,
	fwir   REAL NOT NULL,
	fopt   REAL NOT NULL,
	fgpt   REAL NOT NULL,
	fwpt   REAL NOT NULL,
	fgit   REAL NOT NULL,
	fwit   REAL NOT NULL
)`

// NewCaseStore opens (creating if necessary) a SQLite database at path and
// ensures the steps table exists.
func NewCaseStore(path string) (*CaseStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ocperr.Err("out: open sqlite case store %q: %v", path, err)
	}
	if _, err := db.Exec(createStepsTable); err != nil {
		db.Close()
		return nil, ocperr.Err("out: create steps table: %v", err)
	}
	return &CaseStore{db: db}, nil
}

// AppendStep inserts one committed step's field totals.
func (cs *CaseStore) AppendStep(time float64, field reservoir.FieldRates) error {
	_, err := cs.db.Exec(
		`INSERT INTO steps (time, fopr, fgpr, fwpr, fgir, fwir, fopt, fgpt, fwpt, fgit, fwit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time, field.FOPR, field.FGPR, field.FWPR, field.FGIR, field.FWIR,
		field.FOPT, field.FGPt, field.FWPT, field.FGIT, field.FWIT,
	)
	if err != nil {
		return ocperr.Err("out: insert step row: %v", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (cs *CaseStore) Close() error { return cs.db.Close() }
