// Package journal keeps a history of symbol table snapshots in a sqlite
// database, so a later process can replay the names and gensym counter of
// an earlier one.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/symtab/vm/image"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("symtab.journal")

// ErrNoSnapshot indicates that the journal holds no matching snapshot.
var ErrNoSnapshot = errors.New("no snapshot in journal")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL UNIQUE,
	created INTEGER NOT NULL,
	counter INTEGER NOT NULL,
	symbols INTEGER NOT NULL,
	payload BLOB NOT NULL
);`

// Journal is an append-only store of snapshots.
type Journal struct {
	db   *sql.DB
	path string
}

// Entry describes a stored snapshot without its payload.
type Entry struct {
	Seq     int64
	ID      string
	Created int64
	Counter uint32
	Symbols int
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("journal: cannot create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema in %s: %w", path, err)
	}
	log.Debugf("opened journal %s", path)
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file backing the journal.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores s as the newest snapshot.
func (j *Journal) Append(ctx context.Context, s *image.Snapshot) error {
	payload, err := image.Marshal(s)
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot %s: %w", s.ID, err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, created, counter, symbols, payload) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Created, int64(s.Counter), len(s.Names), payload)
	if err != nil {
		return fmt.Errorf("journal: append snapshot %s: %w", s.ID, err)
	}
	log.Infof("journaled snapshot %s (%d symbols, counter %d)", s.ID, len(s.Names), s.Counter)
	return nil
}

// Latest returns the most recently appended snapshot.
func (j *Journal) Latest(ctx context.Context) (*image.Snapshot, error) {
	row := j.db.QueryRowContext(ctx, `SELECT payload FROM snapshots ORDER BY seq DESC LIMIT 1`)
	return scanPayload(row, "latest")
}

// Get returns the snapshot with the given ID.
func (j *Journal) Get(ctx context.Context, id string) (*image.Snapshot, error) {
	row := j.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id)
	return scanPayload(row, id)
}

func scanPayload(row *sql.Row, what string) (*image.Snapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, what)
		}
		return nil, fmt.Errorf("journal: read %s: %w", what, err)
	}
	s, err := image.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("journal: decode %s: %w", what, err)
	}
	return s, nil
}

// List returns every stored snapshot, newest first.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, id, created, counter, symbols FROM snapshots ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var counter int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.Created, &counter, &e.Symbols); err != nil {
			return nil, fmt.Errorf("journal: list: %w", err)
		}
		e.Counter = uint32(counter)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}
