// Package store implements SPEC_FULL §10's content-addressed program
// cache: a single SQLite table, written through database/sql the way
// the teacher's internal/database package wires a SQL driver under a
// small connection-owning struct.
package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"dpl/internal/bytecode"
)

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	content_hash BLOB PRIMARY KEY,
	build_id     BLOB NOT NULL,
	code         BLOB NOT NULL,
	constants    BLOB NOT NULL,
	header       BLOB NOT NULL,
	created_at   INTEGER NOT NULL
)`

// Store owns one SQLite connection used as a compiled-program cache.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and connects to the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "store: ping %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Entry is one row's metadata, used for the `-d` listing table.
type Entry struct {
	ContentHash [32]byte
	BuildID     uuid.UUID
	Size        int
	CreatedAt   time.Time
}

// Put content-addresses prog by BLAKE2b-256 hash of its constants+code,
// stamps a fresh BuildID, and stores it. Recompiling identical source
// reaches the same content hash, so the insert is a no-op — recompiling
// is cheap and idempotent, not an error.
func (s *Store) Put(prog *bytecode.Program) (Entry, error) {
	hash := bytecode.ComputeContentHash(prog)
	buildID := uuid.New()

	header := make([]byte, 9)
	header[0] = prog.Version
	for i := 0; i < 8; i++ {
		header[1+i] = byte(prog.EntryIP >> (8 * i))
	}

	now := time.Now()
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO programs (content_hash, build_id, code, constants, header, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		hash[:], buildID[:], prog.Code, prog.Constants, header, now.Unix(),
	)
	if err != nil {
		return Entry{}, errors.Wrap(err, "store: put")
	}
	return Entry{ContentHash: hash, BuildID: buildID, Size: len(prog.Code) + len(prog.Constants), CreatedAt: now}, nil
}

// Get reconstructs a *bytecode.Program from its content hash without
// reinvoking the compiler.
func (s *Store) Get(hash [32]byte) (*bytecode.Program, error) {
	var buildID, code, constants, header []byte
	err := s.db.QueryRow(
		`SELECT build_id, code, constants, header FROM programs WHERE content_hash = ?`, hash[:],
	).Scan(&buildID, &code, &constants, &header)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("store: no cached program for hash %x", hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	if len(header) < 9 {
		return nil, errors.Errorf("store: truncated header for hash %x", hash)
	}
	var entryIP uint64
	for i := 0; i < 8; i++ {
		entryIP |= uint64(header[1+i]) << (8 * i)
	}
	prog := bytecode.NewProgram(entryIP, constants, code)
	prog.Version = header[0]
	prog.ContentHash = hash
	copy(prog.BuildID[:], buildID)
	prog.HasMeta = true
	return prog, nil
}

// List returns every cached entry's metadata for the CLI's `-d` report
// table, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT content_hash, build_id, length(code) + length(constants), created_at FROM programs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "store: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var hashB, buildB []byte
		var size int
		var createdUnix int64
		if err := rows.Scan(&hashB, &buildB, &size, &createdUnix); err != nil {
			return nil, errors.Wrap(err, "store: list")
		}
		var e Entry
		copy(e.ContentHash[:], hashB)
		copy(e.BuildID[:], buildB)
		e.Size = size
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
