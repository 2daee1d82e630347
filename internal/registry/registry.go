// Package registry is the persistent identity to descriptor cache, kept
// in a sqlite file. Every mutation commits before returning.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const schema = `CREATE TABLE IF NOT EXISTS duts (
	id            TEXT PRIMARY KEY,
	host          TEXT NOT NULL,
	port          INTEGER NOT NULL,
	identity_file TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL
)`

// Entry is one registered DUT.
type Entry struct {
	ID         string         `json:"id" yaml:"id"`
	Descriptor dut.Descriptor `json:"descriptor" yaml:"descriptor"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Store is the DUT registry. Writers are serialized; readers share.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the registry at path, creating the file, its parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Can't create the registry directory for %s", path),
			"Check registry.path points somewhere writable")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRegistry,
			fmt.Sprintf("Can't open the registry at %s", path), "")
	}

	// One connection, so the per-connection pragmas below cover every query.
	db.SetMaxOpenConns(1)

	// modernc.org/sqlite takes pragmas as statements, not DSN params.
	// synchronous=FULL makes each commit durable before it returns.
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
		schema,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.WrapWithCode(err, errors.ErrRegistry,
				fmt.Sprintf("Can't initialize the registry at %s", path),
				"The file may be corrupt or not a dutctl registry. Move it aside and retry.")
		}
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path is the registry file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the registry. Later calls fail as uninitialized.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Entries returns every registered DUT, sorted by id.
func (s *Store) Entries() ([]Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT id, host, port, identity_file, updated_at FROM duts ORDER BY id")
	if err != nil {
		return nil, s.wrap(err, "read")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.ID, &e.Descriptor.Host, &e.Descriptor.Port, &e.Descriptor.IdentityFile, &updated); err != nil {
			return nil, s.wrap(err, "read")
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "read")
	}
	return entries, nil
}

// IDs returns every registered identity, sorted.
func (s *Store) IDs() ([]string, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// Get returns the descriptor registered for id. It implements dut.Lookup.
func (s *Store) Get(id string) (dut.Descriptor, bool, error) {
	if err := s.ready(); err != nil {
		return dut.Descriptor{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return dut.Descriptor{}, false, err
	}

	var d dut.Descriptor
	err := s.db.QueryRow("SELECT host, port, identity_file FROM duts WHERE id = ?", id).
		Scan(&d.Host, &d.Port, &d.IdentityFile)
	if err == sql.ErrNoRows {
		return dut.Descriptor{}, false, nil
	}
	if err != nil {
		return dut.Descriptor{}, false, s.wrap(err, "read")
	}
	return d, true, nil
}

// Set registers d under id, replacing any previous descriptor.
func (s *Store) Set(id string, d dut.Descriptor) error {
	if id == "" {
		return errors.New(errors.ErrRegistry, "Refusing to register a DUT with an empty id", "")
	}
	return s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO duts (id, host, port, identity_file, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				host = excluded.host,
				port = excluded.port,
				identity_file = excluded.identity_file,
				updated_at = excluded.updated_at`,
			id, d.Host, d.Port, d.IdentityFile, s.now().UTC().Format(time.RFC3339))
		return err
	})
}

// Remove unregisters id. Removing an unknown id succeeds and reports false.
func (s *Store) Remove(id string) (bool, error) {
	var removed bool
	err := s.write(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM duts WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

// Clear removes every entry and reports how many there were.
func (s *Store) Clear() (int, error) {
	var n int64
	err := s.write(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM duts")
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

// write runs fn in its own transaction under the writer lock.
func (s *Store) write(fn func(tx *sql.Tx) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return s.wrap(err, "write")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.wrap(err, "write")
	}
	if err := tx.Commit(); err != nil {
		return s.wrap(err, "write")
	}
	return nil
}

func (s *Store) ready() error {
	if s == nil {
		return notInitialized()
	}
	return nil
}

func (s *Store) readyLocked() error {
	if s.db == nil {
		return notInitialized()
	}
	return nil
}

func (s *Store) wrap(err error, op string) error {
	return errors.WrapWithCode(err, errors.ErrRegistry,
		fmt.Sprintf("Registry %s failed (%s)", op, s.path),
		"Check the file isn't locked by another dutctl or corrupt")
}

func notInitialized() error {
	return errors.New(errors.ErrRegistry,
		"Registry not initialized",
		"Open the registry before using it")
}
