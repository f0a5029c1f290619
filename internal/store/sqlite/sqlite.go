// Package sqlite implements store.Store on a SQLite file through
// database/sql and the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/store"
)

// Kind is the registry name of this backend.
const Kind = "sqlite"

const (
	defaultTable = "file_descriptors"
	timeLayout   = "2006-01-02T15:04:05.000000000Z07:00"
)

var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func init() {
	store.Register(Kind, func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg.Path, cfg.Bucket)
	})
}

// Store is a SQLite-backed descriptor store.
type Store struct {
	db    *sql.DB
	table string
}

var _ store.Store = (*Store)(nil)

// Open opens the database file at path and creates the descriptor table
// when missing. table defaults to file_descriptors.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTable.MatchString(table) {
		return nil, errors.Errorf("sqlite: invalid table name %q", table)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "sqlite: create directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	unique_id  TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL
)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: create table")
	}
	return &Store{db: db, table: table}, nil
}

// Put inserts d or replaces the body stored under its id. created_at keeps
// the time of the first insert.
func (s *Store) Put(ctx context.Context, d *descriptor.FileDescriptor) error {
	body, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "sqlite: marshal descriptor")
	}
	q := fmt.Sprintf(`INSERT INTO %s (unique_id, body, created_at) VALUES (?, ?, ?)
ON CONFLICT(unique_id) DO UPDATE SET body = excluded.body`, s.table)
	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, q, d.ID(), string(body), now); err != nil {
		return errors.Wrapf(err, "sqlite: put %s", d.ID())
	}
	return nil
}

// Get loads the descriptor stored under id.
func (s *Store) Get(ctx context.Context, id string) (*descriptor.FileDescriptor, error) {
	q := fmt.Sprintf(`SELECT body FROM %s WHERE unique_id = ?`, s.table)
	var body string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "descriptor %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: get %s", id)
	}
	return decode(body)
}

// List returns every stored descriptor in insertion order.
func (s *Store) List(ctx context.Context) ([]*descriptor.FileDescriptor, error) {
	q := fmt.Sprintf(`SELECT body FROM %s ORDER BY rowid`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list")
	}
	defer rows.Close()

	out := []*descriptor.FileDescriptor{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan")
		}
		d, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "sqlite: list rows")
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(body string) (*descriptor.FileDescriptor, error) {
	var d descriptor.FileDescriptor
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, errors.Wrap(err, "sqlite: unmarshal descriptor")
	}
	return &d, nil
}
