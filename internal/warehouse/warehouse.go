// Package warehouse applies generated table DDL to a Postgres-protocol
// warehouse (Redshift speaks the same wire protocol) through pgx.
package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/logging"
)

// DB is the subset of *pgxpool.Pool the client needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Client runs DDL and metadata queries against the warehouse.
type Client struct {
	db  DB
	log *zap.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	safe := logging.SanitizeConnectionString(dsn)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrapf(redact(err), "pgxpool: connect %s", safe)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrapf(redact(err), "pgxpool: ping %s", safe)
	}
	log.Info("connected to warehouse", zap.String("dsn", safe))
	return New(pool, log), nil
}

// redactedError hides credentials a driver error may echo from its DSN
// while keeping the cause reachable through errors.Is and errors.As.
type redactedError struct{ err error }

func redact(err error) error { return redactedError{err: err} }

func (e redactedError) Error() string { return logging.SanitizeError(e.err) }
func (e redactedError) Unwrap() error { return e.err }

// New wraps an existing connection.
func New(db DB, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{db: db, log: log}
}

// Apply drops and recreates tbl. Data in an existing table is lost.
func (c *Client) Apply(ctx context.Context, tbl *ddl.Table) error {
	create, err := tbl.CreateSQL(true)
	if err != nil {
		return err
	}
	for _, stmt := range []string{tbl.DropSQL(), create} {
		if _, err := c.db.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(redact(err), "apply ddl for %s", tbl.QualifiedName())
		}
	}
	c.log.Info("applied ddl",
		zap.String("table", tbl.QualifiedName()),
		zap.Int("columns", tbl.ColumnCount()))
	return nil
}

// LastModified returns MAX(last-modified column) for tbl. ok is false when
// tbl has no last-modified column or the table is empty.
func (c *Client) LastModified(ctx context.Context, tbl *ddl.Table) (ts time.Time, ok bool, err error) {
	q, has := tbl.LastModifiedSQL()
	if !has {
		return time.Time{}, false, nil
	}
	var v *time.Time
	if err := c.db.QueryRow(ctx, q).Scan(&v); err != nil {
		return time.Time{}, false, errors.Wrapf(redact(err), "last modified for %s", tbl.QualifiedName())
	}
	if v == nil {
		return time.Time{}, false, nil
	}
	return *v, true, nil
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.db.Close()
}
