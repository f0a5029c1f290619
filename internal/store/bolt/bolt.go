// Package bolt implements store.Store on a single bbolt file. Descriptors are
// kept as JSON in one bucket keyed by unique id.
package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/jkramsay/flat-file-manager/internal/apperrors"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/store"
)

// Kind is the registry name of this backend.
const Kind = "bolt"

const defaultBucket = "file_descriptors"

func init() {
	store.Register(Kind, func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(cfg.Path, cfg.Bucket)
	})
}

// Store is a bbolt-backed descriptor store.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and ensures the bucket exists.
func Open(path, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "os.MkdirAll failed. directory: %s", dir)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt.Open failed. path: %s", path)
	}
	s := &Store{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket failed")
	}
	return s, nil
}

// Put stores d under its unique id.
func (s *Store) Put(ctx context.Context, d *descriptor.FileDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "marshal descriptor failed")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.Put([]byte(d.ID()), body)
	})
}

// Get loads the descriptor stored under id.
func (s *Store) Get(ctx context.Context, id string) (*descriptor.FileDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errors.New("bucket not found")
		}
		data := b.Get([]byte(id))
		if data == nil {
			return errors.Wrapf(apperrors.ErrNotFound, "descriptor %s", id)
		}
		// bbolt reuses the memory after the transaction ends.
		body = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decode(body)
}

// List returns every stored descriptor ordered by id.
func (s *Store) List(ctx context.Context) ([]*descriptor.FileDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []*descriptor.FileDescriptor{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			d, err := decode(v)
			if err != nil {
				return errors.Wrapf(err, "key %s", k)
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the file lock. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrap(err, "close database failed")
}

func decode(body []byte) (*descriptor.FileDescriptor, error) {
	var d descriptor.FileDescriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, errors.Wrap(err, "unmarshal descriptor failed")
	}
	return &d, nil
}
