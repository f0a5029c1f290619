// Package store persists FileDescriptors keyed by their unique id.
//
// Backends register a Factory under a kind name at init time; callers open a
// Store through New without importing the backend directly. Import
// internal/store/all to enable every built-in backend.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/jkramsay/flat-file-manager/internal/descriptor"
)

// Store is a single-file descriptor repository.
//
// Get returns an error wrapping apperrors.ErrNotFound when the id is unknown.
// Put replaces any descriptor previously stored under the same id.
type Store interface {
	Put(ctx context.Context, d *descriptor.FileDescriptor) error
	Get(ctx context.Context, id string) (*descriptor.FileDescriptor, error)
	List(ctx context.Context) ([]*descriptor.FileDescriptor, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind   string // "bolt" or "sqlite"
	Path   string // database file
	Bucket string // bolt bucket or sqlite table name
}

// Factory opens a Store for cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on a duplicate
// registration, which can only happen through a programming error in init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("store: duplicate registration for " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backend names in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("store: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	if cfg.Path == "" {
		return nil, errors.New("store: path is required")
	}
	return f(ctx, cfg)
}
