package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// Loader produces a fresh catalog snapshot, typically by reading the price list file.
type Loader func() (*Catalog, error)

// FileLoader returns a Loader that reads the price list at path.
func FileLoader(path string) Loader {
	return func() (*Catalog, error) {
		return LoadFile(path)
	}
}

// Store publishes the current catalog snapshot. Reads never lock; a reload replaces the
// whole snapshot with a single pointer swap.
type Store struct {
	current atomic.Pointer[Catalog]
	load    Loader
}

// NewStore returns a Store publishing c. load is used by Reload and may be nil.
func NewStore(c *Catalog, load Loader) *Store {
	if c == nil {
		c = Default()
	}
	s := &Store{load: load}
	s.current.Store(c)
	return s
}

// Snapshot returns the catalog currently published. Callers must not modify it.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Swap publishes c and returns the snapshot it replaced.
func (s *Store) Swap(c *Catalog) *Catalog {
	return s.current.Swap(c)
}

// Reload runs the store's Loader and publishes the result. On error the current snapshot
// stays in place.
func (s *Store) Reload() (*Catalog, error) {
	if s.load == nil {
		return nil, fmt.Errorf("reload catalog: no loader configured")
	}
	c, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("reload catalog: %w", err)
	}
	s.Swap(c)
	return c, nil
}

// Watch reloads the catalog every interval (with a little jitter) until ctx is done.
// onReload, when set, is called with the outcome of each attempt.
func (s *Store) Watch(ctx context.Context, interval time.Duration, onReload func(*Catalog, error)) {
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20})
	defer ticker.Stop()

	logger := zap.S().Named("catalog")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c, err := s.Reload()
		if err != nil {
			logger.Warnw("periodic catalog reload failed, keeping current snapshot", "error", err)
		} else {
			logger.Debugw("catalog reloaded", "job_types", len(c.BaseRates), "last_refreshed", c.LastRefreshed)
		}
		if onReload != nil {
			onReload(c, err)
		}
	}
}
