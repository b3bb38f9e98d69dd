package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SwapReplacesWholeSnapshot(t *testing.T) {
	first := Default()
	second := Default()
	second.DefaultRegion = "York"

	s := NewStore(first, nil)
	assert.Same(t, first, s.Snapshot())

	prev := s.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, s.Snapshot())
	assert.Equal(t, "Durham", first.DefaultRegion)
}

func TestStore_NilCatalogPublishesDefault(t *testing.T) {
	s := NewStore(nil, nil)
	require.NotNil(t, s.Snapshot())
	assert.Equal(t, DefaultRegion, s.Snapshot().DefaultRegion)
}

func TestStore_Reload(t *testing.T) {
	next := Default()
	next.HSTRate = 0.05
	s := NewStore(Default(), func() (*Catalog, error) { return next, nil })

	got, err := s.Reload()
	require.NoError(t, err)
	assert.Same(t, next, got)
	assert.Same(t, next, s.Snapshot())
}

func TestStore_ReloadFailureKeepsSnapshot(t *testing.T) {
	current := Default()
	s := NewStore(current, func() (*Catalog, error) { return nil, errors.New("disk on fire") })

	_, err := s.Reload()
	require.Error(t, err)
	assert.Same(t, current, s.Snapshot())

	_, err = NewStore(current, nil).Reload()
	require.Error(t, err)
}

func TestStore_WatchReloadsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	s := NewStore(Default(), func() (*Catalog, error) {
		calls.Add(1)
		return Default(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx, 10*time.Millisecond, nil)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
