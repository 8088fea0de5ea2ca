package cmmn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningInstancesCacheLocking(t *testing.T) {
	cache := NewRunningInstancesCache()

	require.NoError(t, cache.lockInstance(t.Context(), "1"))
	require.NoError(t, cache.lockInstance(t.Context(), "2"))
	assert.Equal(t, 2, cache.size())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := cache.lockInstance(ctx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cache.unlockInstance("1")
	cache.unlockInstance("2")
	assert.Equal(t, 0, cache.size())
}

func TestRunningInstancesCacheHandsLockOver(t *testing.T) {
	cache := NewRunningInstancesCache()
	require.NoError(t, cache.lockInstance(t.Context(), "1"))

	acquired := make(chan struct{})
	go func() {
		if err := cache.lockInstance(context.Background(), "1"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	cache.unlockInstance("1")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not handed over")
	}
	cache.unlockInstance("1")
	assert.Equal(t, 0, cache.size())
}
