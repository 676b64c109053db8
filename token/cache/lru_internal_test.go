package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRUStoreReadersDoNotWaitOnEachOther(t *testing.T) {
	ctx := context.Background()
	store, err := NewLRUStore(time.Hour, 10)
	require.NoError(t, err)
	store.Add(ctx, "a", "1")

	// Another reader is mid lookup.
	store.mu.RLock()
	defer store.mu.RUnlock()

	done := make(chan string, 1)
	go func() {
		got, _ := store.Get(ctx, "a")
		done <- got
	}()

	select {
	case got := <-done:
		require.Equal(t, "1", got)
	case <-time.After(time.Second):
		t.Fatal("lookup waited for a concurrent reader")
	}
}
