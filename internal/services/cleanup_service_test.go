package services

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
)

func TestCleanupService(t *testing.T) {
	newService := func(store *fakeObjectStore, maxTries uint) *CleanupService {
		svc := NewCleanupService(store, 16, maxTries)
		svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
		svc.Start(context.Background())
		return svc
	}

	t.Run("deletes enqueued objects", func(t *testing.T) {
		store := newFakeObjectStore()
		store.objects["photos/asset_p1.jpg"] = []byte("full")
		store.objects["thumbnails/asset_p1.jpg"] = []byte("thumb")
		svc := newService(store, 3)

		svc.Enqueue("photos/asset_p1.jpg", "thumbnails/asset_p1.jpg")
		svc.Stop()

		assert.False(t, store.has("photos/asset_p1.jpg"))
		assert.False(t, store.has("thumbnails/asset_p1.jpg"))
	})

	t.Run("retries transient failures", func(t *testing.T) {
		store := newFakeObjectStore()
		store.objects["photos/asset_p1.jpg"] = []byte("full")
		store.failDeletes = 2
		svc := newService(store, 5)

		svc.Enqueue("photos/asset_p1.jpg")
		svc.Stop()

		assert.False(t, store.has("photos/asset_p1.jpg"))
		assert.Equal(t, 3, store.deleteCalls)
	})

	t.Run("gives up after max tries without blocking", func(t *testing.T) {
		store := newFakeObjectStore()
		store.objects["photos/asset_p1.jpg"] = []byte("full")
		store.failDeletes = 10
		svc := newService(store, 3)

		svc.Enqueue("photos/asset_p1.jpg")
		svc.Stop()

		assert.True(t, store.has("photos/asset_p1.jpg"))
		assert.Equal(t, 3, store.deleteCalls)
	})

	t.Run("a full queue drops tasks instead of blocking", func(t *testing.T) {
		store := newFakeObjectStore()
		svc := NewCleanupService(store, 1, 1)
		svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

		// worker not started; second enqueue must not block
		svc.Enqueue("photos/a.jpg")
		svc.Enqueue("photos/b.jpg")

		svc.Start(context.Background())
		svc.Stop()
		assert.Equal(t, 1, store.deleteCalls)
	})
}
