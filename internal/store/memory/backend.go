// Package memory holds an in-process document source for tests and
// embedding.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/store"
)

// Backend keeps documents in a map and notifies watchers on every
// change. It is safe for concurrent use.
type Backend struct {
	mutex     sync.RWMutex
	documents map[resource.Key]resource.Object

	broadcaster store.Broadcaster
}

var _ store.Backend = &Backend{}

func NewBackend() *Backend {
	return &Backend{
		documents: make(map[resource.Key]resource.Object),
	}
}

// Upsert stores documents and notifies watchers of each.
func (b *Backend) Upsert(objects ...resource.Object) {
	for _, obj := range objects {
		b.mutex.Lock()
		b.documents[obj.Key()] = obj
		b.mutex.Unlock()

		b.broadcaster.Broadcast(store.Event{
			Type:   store.EventUpsert,
			Key:    obj.Key(),
			Object: obj,
		})
	}
}

// Delete removes documents and notifies watchers. Absent keys are
// skipped.
func (b *Backend) Delete(keys ...resource.Key) {
	for _, key := range keys {
		b.mutex.Lock()
		if _, found := b.documents[key]; !found {
			b.mutex.Unlock()
			continue
		}
		delete(b.documents, key)
		b.mutex.Unlock()

		b.broadcaster.Broadcast(store.Event{
			Type: store.EventDelete,
			Key:  key,
		})
	}
}

// Get returns a stored document.
func (b *Backend) Get(key resource.Key) (resource.Object, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if obj, found := b.documents[key]; found {
		return obj, nil
	}
	return nil, store.ErrNotFound
}

func (b *Backend) List(ctx context.Context) ([]resource.Object, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	objects := make([]resource.Object, 0, len(b.documents))
	for _, obj := range b.documents {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key().String() < objects[j].Key().String()
	})
	return objects, nil
}

func (b *Backend) Watch(ctx context.Context) (<-chan store.Event, error) {
	return b.broadcaster.Subscribe(ctx), nil
}
