// Package store defines where routing documents come from. A Backend
// produces the documents the compiler caches: the memory implementation
// backs tests and embedding, the file implementation serves YAML
// documents from a directory.
package store

import (
	"context"
	"errors"

	"github.com/projectcontour/contour-sub001/internal/resource"
)

//go:generate mockgen -source ./store.go -destination ./mocks/store.go -package mocks

// ErrNotFound is returned when a document is absent from a Backend.
var ErrNotFound = errors.New("document not found")

// EventType says what happened to a document.
type EventType int

const (
	// EventUpsert carries a new or updated document.
	EventUpsert EventType = iota
	// EventDelete names a document that no longer exists.
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventUpsert:
		return "upsert"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

// Event is one document change surfaced by a Backend watch.
type Event struct {
	Type EventType
	// Key identifies the document and is set on every event.
	Key resource.Key
	// Object is the document payload. It is set on upserts and nil on
	// deletes.
	Object resource.Object
}

// Backend is a source of routing documents.
//
// List returns every document currently held. Watch streams changes
// until ctx is done; no further events are delivered after that.
// Consumers reconcile by starting a watch, listing, and applying watch
// events on top: replayed upserts are harmless because the cache gates
// writes by revision.
type Backend interface {
	List(ctx context.Context) ([]resource.Object, error)
	Watch(ctx context.Context) (<-chan Event, error)
}
