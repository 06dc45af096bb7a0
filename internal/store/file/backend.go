// Package file serves routing documents from YAML files in a directory
// and watches the directory for edits. Each file holds one or more
// documents separated by "---"; a file is the unit of loading, so an
// edit that breaks one document keeps the file's previous contents in
// place rather than half-applying it.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/store"
)

// Config holds the dependencies and settings for a file Backend.
type Config struct {
	Logger hclog.Logger
	// Directory holds the YAML documents. Files ending in .yaml or .yml
	// are loaded; dotfiles and other extensions are ignored.
	Directory string
}

// Backend is a store.Backend reading documents from a directory.
//
// Documents normally omit metadata.revision; the store then assigns a
// revision that increases with each observed content change, and stamps
// createdAt with the time the document was first seen. Explicit
// metadata fields always win.
type Backend struct {
	logger    hclog.Logger
	directory string

	mutex     sync.Mutex
	documents map[resource.Key]document
	files     map[string][]resource.Key
	revision  int64

	broadcaster store.Broadcaster
}

type document struct {
	object      resource.Object
	fingerprint string
	source      string
}

var _ store.Backend = &Backend{}

func New(config Config) (*Backend, error) {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if config.Directory == "" {
		return nil, errors.New("document directory is required")
	}
	info, err := os.Stat(config.Directory)
	if err != nil {
		return nil, fmt.Errorf("document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document directory %q is not a directory", config.Directory)
	}

	return &Backend{
		logger:    logger.Named("file-store"),
		directory: config.Directory,
		documents: make(map[resource.Key]document),
		files:     make(map[string][]resource.Key),
	}, nil
}

// List rescans the directory and returns every document it holds,
// sorted by key. Changes found during the scan are also broadcast to
// watchers.
func (b *Backend) List(ctx context.Context) ([]resource.Object, error) {
	entries, err := os.ReadDir(b.directory)
	if err != nil {
		return nil, fmt.Errorf("reading document directory: %w", err)
	}

	b.mutex.Lock()
	var events []store.Event
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !documentFile(entry.Name()) {
			continue
		}
		path := filepath.Join(b.directory, entry.Name())
		seen[path] = struct{}{}
		events = append(events, b.loadFileLocked(path)...)
	}

	var removed []string
	for path := range b.files {
		if _, found := seen[path]; !found {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	for _, path := range removed {
		events = append(events, b.dropFileLocked(path)...)
	}

	objects := make([]resource.Object, 0, len(b.documents))
	for _, doc := range b.documents {
		objects = append(objects, doc.object)
	}
	b.mutex.Unlock()

	b.broadcaster.Broadcast(events...)

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key().String() < objects[j].Key().String()
	})
	return objects, nil
}

// Watch starts a directory watch and streams document changes until ctx
// is done.
func (b *Backend) Watch(ctx context.Context) (<-chan store.Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting directory watch: %w", err)
	}
	if err := watcher.Add(b.directory); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %q: %w", b.directory, err)
	}

	events := b.broadcaster.Subscribe(ctx)
	go b.pump(ctx, watcher)
	return events, nil
}

func (b *Backend) pump(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			b.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.logger.Error("directory watch error", "error", err)
		}
	}
}

func (b *Backend) handleEvent(event fsnotify.Event) {
	if !documentFile(event.Name) {
		return
	}

	var events []store.Event
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		b.mutex.Lock()
		events = b.loadFileLocked(event.Name)
		b.mutex.Unlock()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		b.mutex.Lock()
		events = b.dropFileLocked(event.Name)
		b.mutex.Unlock()
	default:
		return
	}

	b.broadcaster.Broadcast(events...)
}

// loadFileLocked reloads one file and returns the resulting document
// events. Unreadable or malformed files keep their previous documents:
// a torn write must not drop configuration that was serving traffic.
func (b *Backend) loadFileLocked(path string) []store.Event {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b.dropFileLocked(path)
		}
		b.logger.Warn("keeping previous contents of unreadable document file", "path", path, "error", err)
		return nil
	}

	parsed, err := decodeFile(data)
	if err != nil {
		b.logger.Warn("keeping previous contents of malformed document file", "path", path, "error", err)
		return nil
	}

	var events []store.Event
	live := make(map[resource.Key]struct{}, len(parsed))
	keys := make([]resource.Key, 0, len(parsed))
	for _, doc := range parsed {
		key := doc.object.Key()
		if _, dup := live[key]; dup {
			b.logger.Warn("ignoring duplicate document in file", "path", path, "key", key.String())
			continue
		}
		live[key] = struct{}{}
		keys = append(keys, key)

		previous, known := b.documents[key]
		if known && previous.source != path {
			b.logger.Warn("document moved between files", "key", key.String(), "from", previous.source, "to", path)
		}
		if known && previous.fingerprint == doc.fingerprint {
			previous.source = path
			b.documents[key] = previous
			continue
		}

		meta := doc.object.Metadata()
		if meta.CreatedAt.IsZero() {
			if known {
				meta.CreatedAt = previous.object.Metadata().CreatedAt
			} else {
				meta.CreatedAt = time.Now().UTC()
			}
		}
		if meta.Revision == 0 {
			b.revision++
			meta.Revision = b.revision
		}
		applyMeta(doc.object, meta)

		b.documents[key] = document{object: doc.object, fingerprint: doc.fingerprint, source: path}
		events = append(events, store.Event{Type: store.EventUpsert, Key: key, Object: doc.object})
		b.logger.Debug("loaded document", "path", path, "key", key.String(), "revision", meta.Revision)
	}

	// Documents the previous version of this file held but the new one
	// does not are gone.
	for _, key := range b.files[path] {
		if _, still := live[key]; still {
			continue
		}
		if doc, found := b.documents[key]; found && doc.source == path {
			delete(b.documents, key)
			events = append(events, store.Event{Type: store.EventDelete, Key: key})
			b.logger.Debug("removed document", "path", path, "key", key.String())
		}
	}
	b.files[path] = keys

	return events
}

func (b *Backend) dropFileLocked(path string) []store.Event {
	keys := b.files[path]
	delete(b.files, path)

	var events []store.Event
	for _, key := range keys {
		if doc, found := b.documents[key]; found && doc.source == path {
			delete(b.documents, key)
			events = append(events, store.Event{Type: store.EventDelete, Key: key})
			b.logger.Debug("removed document", "path", path, "key", key.String())
		}
	}
	return events
}

// applyMeta writes synthesized metadata back onto a decoded document.
func applyMeta(obj resource.Object, meta resource.Meta) {
	switch doc := obj.(type) {
	case *resource.Proxy:
		doc.Meta = meta
	case *resource.GatewayRoute:
		doc.Meta = meta
	case *resource.Gateway:
		doc.Meta = meta
	case *resource.Service:
		doc.Meta = meta
	case *resource.Secret:
		doc.Meta = meta
	}
}

func documentFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml"
}
