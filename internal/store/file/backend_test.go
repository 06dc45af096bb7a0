package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/projectcontour/contour-sub001/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func serviceDoc(name string, port int) string {
	return fmt.Sprintf("kind: Service\nmetadata:\n  name: %s\nspec:\n  ports:\n    - port: %d\n", name, port)
}

func TestNewRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Directory: filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)

	path := writeFile(t, t.TempDir(), "plain.yaml", serviceDoc("web", 80))
	_, err = New(Config{Directory: path})
	require.Error(t, err)
}

func TestListLoadsDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "web.yaml", serviceDoc("web", 8080))
	writeFile(t, dir, "api.yml", serviceDoc("api", 9090))
	writeFile(t, dir, "notes.txt", "not a document")
	writeFile(t, dir, ".hidden.yaml", "kind: [ignored")

	backend, err := New(Config{Directory: dir})
	require.NoError(t, err)

	objects, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "Service/default/api", objects[0].Key().String())
	require.Equal(t, "Service/default/web", objects[1].Key().String())

	for _, obj := range objects {
		require.NotZero(t, obj.Metadata().Revision)
		require.False(t, obj.Metadata().CreatedAt.IsZero())
	}
}

func TestListReloadDetectsChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "docs.yaml", serviceDoc("api", 9090)+"---\n"+serviceDoc("web", 8080))

	backend, err := New(Config{Directory: dir})
	require.NoError(t, err)

	objects, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)

	var webRevision int64
	var webCreated time.Time
	for _, obj := range objects {
		if obj.Metadata().Name == "web" {
			webRevision = obj.Metadata().Revision
			webCreated = obj.Metadata().CreatedAt
		}
	}
	require.NotZero(t, webRevision)

	// unchanged content keeps its revision across rescans
	objects, err = backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	for _, obj := range objects {
		if obj.Metadata().Name == "web" {
			require.Equal(t, webRevision, obj.Metadata().Revision)
		}
	}

	// an edit bumps the revision and keeps the creation time; the
	// document dropped from the file goes away
	writeFile(t, dir, "docs.yaml", serviceDoc("web", 8081))
	objects, err = backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "web", objects[0].Metadata().Name)
	require.Greater(t, objects[0].Metadata().Revision, webRevision)
	require.True(t, objects[0].Metadata().CreatedAt.Equal(webCreated))

	// removing the file removes its documents
	require.NoError(t, os.Remove(path))
	objects, err = backend.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, objects)
}

func TestMalformedEditKeepsPreviousDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "docs.yaml", serviceDoc("web", 8080))

	backend, err := New(Config{Directory: dir})
	require.NoError(t, err)

	objects, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)

	// a torn write must not drop configuration that was serving
	writeFile(t, dir, "docs.yaml", "kind: [broken")
	objects, err = backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "web", objects[0].Metadata().Name)
}

func TestExplicitMetadataWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", `kind: Gateway
metadata:
  name: public
  revision: 40
  createdAt: 2023-05-01T00:00:00Z
spec:
  listeners:
    - port: 8080
      protocol: http
`)

	backend, err := New(Config{Directory: dir})
	require.NoError(t, err)

	objects, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.EqualValues(t, 40, objects[0].Metadata().Revision)
	require.True(t, objects[0].Metadata().CreatedAt.Equal(time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWatchStreamsDirectoryEdits(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	backend, err := New(Config{Directory: dir})
	require.NoError(t, err)

	events, err := backend.Watch(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "web.yaml", serviceDoc("web", 8080))
	event := awaitEvent(t, events, store.EventUpsert, "Service/default/web")
	require.NotNil(t, event.Object)

	require.NoError(t, os.Remove(filepath.Join(dir, "web.yaml")))
	event = awaitEvent(t, events, store.EventDelete, "Service/default/web")
	require.Nil(t, event.Object)
}

// awaitEvent drains events until one matches; partial writes may
// surface extra upserts ahead of the settled content.
func awaitEvent(t *testing.T, events <-chan store.Event, eventType store.EventType, key string) store.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == eventType && event.Key.String() == key {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s of %s", eventType, key)
		}
	}
}
