package compiler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/compiler"
	"github.com/projectcontour/contour-sub001/internal/compiler/mocks"
	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/graph"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/service"
	"github.com/projectcontour/contour-sub001/internal/status"
)

type consumerFunc func(ctx context.Context, snapshot *core.Snapshot) error

func (f consumerFunc) OnSnapshot(ctx context.Context, snapshot *core.Snapshot) error {
	return f(ctx, snapshot)
}

func testCompiler(c *cache.Cache, registry *service.Registry, consumer compiler.SnapshotConsumer, holdoff time.Duration) *compiler.Compiler {
	return compiler.New(compiler.Config{
		Cache:          c,
		Builder:        graph.NewBuilder(graph.Config{Resolver: registry}),
		Statuses:       status.NewUpdater(status.UpdaterConfig{}),
		Consumer:       consumer,
		RebuildHoldoff: holdoff,
	})
}

func rootProxy(name string, revision int64) *resource.Proxy {
	return &resource.Proxy{
		Meta: resource.Meta{
			Namespace: "default",
			Name:      name,
			Revision:  revision,
			CreatedAt: time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC),
		},
		VirtualHost: &resource.VirtualHost{Hostname: "example.com", Port: 8080},
		Routes: []resource.Route{{
			Conditions: []resource.MatchCondition{{Prefix: "/"}},
			Services:   []resource.ServiceRef{{Name: "web", Port: 8080}},
		}},
	}
}

func testService() *resource.Service {
	return &resource.Service{
		Meta:  resource.Meta{Namespace: "default", Name: "web", Revision: 1},
		Ports: []resource.ServicePort{{Port: 8080, Protocol: "http"}},
	}
}

func receiveSnapshot(t *testing.T, published <-chan *core.Snapshot) *core.Snapshot {
	t.Helper()
	select {
	case snapshot := <-published:
		return snapshot
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a published snapshot")
		return nil
	}
}

func waitStop(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop")
	}
}

func TestRunPublishesInitialBuild(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cache.New(cache.Config{})
	registry := service.NewRegistry(service.RegistryConfig{})
	registry.Store(testService())
	c.Put(rootProxy("www", 1))

	published := make(chan *core.Snapshot, 8)
	consumer := mocks.NewMockSnapshotConsumer(ctrl)
	consumer.EXPECT().OnSnapshot(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, snapshot *core.Snapshot) error {
			published <- snapshot
			return nil
		}).AnyTimes()

	comp := testCompiler(c, registry, consumer, 10*time.Millisecond)
	require.Nil(t, comp.Snapshot())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = comp.Run(ctx)
	}()

	snapshot := receiveSnapshot(t, published)
	require.Len(t, snapshot.Listeners, 1)
	require.Equal(t, "http-8080", snapshot.Listeners[0].Name)

	// readers see the snapshot the consumer got
	require.NotNil(t, comp.Snapshot())
	require.Equal(t, snapshot.ID, comp.Snapshot().ID)

	cancel()
	waitStop(t, done)
}

func TestRunCoalescesRapidChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cache.New(cache.Config{})
	registry := service.NewRegistry(service.RegistryConfig{})
	registry.Store(testService())

	published := make(chan *core.Snapshot, 8)
	comp := testCompiler(c, registry, consumerFunc(func(_ context.Context, snapshot *core.Snapshot) error {
		published <- snapshot
		return nil
	}), 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = comp.Run(ctx)
	}()

	initial := receiveSnapshot(t, published)
	require.Empty(t, initial.Listeners)

	for revision := int64(1); revision <= 5; revision++ {
		c.Put(rootProxy("www", revision))
	}

	next := receiveSnapshot(t, published)
	require.Len(t, next.Listeners, 1)

	// five rapid changes produced a single rebuild
	select {
	case extra := <-published:
		t.Fatalf("unexpected extra build %s", extra.ID)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	waitStop(t, done)
}

func TestRunBoundsHoldoffUnderConstantChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cache.New(cache.Config{})
	registry := service.NewRegistry(service.RegistryConfig{})

	published := make(chan *core.Snapshot, 8)
	comp := testCompiler(c, registry, consumerFunc(func(_ context.Context, snapshot *core.Snapshot) error {
		published <- snapshot
		return nil
	}), 30*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = comp.Run(ctx)
	}()

	receiveSnapshot(t, published)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Touch()
			}
		}
	}()

	// a build lands even though the cache never goes quiet
	receiveSnapshot(t, published)

	close(stop)
	wg.Wait()
	cancel()
	waitStop(t, done)
}

func TestRunToleratesConsumerFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cache.New(cache.Config{})
	registry := service.NewRegistry(service.RegistryConfig{})
	registry.Store(testService())

	published := make(chan *core.Snapshot, 8)
	comp := testCompiler(c, registry, consumerFunc(func(_ context.Context, snapshot *core.Snapshot) error {
		published <- snapshot
		return errors.New("consumer offline")
	}), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = comp.Run(ctx)
	}()

	initial := receiveSnapshot(t, published)
	require.NotNil(t, comp.Snapshot())

	// the loop keeps building after consumer failures
	c.Put(rootProxy("www", 1))
	next := receiveSnapshot(t, published)
	require.NotEqual(t, initial.ID, next.ID)
	require.Len(t, next.Listeners, 1)

	cancel()
	waitStop(t, done)
}
