package compiler

import (
	"context"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/service"
	"github.com/projectcontour/contour-sub001/internal/store"
)

// WatcherConfig holds the dependencies for a Watcher.
type WatcherConfig struct {
	Logger   hclog.Logger
	Backend  store.Backend
	Cache    *cache.Cache
	Services *service.Registry
}

// Watcher feeds backend documents into the build inputs: routing
// documents go to the cache, service documents to the registry. A
// backend outage is retried with backoff while the last published
// snapshot stays authoritative.
type Watcher struct {
	logger   hclog.Logger
	backend  store.Backend
	cache    *cache.Cache
	services *service.Registry
}

func NewWatcher(config WatcherConfig) *Watcher {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Watcher{
		logger:   logger.Named("store-watcher"),
		backend:  config.Backend,
		cache:    config.Cache,
		services: config.Services,
	}
}

// Run syncs documents until ctx is canceled, reconnecting if the watch
// stream ends.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		events, err := w.connect(ctx)
		if err != nil {
			return nil
		}
		w.consume(ctx, events)
		if ctx.Err() != nil {
			return nil
		}
		w.logger.Warn("document watch ended, reconnecting")
	}
}

// connect starts a watch and replays the current document set, retrying
// until the backend answers or ctx ends. The watch starts before the
// list so changes landing between the two are not lost; replayed
// upserts are absorbed by the cache's revision gate.
func (w *Watcher) connect(ctx context.Context) (<-chan store.Event, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0

	var events <-chan store.Event
	err := backoff.Retry(func() error {
		watched, err := w.backend.Watch(ctx)
		if err != nil {
			w.logger.Error("error starting document watch", "error", err)
			return err
		}
		if err := w.sync(ctx); err != nil {
			w.logger.Error("error listing documents", "error", err)
			return err
		}
		events = watched
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (w *Watcher) sync(ctx context.Context) error {
	defer gometrics.MeasureSince(metrics.StoreSyncKey, time.Now())

	objects, err := w.backend.List(ctx)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		w.apply(store.Event{Type: store.EventUpsert, Key: obj.Key(), Object: obj})
	}
	w.logger.Debug("synced documents from the store", "count", len(objects))
	return nil
}

func (w *Watcher) consume(ctx context.Context, events <-chan store.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.apply(event)
		}
	}
}

// apply routes one event to the matching build input.
func (w *Watcher) apply(event store.Event) {
	if event.Key.Kind == resource.KindService {
		w.applyService(event)
		return
	}

	switch event.Type {
	case store.EventUpsert:
		if event.Object == nil {
			w.logger.Warn("ignoring upsert event without a document", "key", event.Key.String())
			return
		}
		w.cache.Put(event.Object)
	case store.EventDelete:
		w.cache.Delete(event.Key.Kind, event.Key.NamespacedName())
	}
}

// applyService updates the registry and raises the cache dirty signal,
// since service documents change build output without living in the
// cache.
func (w *Watcher) applyService(event store.Event) {
	switch event.Type {
	case store.EventUpsert:
		svc, ok := event.Object.(*resource.Service)
		if !ok {
			w.logger.Warn("ignoring service event with unexpected payload", "key", event.Key.String())
			return
		}
		if w.services.Store(svc) {
			w.cache.Touch()
		}
	case store.EventDelete:
		if w.services.Delete(event.Key.NamespacedName()) {
			w.cache.Touch()
		}
	}
}
