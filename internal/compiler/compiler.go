// Package compiler drives the continuous rebuild loop: cache changes
// are debounced into single-flight builds, and each finished snapshot
// is published atomically for readers, handed to the snapshot consumer,
// and reported through the status updater.
package compiler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/graph"
	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/status"
)

//go:generate mockgen -source ./compiler.go -destination ./mocks/compiler.go -package mocks

// SnapshotConsumer receives each published snapshot. A failure is
// logged, never retried: the consumer catches up on the next build.
type SnapshotConsumer interface {
	OnSnapshot(ctx context.Context, snapshot *core.Snapshot) error
}

const (
	defaultHoldoff = 100 * time.Millisecond
	// holdoffCapFactor bounds how far a hot cache can push a rebuild
	// out: at most ten holdoff windows pass before a build runs anyway.
	holdoffCapFactor = 10
)

// Config holds the dependencies for a Compiler.
type Config struct {
	Logger   hclog.Logger
	Cache    *cache.Cache
	Builder  *graph.Builder
	Statuses *status.Updater
	Consumer SnapshotConsumer
	// RebuildHoldoff is the quiet period after a change before a
	// rebuild starts. Further changes inside the window extend it.
	RebuildHoldoff time.Duration
}

// Compiler owns the rebuild loop. Builds run one at a time on the Run
// goroutine; readers get the last published snapshot without locking.
type Compiler struct {
	logger   hclog.Logger
	cache    *cache.Cache
	builder  *graph.Builder
	statuses *status.Updater
	consumer SnapshotConsumer
	holdoff  time.Duration

	published atomic.Pointer[core.Snapshot]
}

func New(config Config) *Compiler {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	holdoff := config.RebuildHoldoff
	if holdoff <= 0 {
		holdoff = defaultHoldoff
	}
	return &Compiler{
		logger:   logger.Named("compiler"),
		cache:    config.Cache,
		builder:  config.Builder,
		statuses: config.Statuses,
		consumer: config.Consumer,
		holdoff:  holdoff,
	}
}

// Snapshot returns the last published snapshot, nil before the first
// build completes.
func (c *Compiler) Snapshot() *core.Snapshot {
	return c.published.Load()
}

// Run builds once immediately, then rebuilds on cache changes until ctx
// is canceled.
func (c *Compiler) Run(ctx context.Context) error {
	c.rebuild(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.cache.Changes():
		}

		if err := c.settle(ctx); err != nil {
			return nil
		}
		c.rebuild(ctx)
	}
}

// settle waits for the change stream to go quiet: every further change
// restarts the holdoff window, up to the cap.
func (c *Compiler) settle(ctx context.Context) error {
	quiet := time.NewTimer(c.holdoff)
	defer quiet.Stop()
	deadline := time.NewTimer(time.Duration(holdoffCapFactor) * c.holdoff)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quiet.C:
			return nil
		case <-deadline.C:
			return nil
		case <-c.cache.Changes():
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(c.holdoff)
		}
	}
}

func (c *Compiler) rebuild(ctx context.Context) {
	// a change signal raised before this point is covered by the
	// snapshot taken below; absorb it so it does not trigger a
	// redundant rebuild
	select {
	case <-c.cache.Changes():
	default:
	}

	result := c.builder.Build(ctx, c.cache.Snapshot())
	c.published.Store(result.Snapshot)
	c.updateMetrics(result)
	c.statuses.Enqueue(result.Statuses)

	if c.consumer != nil {
		if err := c.consumer.OnSnapshot(ctx, result.Snapshot); err != nil {
			c.logger.Error("snapshot consumer rejected the build", "id", result.Snapshot.ID, "error", err)
		}
	}

	listeners, virtualHosts, routes := result.Snapshot.Stats()
	c.logger.Info("published snapshot",
		"id", result.Snapshot.ID,
		"listeners", listeners,
		"virtual_hosts", virtualHosts,
		"routes", routes)
}

func (c *Compiler) updateMetrics(result *graph.Result) {
	metrics.Registry.Graph.Rebuilds.Inc()

	listeners, virtualHosts, routes := result.Snapshot.Stats()
	metrics.Registry.Graph.Listeners.Set(float64(listeners))
	metrics.Registry.Graph.VirtualHosts.Set(float64(virtualHosts))
	metrics.Registry.Graph.Routes.Set(float64(routes))

	invalid := 0
	for _, update := range result.Statuses {
		if update.Record.Verdict == status.VerdictInvalid {
			invalid++
		}
	}
	metrics.Registry.Graph.InvalidDocuments.Set(float64(invalid))
}
