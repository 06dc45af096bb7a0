package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/compiler"
	"github.com/projectcontour/contour-sub001/internal/config"
	"github.com/projectcontour/contour-sub001/internal/debug"
	"github.com/projectcontour/contour-sub001/internal/graph"
	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/service"
	"github.com/projectcontour/contour-sub001/internal/status"
	"github.com/projectcontour/contour-sub001/internal/store/file"
)

type ServerConfig struct {
	Context context.Context
	Logger  hclog.Logger
	Config  *config.Config

	// Consumer receives published snapshots. Nil is allowed; snapshots
	// stay reachable through the debug endpoints.
	Consumer compiler.SnapshotConsumer
}

func RunServer(config ServerConfig) int {
	// Set up signal handlers and global context
	ctx, cancel := context.WithCancel(config.Context)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(interrupt)
		cancel()
	}()
	go func() {
		select {
		case <-interrupt:
			config.Logger.Debug("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	setupTelemetry(config.Logger)

	cfg := config.Config

	backend, err := file.New(file.Config{
		Logger:    config.Logger,
		Directory: cfg.StoreDirectory,
	})
	if err != nil {
		config.Logger.Error("error opening the document store", "error", err)
		return 1
	}

	documents := cache.New(cache.Config{Logger: config.Logger})
	services := service.NewRegistry(service.RegistryConfig{Logger: config.Logger})

	watcher := compiler.NewWatcher(compiler.WatcherConfig{
		Logger:   config.Logger,
		Backend:  backend,
		Cache:    documents,
		Services: services,
	})

	builder := graph.NewBuilder(graph.Config{
		Logger:           config.Logger,
		Resolver:         services,
		SortMode:         cfg.RouteSortMode,
		DefaultHTTPPort:  cfg.DefaultHTTPPort,
		DefaultHTTPSPort: cfg.DefaultHTTPSPort,
	})

	statuses := status.NewUpdater(status.UpdaterConfig{
		Logger:          config.Logger,
		Sink:            status.NewLogSink(config.Logger),
		WritesPerSecond: cfg.StatusWritesPerSecond,
	})

	comp := compiler.New(compiler.Config{
		Logger:         config.Logger,
		Cache:          documents,
		Builder:        builder,
		Statuses:       statuses,
		Consumer:       config.Consumer,
		RebuildHoldoff: cfg.RebuildHoldoff,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return watcher.Run(groupCtx)
	})
	group.Go(func() error {
		return comp.Run(groupCtx)
	})
	group.Go(func() error {
		return statuses.Run(groupCtx)
	})

	if cfg.MetricsAddress != "" {
		group.Go(func() error {
			return metrics.RunServer(groupCtx, config.Logger.Named("metrics"), cfg.MetricsAddress)
		})
	}

	if cfg.DebugAddress != "" {
		group.Go(func() error {
			return debug.RunServer(groupCtx, config.Logger.Named("debug"), cfg.DebugAddress, comp.Snapshot)
		})
	}

	if err := group.Wait(); err != nil {
		config.Logger.Error("unexpected error", "error", err)
		return 1
	}

	config.Logger.Info("shutting down")
	return 0
}

var telemetryOnce sync.Once

// setupTelemetry installs the in-memory go-metrics sink so timing data
// can be dumped with SIGUSR1.
func setupTelemetry(logger hclog.Logger) {
	telemetryOnce.Do(func() {
		sink := gometrics.NewInmemSink(10*time.Second, time.Minute)
		gometrics.DefaultInmemSignal(sink)
		if _, err := gometrics.NewGlobal(gometrics.DefaultConfig("routegraph"), sink); err != nil {
			logger.Warn("error installing telemetry sink", "error", err)
		}
	})
}
