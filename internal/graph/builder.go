package graph

import (
	"context"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/service"
	"github.com/projectcontour/contour-sub001/internal/status"
)

const (
	// defaultHTTPPort is the external port a root without an explicit
	// port is served on.
	defaultHTTPPort = 80
	// defaultHTTPSPort is the external port a TLS root without an
	// explicit port is served on.
	defaultHTTPSPort = 443
)

// Config configures a graph builder.
type Config struct {
	Logger   hclog.Logger
	Resolver service.Resolver
	SortMode SortMode

	// DefaultHTTPPort and DefaultHTTPSPort override the external ports
	// assumed for roots that do not declare one.
	DefaultHTTPPort  int
	DefaultHTTPSPort int
}

// Builder compiles cached documents into routing graph snapshots. A
// builder is stateless across builds; every Build starts from the
// complete document set it is handed.
type Builder struct {
	logger           hclog.Logger
	resolver         service.Resolver
	sortMode         SortMode
	defaultHTTPPort  int
	defaultHTTPSPort int
}

// Result is the outcome of one build: the snapshot to publish and one
// status record per source document.
type Result struct {
	Snapshot *core.Snapshot
	Statuses []status.Update
}

// NewBuilder returns a builder for the given configuration.
func NewBuilder(config Config) *Builder {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	httpPort := config.DefaultHTTPPort
	if httpPort == 0 {
		httpPort = defaultHTTPPort
	}
	httpsPort := config.DefaultHTTPSPort
	if httpsPort == 0 {
		httpsPort = defaultHTTPSPort
	}
	return &Builder{
		logger:           logger.Named("graph"),
		resolver:         config.Resolver,
		sortMode:         config.SortMode,
		defaultHTTPPort:  httpPort,
		defaultHTTPSPort: httpsPort,
	}
}

// Build compiles the documents in snap into a routing graph. Build never
// fails: invalid documents degrade into status records and the returned
// snapshot holds everything that survived.
func (b *Builder) Build(ctx context.Context, snap *cache.Snapshot) *Result {
	start := time.Now()
	defer gometrics.MeasureSince(metrics.GraphBuildKey, start)

	c := &compilation{
		logger:           b.logger,
		resolver:         b.resolver,
		sortMode:         b.sortMode,
		defaultHTTPPort:  b.defaultHTTPPort,
		defaultHTTPSPort: b.defaultHTTPSPort,
		snapshot:         snap,
		statuses:         status.NewAccumulator(),
		reachable:        map[resource.NamespacedName]map[resource.NamespacedName]int{},
		cycleMembers:     map[resource.NamespacedName]struct{}{},
	}
	c.observeDocuments()

	requests := c.collectProxyRequests(ctx)
	requests = append(requests, c.collectGatewayRequests()...)
	listeners, acceptedRoots := c.mergeListeners(ctx, requests)
	c.markOrphans(ctx, acceptedRoots)

	result := &Result{
		Snapshot: core.NewSnapshot(listeners),
		Statuses: c.statuses.Finalize(),
	}

	listenerCount, vhostCount, routeCount := result.Snapshot.Stats()
	b.logger.Debug("graph build complete",
		"id", result.Snapshot.ID,
		"listeners", listenerCount,
		"virtual_hosts", vhostCount,
		"routes", routeCount,
		"statuses", len(result.Statuses),
		"elapsed", time.Since(start))
	return result
}

// compilation carries the working state of a single build.
type compilation struct {
	logger           hclog.Logger
	resolver         service.Resolver
	sortMode         SortMode
	defaultHTTPPort  int
	defaultHTTPSPort int

	snapshot *cache.Snapshot
	statuses *status.Accumulator

	// reachable counts, per document, the live traversal paths from
	// each root. visits is the walk log the cycle handling unwinds.
	reachable    map[resource.NamespacedName]map[resource.NamespacedName]int
	visits       []resource.NamespacedName
	cycleMembers map[resource.NamespacedName]struct{}
}

// observeDocuments seeds a status record for every source document so
// untouched documents still report as valid at their observed revision.
func (c *compilation) observeDocuments() {
	for _, proxy := range c.snapshot.Proxies {
		c.statuses.Observe(proxy.Key(), proxy.Revision)
	}
	for _, route := range c.snapshot.Routes {
		c.statuses.Observe(route.Key(), route.Revision)
	}
	for _, gateway := range c.snapshot.Gateways {
		c.statuses.Observe(gateway.Key(), gateway.Revision)
	}
}
