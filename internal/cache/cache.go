package cache

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/maps"

	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

// Config holds the dependencies for a Cache.
type Config struct {
	Logger hclog.Logger
}

// Cache holds the latest revision of every document the compiler
// consumes. Writes are revision gated: a stale revision never replaces a
// newer one. Accepted changes raise the dirty signal; writers never
// block on the rebuild that follows.
type Cache struct {
	logger hclog.Logger

	mutex    sync.RWMutex
	proxies  map[resource.NamespacedName]*resource.Proxy
	routes   map[resource.NamespacedName]*resource.GatewayRoute
	gateways map[resource.NamespacedName]*resource.Gateway
	secrets  map[resource.NamespacedName]*resource.Secret

	dirty chan struct{}
}

func New(config Config) *Cache {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Cache{
		logger:   logger.Named("cache"),
		proxies:  make(map[resource.NamespacedName]*resource.Proxy),
		routes:   make(map[resource.NamespacedName]*resource.GatewayRoute),
		gateways: make(map[resource.NamespacedName]*resource.Gateway),
		secrets:  make(map[resource.NamespacedName]*resource.Secret),
		dirty:    make(chan struct{}, 1),
	}
}

// Changes signals whenever the cache contents change. The channel has a
// one-slot buffer; rapid mutations coalesce into a single signal.
func (c *Cache) Changes() <-chan struct{} {
	return c.dirty
}

// Put stores a document unless the held revision is newer, reporting
// whether the cache changed.
func (c *Cache) Put(obj resource.Object) bool {
	c.mutex.Lock()
	var changed bool
	switch doc := obj.(type) {
	case *resource.Proxy:
		changed = putDocument(c.proxies, doc)
	case *resource.GatewayRoute:
		changed = putDocument(c.routes, doc)
	case *resource.Gateway:
		changed = putDocument(c.gateways, doc)
	case *resource.Secret:
		changed = putDocument(c.secrets, doc)
	default:
		c.mutex.Unlock()
		c.logger.Warn("ignoring document of unknown kind", "kind", obj.Kind())
		return false
	}
	c.updateMetrics()
	c.mutex.Unlock()

	if changed {
		c.logger.Trace("cached document", "key", obj.Key().String(), "revision", obj.Metadata().Revision)
		c.notify()
	}
	return changed
}

// Delete removes a document, reporting whether anything was removed.
func (c *Cache) Delete(kind resource.Kind, name resource.NamespacedName) bool {
	c.mutex.Lock()
	var deleted bool
	switch kind {
	case resource.KindProxy:
		deleted = deleteDocument(c.proxies, name)
	case resource.KindGatewayRoute:
		deleted = deleteDocument(c.routes, name)
	case resource.KindGateway:
		deleted = deleteDocument(c.gateways, name)
	case resource.KindSecret:
		deleted = deleteDocument(c.secrets, name)
	}
	c.updateMetrics()
	c.mutex.Unlock()

	if deleted {
		c.logger.Trace("removed document", "key", resource.KeyFor(kind, name).String())
		c.notify()
	}
	return deleted
}

// Touch raises the dirty signal without changing the cache. Collaborators
// holding build inputs of their own (the service registry) call this
// when their state changes.
func (c *Cache) Touch() {
	c.notify()
}

// Snapshot returns a point-in-time view of the cache. The maps are
// copies; the documents are shared and must not be mutated.
func (c *Cache) Snapshot() *Snapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return &Snapshot{
		Proxies:  maps.Clone(c.proxies),
		Routes:   maps.Clone(c.routes),
		Gateways: maps.Clone(c.gateways),
		Secrets:  maps.Clone(c.secrets),
	}
}

func (c *Cache) notify() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// updateMetrics is called with the mutex held.
func (c *Cache) updateMetrics() {
	metrics.Registry.Cache.Documents.WithLabelValues(string(resource.KindProxy)).Set(float64(len(c.proxies)))
	metrics.Registry.Cache.Documents.WithLabelValues(string(resource.KindGatewayRoute)).Set(float64(len(c.routes)))
	metrics.Registry.Cache.Documents.WithLabelValues(string(resource.KindGateway)).Set(float64(len(c.gateways)))
	metrics.Registry.Cache.Documents.WithLabelValues(string(resource.KindSecret)).Set(float64(len(c.secrets)))
}

func putDocument[T resource.Object](documents map[resource.NamespacedName]T, doc T) bool {
	name := doc.Metadata().NamespacedName()
	if existing, found := documents[name]; found && existing.Metadata().Revision >= doc.Metadata().Revision {
		return false
	}
	documents[name] = doc
	return true
}

func deleteDocument[T resource.Object](documents map[resource.NamespacedName]T, name resource.NamespacedName) bool {
	if _, found := documents[name]; !found {
		return false
	}
	delete(documents, name)
	return true
}

// Snapshot is a consistent view of the cache taken at rebuild start.
type Snapshot struct {
	Proxies  map[resource.NamespacedName]*resource.Proxy
	Routes   map[resource.NamespacedName]*resource.GatewayRoute
	Gateways map[resource.NamespacedName]*resource.Gateway
	Secrets  map[resource.NamespacedName]*resource.Secret
}

// Proxy looks up a proxy document by name.
func (s *Snapshot) Proxy(name resource.NamespacedName) (*resource.Proxy, bool) {
	proxy, found := s.Proxies[name]
	return proxy, found
}

// Secret looks up a secret document by name.
func (s *Snapshot) Secret(name resource.NamespacedName) (*resource.Secret, bool) {
	secret, found := s.Secrets[name]
	return secret, found
}

// Gateway looks up a gateway document by name.
func (s *Snapshot) Gateway(name resource.NamespacedName) (*resource.Gateway, bool) {
	gateway, found := s.Gateways[name]
	return gateway, found
}
