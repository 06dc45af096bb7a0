package service

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/metrics"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

// RegistryConfig holds the dependencies for a Registry.
type RegistryConfig struct {
	Logger hclog.Logger
}

// Registry resolves service references from the service documents the
// store has synced. It is the in-process implementation of Resolver.
type Registry struct {
	logger hclog.Logger

	mutex    sync.RWMutex
	services map[resource.NamespacedName]*resource.Service
}

var _ Resolver = (*Registry)(nil)

func NewRegistry(config RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		logger:   logger.Named("service-registry"),
		services: make(map[resource.NamespacedName]*resource.Service),
	}
}

// Store records a service document unless the held revision is newer,
// reporting whether the registry changed.
func (r *Registry) Store(svc *resource.Service) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := svc.NamespacedName()
	if existing, found := r.services[name]; found && existing.Revision >= svc.Revision {
		return false
	}
	r.services[name] = svc
	r.updateMetrics()
	return true
}

// Delete removes a service document, reporting whether the registry
// changed.
func (r *Registry) Delete(name resource.NamespacedName) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, found := r.services[name]; !found {
		return false
	}
	delete(r.services, name)
	r.updateMetrics()
	return true
}

// Resolve implements Resolver against the synced service documents.
func (r *Registry) Resolve(_ context.Context, namespace, name string, port int) (core.ResolvedService, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	svc, found := r.services[resource.NamespacedName{Namespace: namespace, Name: name}]
	if !found {
		return core.ResolvedService{}, &ResolutionError{Namespace: namespace, Name: name, Port: port, Err: ErrNotFound}
	}
	servicePort, found := svc.Port(port)
	if !found {
		return core.ResolvedService{}, &ResolutionError{Namespace: namespace, Name: name, Port: port, Err: ErrPortNotFound}
	}
	protocol := servicePort.Protocol
	if protocol == "" {
		protocol = resource.ProtocolHTTP
	}
	switch protocol {
	case resource.ProtocolHTTP, resource.ProtocolH2, resource.ProtocolH2C:
	default:
		return core.ResolvedService{}, &ResolutionError{Namespace: namespace, Name: name, Port: port, Err: ErrProtocolMismatch}
	}

	return core.ResolvedService{
		Namespace: namespace,
		Name:      name,
		Port:      port,
		Protocol:  protocol,
	}, nil
}

// updateMetrics is called with the mutex held.
func (r *Registry) updateMetrics() {
	metrics.Registry.Cache.Documents.WithLabelValues(string(resource.KindService)).Set(float64(len(r.services)))
}
