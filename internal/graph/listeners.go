package graph

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/status"
)

const (
	privilegedPortMax = 1023
	remappedPortBase  = 8000
)

// MapExternalPort maps a requested external port onto the internal port
// the data plane binds. Privileged ports remap deterministically so the
// proxy never needs elevated capabilities; everything else passes
// through unchanged.
func MapExternalPort(external int) int {
	if external >= 1 && external <= privilegedPortMax {
		return remappedPortBase + external
	}
	return external
}

type listenerOrigin int

const (
	originProxy listenerOrigin = iota
	originGateway
)

// listenerRequest is one logical listener wanted by a source document:
// a root's virtual host or a gateway's listener entry.
type listenerRequest struct {
	origin  listenerOrigin
	source  resource.Key
	meta    resource.Meta
	subject string

	hostname     string
	externalPort int
	protocol     core.Protocol
	tls          *core.TLSDescriptor

	// originProxy
	rootName resource.NamespacedName
	routes   []core.Route

	// originGateway
	gatewayName   resource.NamespacedName
	listenerName  string
	listenerIndex int
}

// mergeListeners resolves all listener requests onto the internal port
// space and assembles the surviving listeners. It returns the listeners
// and the set of root documents whose virtual host survived.
func (c *compilation) mergeListeners(ctx context.Context, requests []*listenerRequest) ([]core.Listener, map[resource.NamespacedName]struct{}) {
	groups := map[int][]*listenerRequest{}
	for _, request := range requests {
		port := MapExternalPort(request.externalPort)
		groups[port] = append(groups[port], request)
	}

	acceptedRoots := map[resource.NamespacedName]struct{}{}
	acceptedByPort := map[int][]*listenerRequest{}
	ownedHostnames := map[int]map[string]struct{}{}
	var accepted []*listenerRequest

	ports := maps.Keys(groups)
	sort.Ints(ports)
	for _, port := range ports {
		survivors := c.rejectSameSourceConflicts(port, groups[port])
		for _, request := range c.resolvePortGroup(port, survivors) {
			acceptedByPort[port] = append(acceptedByPort[port], request)
			accepted = append(accepted, request)
			if request.origin == originProxy {
				acceptedRoots[request.rootName] = struct{}{}
				if _, found := ownedHostnames[port]; !found {
					ownedHostnames[port] = map[string]struct{}{}
				}
				ownedHostnames[port][request.hostname] = struct{}{}
			}
		}
	}

	bound := c.bindGatewayRoutes(ctx, accepted, ownedHostnames)

	var listeners []core.Listener
	for _, port := range ports {
		if listener, ok := c.assembleListener(port, acceptedByPort[port], bound); ok {
			listeners = append(listeners, listener)
		}
	}
	return listeners, acceptedRoots
}

// rejectSameSourceConflicts drops every request that conflicts with
// another request from the same source document. Conflicts inside one
// document have no older claim to fall back on, so all parties lose.
func (c *compilation) rejectSameSourceConflicts(port int, group []*listenerRequest) []*listenerRequest {
	rejected := map[*listenerRequest]struct{}{}
	for i, request := range group {
		for _, other := range group[i+1:] {
			if request.source != other.source {
				continue
			}
			reason, message, conflicting := c.classifyConflict(port, request, other)
			if !conflicting {
				continue
			}
			rejected[request] = struct{}{}
			rejected[other] = struct{}{}
			c.statuses.AddError(request.source, reason, request.subject,
				fmt.Sprintf("conflicts with %s in the same document: %s", other.subject, message))
			c.statuses.AddError(other.source, reason, other.subject,
				fmt.Sprintf("conflicts with %s in the same document: %s", request.subject, message))
		}
	}
	survivors := make([]*listenerRequest, 0, len(group))
	for _, request := range group {
		if _, dropped := rejected[request]; !dropped {
			survivors = append(survivors, request)
		}
	}
	return survivors
}

// resolvePortGroup orders a port's surviving requests by precedence and
// accepts each one that coexists with everything accepted before it.
// The oldest document wins a conflict; the loser's status names the
// winner.
func (c *compilation) resolvePortGroup(port int, group []*listenerRequest) []*listenerRequest {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].meta.Precedes(group[j].meta)
	})

	var winners []*listenerRequest
	for _, request := range group {
		conflicted := false
		for _, winner := range winners {
			reason, message, conflicting := c.classifyConflict(port, request, winner)
			if !conflicting {
				continue
			}
			c.statuses.AddError(request.source, reason, request.subject,
				fmt.Sprintf("conflicts with %s %s: %s", winner.source.String(), winner.subject, message))
			conflicted = true
			break
		}
		if !conflicted {
			winners = append(winners, request)
		}
	}
	return winners
}

// classifyConflict reports whether two requests sharing an internal port
// can coexist, and describes the incompatibility when they cannot.
// Gateway listeners with an identical hostname, protocol, and TLS
// configuration merge instead of conflicting.
func (c *compilation) classifyConflict(port int, a, b *listenerRequest) (string, string, bool) {
	if a.externalPort != b.externalPort {
		return status.ReasonPortConflict,
			fmt.Sprintf("external ports %d and %d both map to internal port %d", a.externalPort, b.externalPort, port),
			true
	}
	if a.protocol != b.protocol {
		return status.ReasonPortConflict,
			fmt.Sprintf("protocols %s and %s cannot share port %d", a.protocol, b.protocol, port),
			true
	}
	if a.hostname != b.hostname {
		return "", "", false
	}
	if a.origin == originGateway && b.origin == originGateway {
		if tlsEqual(a.tls, b.tls) {
			return "", "", false
		}
		return status.ReasonListenerConflict,
			fmt.Sprintf("hostname %q is served with a different TLS configuration", a.hostname),
			true
	}
	if a.hostname == "" {
		return status.ReasonListenerConflict,
			fmt.Sprintf("duplicate catch-all listener on port %d", port),
			true
	}
	return status.ReasonListenerConflict,
		fmt.Sprintf("duplicate hostname %q on port %d", a.hostname, port),
		true
}

// assembleListener folds a port's accepted requests into one listener.
// Virtual hosts with no routes are dropped, and a listener that would
// serve nothing is omitted entirely.
func (c *compilation) assembleListener(port int, accepted []*listenerRequest, bound map[*listenerRequest]map[string][]core.Route) (core.Listener, bool) {
	if len(accepted) == 0 {
		return core.Listener{}, false
	}

	vhosts := map[string]*core.VirtualHost{}
	for _, request := range accepted {
		switch request.origin {
		case originProxy:
			vhosts[request.hostname] = &core.VirtualHost{
				Hostname: request.hostname,
				TLS:      request.tls,
				Routes:   request.routes,
			}
		case originGateway:
			for hostname, routes := range bound[request] {
				vhost, found := vhosts[hostname]
				if !found {
					vhost = &core.VirtualHost{Hostname: hostname, TLS: request.tls}
					vhosts[hostname] = vhost
				}
				vhost.Routes = append(vhost.Routes, routes...)
			}
		}
	}

	hosts := make([]core.VirtualHost, 0, len(vhosts))
	for _, vhost := range vhosts {
		if len(vhost.Routes) == 0 {
			continue
		}
		SortRoutes(c.sortMode, vhost.Routes)
		hosts = append(hosts, *vhost)
	}
	if len(hosts) == 0 {
		return core.Listener{}, false
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].CatchAll() != hosts[j].CatchAll() {
			return hosts[j].CatchAll()
		}
		return hosts[i].Hostname < hosts[j].Hostname
	})

	protocol := accepted[0].protocol
	return core.Listener{
		Name:         fmt.Sprintf("%s-%d", protocol, port),
		Protocol:     protocol,
		Port:         port,
		ExternalPort: accepted[0].externalPort,
		VirtualHosts: hosts,
	}, true
}
