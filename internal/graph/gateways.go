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

// collectGatewayRequests validates every gateway's listeners and returns
// one listener request per usable listener.
func (c *compilation) collectGatewayRequests() []*listenerRequest {
	gateways := maps.Values(c.snapshot.Gateways)
	sort.Slice(gateways, func(i, j int) bool {
		return gateways[i].NamespacedName().String() < gateways[j].NamespacedName().String()
	})

	var requests []*listenerRequest
	for _, gateway := range gateways {
		key := gateway.Key()
		seen := map[string]struct{}{}
		for index, listener := range gateway.Listeners {
			subject := fmt.Sprintf("listener %q", listener.Name)
			if listener.Name == "" {
				subject = fmt.Sprintf("listener %d", index)
			} else if _, duplicate := seen[listener.Name]; duplicate {
				c.statuses.AddError(key, status.ReasonListenerError, subject,
					fmt.Sprintf("duplicate listener name %q", listener.Name))
				continue
			} else {
				seen[listener.Name] = struct{}{}
			}

			request, ok := c.buildListenerRequest(gateway, index, listener, subject)
			if !ok {
				continue
			}
			requests = append(requests, request)
		}
	}
	return requests
}

func (c *compilation) buildListenerRequest(gateway *resource.Gateway, index int, listener resource.Listener, subject string) (*listenerRequest, bool) {
	key := gateway.Key()
	if listener.Port < 1 || listener.Port > 65535 {
		c.statuses.AddError(key, status.ReasonListenerError, subject,
			fmt.Sprintf("port %d is out of range", listener.Port))
		return nil, false
	}
	if listener.Hostname != "" {
		if err := validateHostname(listener.Hostname); err != nil {
			c.statuses.AddError(key, status.ReasonListenerError, subject, err.Error())
			return nil, false
		}
	}

	var tls *core.TLSDescriptor
	switch listener.Protocol {
	case resource.ListenerProtocolHTTP:
		if listener.TLS != nil {
			c.statuses.AddError(key, status.ReasonListenerError, subject,
				"http listener cannot terminate TLS")
			return nil, false
		}
	case resource.ListenerProtocolHTTPS:
		if listener.TLS == nil {
			c.statuses.AddError(key, status.ReasonTLSError, subject,
				"https listener requires a tls block")
			return nil, false
		}
		descriptor, err := c.resolveTLS(gateway.Namespace, listener.TLS)
		if err != nil {
			c.statuses.AddError(key, status.ReasonTLSError, subject, err.Error())
			return nil, false
		}
		tls = descriptor
	default:
		c.statuses.AddError(key, status.ReasonListenerError, subject,
			fmt.Sprintf("unsupported protocol %q", listener.Protocol))
		return nil, false
	}

	protocol := core.ProtocolHTTP
	if tls != nil {
		protocol = core.ProtocolHTTPS
	}
	return &listenerRequest{
		origin:        originGateway,
		source:        key,
		meta:          gateway.Meta,
		subject:       subject,
		hostname:      listener.Hostname,
		externalPort:  listener.Port,
		protocol:      protocol,
		tls:           tls,
		gatewayName:   gateway.NamespacedName(),
		listenerName:  listener.Name,
		listenerIndex: index,
	}, true
}

// placement identifies one effective hostname on one internal port, so
// a route reaching the same slot through several listeners or parents is
// attached once.
type placement struct {
	port     int
	hostname string
}

// bindGatewayRoutes attaches every flat route document to the gateway
// listeners that survived the merge, and reports per-parent failures on
// the route. The result maps each surviving gateway member to the routes
// it serves, grouped by effective hostname. Hostnames a root document
// owns on a port are off limits to flat routes.
func (c *compilation) bindGatewayRoutes(ctx context.Context, accepted []*listenerRequest, owned map[int]map[string]struct{}) map[*listenerRequest]map[string][]core.Route {
	members := map[resource.NamespacedName][]*listenerRequest{}
	for _, member := range accepted {
		if member.origin == originGateway {
			members[member.gatewayName] = append(members[member.gatewayName], member)
		}
	}

	bound := map[*listenerRequest]map[string][]core.Route{}

	routeDocs := maps.Values(c.snapshot.Routes)
	sort.Slice(routeDocs, func(i, j int) bool {
		return routeDocs[i].NamespacedName().String() < routeDocs[j].NamespacedName().String()
	})

	for _, routeDoc := range routeDocs {
		key := routeDoc.Key()

		hostnames, ok := c.routeHostnames(routeDoc)
		if !ok {
			continue
		}

		var rules []core.Route
		for index, rule := range routeDoc.Rules {
			if built, valid := c.buildRoute(ctx, key, routeDoc.Namespace, index, rule, matchSet{}); valid {
				rules = append(rules, built)
			}
		}

		if len(routeDoc.Parents) == 0 {
			c.statuses.AddError(key, status.ReasonNoMatchingParent, "parents",
				"route names no parent gateway")
			continue
		}

		placed := map[placement]struct{}{}
		for _, parent := range routeDoc.Parents {
			c.bindParent(routeDoc, parent, rules, hostnames, members, owned, placed, bound)
		}
	}
	return bound
}

// routeHostnames validates and dedupes a route document's hostname list.
// A route whose every declared hostname is malformed must not fall back
// to matching everything, so it binds nothing.
func (c *compilation) routeHostnames(routeDoc *resource.GatewayRoute) ([]string, bool) {
	key := routeDoc.Key()
	seen := map[string]struct{}{}
	valid := make([]string, 0, len(routeDoc.Hostnames))
	for _, hostname := range routeDoc.Hostnames {
		if err := validateHostname(hostname); err != nil {
			c.statuses.AddError(key, status.ReasonRouteError,
				fmt.Sprintf("hostname %q", hostname), err.Error())
			continue
		}
		if _, duplicate := seen[hostname]; duplicate {
			continue
		}
		seen[hostname] = struct{}{}
		valid = append(valid, hostname)
	}
	if len(routeDoc.Hostnames) > 0 && len(valid) == 0 {
		return nil, false
	}
	return valid, true
}

func (c *compilation) bindParent(routeDoc *resource.GatewayRoute, parent resource.ParentRef, rules []core.Route, hostnames []string, members map[resource.NamespacedName][]*listenerRequest, owned map[int]map[string]struct{}, placed map[placement]struct{}, bound map[*listenerRequest]map[string][]core.Route) {
	key := routeDoc.Key()
	gatewayName := resource.NamespacedName{Namespace: parent.Namespace, Name: parent.Name}
	if gatewayName.Namespace == "" {
		gatewayName.Namespace = routeDoc.Namespace
	}
	subject := fmt.Sprintf("parent %q", gatewayName.String())
	if parent.SectionName != "" {
		subject = fmt.Sprintf("parent %q section %q", gatewayName.String(), parent.SectionName)
	}

	if _, found := c.snapshot.Gateway(gatewayName); !found {
		c.statuses.AddError(key, status.ReasonNoMatchingParent, subject,
			fmt.Sprintf("gateway %q does not exist", gatewayName.String()))
		return
	}

	var candidates []*listenerRequest
	for _, member := range members[gatewayName] {
		if parent.SectionName == "" || member.listenerName == parent.SectionName {
			candidates = append(candidates, member)
		}
	}
	if len(candidates) == 0 {
		c.statuses.AddError(key, status.ReasonNoMatchingParent, subject,
			"no usable listener on the parent gateway")
		return
	}

	boundAny := false
	claimed := false
	for _, member := range candidates {
		port := MapExternalPort(member.externalPort)
		for _, hostname := range intersectHostnames(hostnames, member.hostname) {
			if _, taken := owned[port][hostname]; taken {
				claimed = true
				continue
			}
			boundAny = true
			if len(rules) == 0 {
				continue
			}
			slot := placement{port: port, hostname: hostname}
			if _, already := placed[slot]; already {
				continue
			}
			placed[slot] = struct{}{}
			hostMap, found := bound[member]
			if !found {
				hostMap = map[string][]core.Route{}
				bound[member] = hostMap
			}
			hostMap[hostname] = append(hostMap[hostname], rules...)
		}
	}
	if !boundAny {
		if claimed {
			c.statuses.AddError(key, status.ReasonListenerConflict, subject,
				"every matching hostname on the shared port is owned by another document")
		} else {
			c.statuses.AddError(key, status.ReasonNoMatchingHostname, subject,
				"no route hostname intersects the listener hostnames")
		}
	}
}

// intersectHostnames narrows a route's hostnames to those a listener
// admits. An empty route list adopts the listener hostname; a listener
// without a hostname admits every route hostname.
func intersectHostnames(routeHostnames []string, listenerHostname string) []string {
	if len(routeHostnames) == 0 {
		return []string{listenerHostname}
	}
	if listenerHostname == "" {
		return append([]string{}, routeHostnames...)
	}
	var matched []string
	for _, hostname := range routeHostnames {
		if hostnamesOverlap(hostname, listenerHostname) {
			matched = append(matched, moreSpecificHostname(hostname, listenerHostname))
		}
	}
	return matched
}
