package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/status"
)

// collectProxyRequests walks every root document's delegation tree and
// returns one listener request per usable root.
func (c *compilation) collectProxyRequests(ctx context.Context) []*listenerRequest {
	proxies := maps.Values(c.snapshot.Proxies)
	sort.Slice(proxies, func(i, j int) bool {
		return proxies[i].NamespacedName().String() < proxies[j].NamespacedName().String()
	})

	var requests []*listenerRequest
	for _, proxy := range proxies {
		if !proxy.Root() {
			continue
		}
		if request, ok := c.buildRootRequest(ctx, proxy); ok {
			requests = append(requests, request)
		}
	}
	return requests
}

// buildRootRequest validates a root's virtual host block and walks its
// tree. Structural failures here invalidate the root and leave its
// exclusive descendants unreached, which the orphan pass picks up.
func (c *compilation) buildRootRequest(ctx context.Context, proxy *resource.Proxy) (*listenerRequest, bool) {
	key := proxy.Key()
	vhost := proxy.VirtualHost
	subject := fmt.Sprintf("virtualhost %q", vhost.Hostname)

	if err := validateHostname(vhost.Hostname); err != nil {
		c.statuses.AddError(key, status.ReasonVirtualHostError, subject, err.Error())
		return nil, false
	}
	if vhost.Port < 0 || vhost.Port > 65535 {
		c.statuses.AddError(key, status.ReasonVirtualHostError, subject,
			fmt.Sprintf("port %d is out of range", vhost.Port))
		return nil, false
	}

	var tls *core.TLSDescriptor
	if vhost.TLS != nil {
		descriptor, err := c.resolveTLS(proxy.Namespace, vhost.TLS)
		if err != nil {
			c.statuses.AddError(key, status.ReasonTLSError, subject, err.Error())
			return nil, false
		}
		tls = descriptor
	}

	protocol := core.ProtocolHTTP
	port := vhost.Port
	if tls != nil {
		protocol = core.ProtocolHTTPS
		if port == 0 {
			port = c.defaultHTTPSPort
		}
	} else if port == 0 {
		port = c.defaultHTTPPort
	}

	return &listenerRequest{
		origin:       originProxy,
		source:       key,
		meta:         proxy.Meta,
		subject:      subject,
		hostname:     vhost.Hostname,
		externalPort: port,
		protocol:     protocol,
		tls:          tls,
		rootName:     proxy.NamespacedName(),
		routes:       c.walkRoot(ctx, proxy),
	}, true
}

// walkRoot gathers the routes of one delegation tree in declaration
// order: depth first, a document's own routes before its includes.
func (c *compilation) walkRoot(ctx context.Context, root *resource.Proxy) []core.Route {
	c.visits = c.visits[:0]
	var routes []core.Route
	c.walkProxy(ctx, root, root, matchSet{}, []resource.NamespacedName{root.NamespacedName()}, &routes)
	c.logger.Trace("walked delegation tree", "root", root.NamespacedName().String(), "routes", len(routes))
	return routes
}

// walkProxy visits one document on the path from root. It returns the
// stack depth a detected cycle re-entered, or -1. The frame at that
// depth owns the cycle entry: it discards everything the entry's subtree
// contributed on this path and resumes its parent's traversal.
func (c *compilation) walkProxy(ctx context.Context, root, proxy *resource.Proxy, base matchSet, stack []resource.NamespacedName, out *[]core.Route) int {
	name := proxy.NamespacedName()
	mark := len(*out)
	visitMark := len(c.visits)
	c.markReachable(name, root.NamespacedName())

	key := proxy.Key()
	for index, route := range proxy.Routes {
		if built, ok := c.buildRoute(ctx, key, proxy.Namespace, index, route, base); ok {
			*out = append(*out, built)
		}
	}

	for _, include := range proxy.Includes {
		target := resource.NamespacedName{Namespace: include.Namespace, Name: include.Name}
		if target.Namespace == "" {
			target.Namespace = proxy.Namespace
		}
		subject := fmt.Sprintf("include %q", target.String())

		if entry := indexOf(stack, target); entry >= 0 {
			c.reportCycle(root, stack, entry, target)
			if entry == len(stack)-1 {
				// Self include: this frame is the entry. Drop its
				// contribution and stop traversing it.
				*out = (*out)[:mark]
				c.unwindVisits(visitMark, root.NamespacedName())
				return -1
			}
			return entry
		}

		child, found := c.snapshot.Proxy(target)
		if !found {
			c.statuses.AddError(key, status.ReasonIncludeNotFound, subject,
				fmt.Sprintf("include target %q does not exist", target.String()))
			c.warnSubtreeExcluded(root, key, subject, "include target does not exist")
			continue
		}
		if child.Root() {
			c.statuses.AddError(key, status.ReasonIncludeError, subject,
				fmt.Sprintf("cannot include root document %q", target.String()))
			c.warnSubtreeExcluded(root, key, subject, "include target is a root document")
			continue
		}
		merged, err := mergeInclude(base, include.Conditions)
		if err != nil {
			c.statuses.AddError(key, status.ReasonInvalidConditions, subject, err.Error())
			c.warnSubtreeExcluded(root, key, subject, "include conditions are invalid")
			continue
		}

		if entry := c.walkProxy(ctx, root, child, merged, append(stack, target), out); entry >= 0 {
			if entry == len(stack)-1 {
				*out = (*out)[:mark]
				c.unwindVisits(visitMark, root.NamespacedName())
				return -1
			}
			return entry
		}
	}
	return -1
}

// reportCycle marks every document on the cycle with a fatal error
// naming the full path. stack[entry] is the first repeated document.
func (c *compilation) reportCycle(root *resource.Proxy, stack []resource.NamespacedName, entry int, repeated resource.NamespacedName) {
	members := stack[entry:]
	names := make([]string, 0, len(members)+1)
	for _, member := range members {
		names = append(names, member.String())
	}
	names = append(names, repeated.String())
	message := fmt.Sprintf("delegation cycle %s", strings.Join(names, " -> "))

	for i, member := range members {
		next := repeated
		if i+1 < len(members) {
			next = members[i+1]
		}
		memberKey := resource.KeyFor(resource.KindProxy, member)
		c.cycleMembers[member] = struct{}{}
		c.statuses.AddError(memberKey, status.ReasonDelegationCycle,
			fmt.Sprintf("include %q", next.String()), message)
	}

	if entry > 0 {
		c.warnSubtreeExcluded(root, resource.KeyFor(resource.KindProxy, members[0]),
			fmt.Sprintf("include %q", repeated.String()), message)
	}
}

// warnSubtreeExcluded records on the root that part of its tree was left
// out of the published graph. The root keeps the warning unless it
// carries the error itself.
func (c *compilation) warnSubtreeExcluded(root *resource.Proxy, errorKey resource.Key, subject, cause string) {
	rootKey := root.Key()
	if rootKey == errorKey {
		return
	}
	c.statuses.AddWarning(rootKey, status.ReasonSubtreeExcluded, subject,
		fmt.Sprintf("subtree excluded from the graph: %s", cause))
}

func (c *compilation) markReachable(name, root resource.NamespacedName) {
	c.visits = append(c.visits, name)
	roots, found := c.reachable[name]
	if !found {
		roots = map[resource.NamespacedName]int{}
		c.reachable[name] = roots
	}
	roots[root]++
}

// unwindVisits retracts the reachability recorded since visitMark for a
// discarded subtree. Documents on a cycle stay marked: they were
// genuinely reached and their fatal error explains the outcome.
func (c *compilation) unwindVisits(visitMark int, root resource.NamespacedName) {
	for _, name := range c.visits[visitMark:] {
		if _, member := c.cycleMembers[name]; member {
			continue
		}
		roots := c.reachable[name]
		roots[root]--
		if roots[root] <= 0 {
			delete(roots, root)
		}
	}
	c.visits = c.visits[:visitMark]
}

// markOrphans reports every non-root document no surviving root reaches.
// Documents never walked at all still get their own structure checked so
// the orphan record carries any latent errors.
func (c *compilation) markOrphans(ctx context.Context, acceptedRoots map[resource.NamespacedName]struct{}) {
	names := maps.Keys(c.snapshot.Proxies)
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })

	for _, name := range names {
		proxy := c.snapshot.Proxies[name]
		if proxy.Root() {
			continue
		}
		if _, member := c.cycleMembers[name]; member {
			continue
		}
		roots, walked := c.reachable[name]
		if walked && len(roots) > 0 {
			alive := false
			for root := range roots {
				if _, ok := acceptedRoots[root]; ok {
					alive = true
					break
				}
			}
			if alive {
				continue
			}
		}
		c.statuses.MarkOrphaned(proxy.Key())
		if !walked {
			c.validateOrphan(ctx, proxy)
		}
	}
}

// validateOrphan checks an unreached document's own structure without
// recursing, so its status reports latent problems alongside the orphan
// verdict.
func (c *compilation) validateOrphan(ctx context.Context, proxy *resource.Proxy) {
	key := proxy.Key()
	for index, route := range proxy.Routes {
		c.buildRoute(ctx, key, proxy.Namespace, index, route, matchSet{})
	}
	for _, include := range proxy.Includes {
		target := resource.NamespacedName{Namespace: include.Namespace, Name: include.Name}
		if target.Namespace == "" {
			target.Namespace = proxy.Namespace
		}
		subject := fmt.Sprintf("include %q", target.String())
		if _, found := c.snapshot.Proxy(target); !found {
			c.statuses.AddError(key, status.ReasonIncludeNotFound, subject,
				fmt.Sprintf("include target %q does not exist", target.String()))
			continue
		}
		if _, err := mergeInclude(matchSet{}, include.Conditions); err != nil {
			c.statuses.AddError(key, status.ReasonInvalidConditions, subject, err.Error())
		}
	}
}

func indexOf(stack []resource.NamespacedName, name resource.NamespacedName) int {
	for i, entry := range stack {
		if entry == name {
			return i
		}
	}
	return -1
}
