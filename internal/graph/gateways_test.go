package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/status"
)

func gatewayKey(name string) resource.Key {
	return resource.Key{Kind: resource.KindGateway, Namespace: "default", Name: name}
}

func routeKey(name string) resource.Key {
	return resource.Key{Kind: resource.KindGatewayRoute, Namespace: "default", Name: name}
}

func TestBuildBindsFlatRoutes(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "web", Port: 9000, Protocol: resource.ListenerProtocolHTTP, Hostname: "*.example.com"},
		},
	}
	route := &resource.GatewayRoute{
		Meta:      docMeta("app", time.Minute),
		Parents:   []resource.ParentRef{{Name: "gw", SectionName: "web"}},
		Hostnames: []string{"app.example.com", "other.example.org"},
		Rules:     []resource.Route{testRoute("/app", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"}, gateway, route)

	require.Len(t, result.Snapshot.Listeners, 1)
	listener := result.Snapshot.Listeners[0]
	require.Equal(t, 9000, listener.Port)
	require.Len(t, listener.VirtualHosts, 1)

	// The wildcard listener narrows to the precise route hostname; the
	// non-matching hostname simply does not bind here.
	vhost := listener.VirtualHosts[0]
	require.Equal(t, "app.example.com", vhost.Hostname)
	require.Equal(t, []string{"/app"}, routePaths(vhost))
	require.Equal(t, "GatewayRoute", vhost.Routes[0].Source.Kind)

	require.Equal(t, status.VerdictValid, recordFor(t, result, routeKey("app")).Verdict)
	require.Equal(t, status.VerdictValid, recordFor(t, result, gatewayKey("gw")).Verdict)
}

func TestBuildRouteWithoutHostnamesAdoptsListener(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "web", Port: 9000, Protocol: resource.ListenerProtocolHTTP, Hostname: "api.example.com"},
		},
	}
	route := &resource.GatewayRoute{
		Meta:    docMeta("app", time.Minute),
		Parents: []resource.ParentRef{{Name: "gw"}},
		Rules:   []resource.Route{testRoute("/app", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"}, gateway, route)

	require.Len(t, result.Snapshot.Listeners, 1)
	vhost := result.Snapshot.Listeners[0].VirtualHosts[0]
	require.Equal(t, "api.example.com", vhost.Hostname)
	require.Equal(t, []string{"/app"}, routePaths(vhost))
}

func TestBuildRouteParentFailures(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "web", Port: 9000, Protocol: resource.ListenerProtocolHTTP, Hostname: "*.example.com"},
		},
	}
	missingGateway := &resource.GatewayRoute{
		Meta:    docMeta("no-gateway", time.Minute),
		Parents: []resource.ParentRef{{Name: "ghost"}},
		Rules:   []resource.Route{testRoute("/a", "svc1")},
	}
	missingSection := &resource.GatewayRoute{
		Meta:    docMeta("no-section", time.Minute),
		Parents: []resource.ParentRef{{Name: "gw", SectionName: "metrics"}},
		Rules:   []resource.Route{testRoute("/b", "svc1")},
	}
	noHostname := &resource.GatewayRoute{
		Meta:      docMeta("no-hostname", time.Minute),
		Parents:   []resource.ParentRef{{Name: "gw"}},
		Hostnames: []string{"app.example.org"},
		Rules:     []resource.Route{testRoute("/c", "svc1")},
	}
	parentless := &resource.GatewayRoute{
		Meta:  docMeta("no-parents", time.Minute),
		Rules: []resource.Route{testRoute("/d", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"},
		gateway, missingGateway, missingSection, noHostname, parentless)

	require.Empty(t, result.Snapshot.Listeners)

	for name, reason := range map[string]string{
		"no-gateway":  status.ReasonNoMatchingParent,
		"no-section":  status.ReasonNoMatchingParent,
		"no-hostname": status.ReasonNoMatchingHostname,
		"no-parents":  status.ReasonNoMatchingParent,
	} {
		record := recordFor(t, result, routeKey(name))
		require.Equal(t, status.VerdictInvalid, record.Verdict, "route %s", name)
		require.True(t, hasCondition(record, reason), "route %s wants %s", name, reason)
	}
}

func TestBuildRouteBindsOncePerSlot(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "wild", Port: 9000, Protocol: resource.ListenerProtocolHTTP, Hostname: "*.example.com"},
			{Name: "all", Port: 9000, Protocol: resource.ListenerProtocolHTTP},
		},
	}
	route := &resource.GatewayRoute{
		Meta:      docMeta("app", time.Minute),
		Parents:   []resource.ParentRef{{Name: "gw"}, {Name: "gw"}},
		Hostnames: []string{"app.example.com"},
		Rules:     []resource.Route{testRoute("/app", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"}, gateway, route)

	// Two listeners admit the hostname and the parent is listed twice,
	// but the route lands exactly once.
	require.Len(t, result.Snapshot.Listeners, 1)
	vhosts := result.Snapshot.Listeners[0].VirtualHosts
	require.Len(t, vhosts, 1)
	require.Equal(t, []string{"/app"}, routePaths(vhosts[0]))
}

func TestBuildGatewayListenerValidation(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "web", Port: 0, Protocol: resource.ListenerProtocolHTTP},
			{Name: "tls-less", Port: 9443, Protocol: resource.ListenerProtocolHTTPS},
			{Name: "odd", Port: 9001, Protocol: "tcp"},
			{Name: "plain-tls", Port: 9002, Protocol: resource.ListenerProtocolHTTP, TLS: &resource.TLS{SecretName: "cert"}},
			{Name: "web", Port: 9003, Protocol: resource.ListenerProtocolHTTP},
			{Name: "ok", Port: 9004, Protocol: resource.ListenerProtocolHTTP},
		},
	}
	route := &resource.GatewayRoute{
		Meta:      docMeta("app", time.Minute),
		Parents:   []resource.ParentRef{{Name: "gw", SectionName: "ok"}},
		Hostnames: []string{"app.example.com"},
		Rules:     []resource.Route{testRoute("/app", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"}, gateway, route, testSecret("cert"))

	// Only the clean listener serves.
	require.Len(t, result.Snapshot.Listeners, 1)
	require.Equal(t, 9004, result.Snapshot.Listeners[0].Port)

	record := recordFor(t, result, gatewayKey("gw"))
	require.Equal(t, status.VerdictInvalid, record.Verdict)
	require.True(t, hasCondition(record, status.ReasonListenerError))
	require.True(t, hasCondition(record, status.ReasonTLSError))
	require.Len(t, record.Conditions, 5)
}

func TestBuildHTTPSGatewayListener(t *testing.T) {
	t.Parallel()

	gateway := &resource.Gateway{
		Meta: docMeta("gw", 0),
		Listeners: []resource.Listener{
			{Name: "secure", Port: 443, Protocol: resource.ListenerProtocolHTTPS, Hostname: "app.example.com", TLS: &resource.TLS{SecretName: "cert"}},
		},
	}
	route := &resource.GatewayRoute{
		Meta:    docMeta("app", time.Minute),
		Parents: []resource.ParentRef{{Name: "gw"}},
		Rules:   []resource.Route{testRoute("/app", "svc1")},
	}

	result := buildTestGraph(t, SortModeSpecificity, []string{"svc1"}, gateway, route, testSecret("cert"))

	require.Len(t, result.Snapshot.Listeners, 1)
	listener := result.Snapshot.Listeners[0]
	require.Equal(t, "https-8443", listener.Name)
	require.Equal(t, 8443, listener.Port)
	require.Equal(t, 443, listener.ExternalPort)
	require.NotNil(t, listener.VirtualHosts[0].TLS)
	require.Equal(t, "cert", listener.VirtualHosts[0].TLS.SecretRef.Name)
}

func TestIntersectHostnames(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"api.example.com"}, intersectHostnames(nil, "api.example.com"))
	require.Equal(t, []string{""}, intersectHostnames(nil, ""))
	require.Equal(t, []string{"a.com", "b.com"}, intersectHostnames([]string{"a.com", "b.com"}, ""))
	require.Equal(t, []string{"app.example.com"},
		intersectHostnames([]string{"app.example.com", "app.example.org"}, "*.example.com"))
	require.Equal(t, []string{"app.example.com"},
		intersectHostnames([]string{"*.example.com"}, "app.example.com"))
	require.Empty(t, intersectHostnames([]string{"deep.app.example.com"}, "*.example.com"))
}
