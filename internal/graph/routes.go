package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/status"
)

// buildRoute lowers one declared route block into a graph route. The
// returned flag is false when the route is invalid and must not be
// served; the error is recorded against owner. Failures on secondary
// policy fields degrade to warnings and drop the field instead.
func (c *compilation) buildRoute(ctx context.Context, owner resource.Key, namespace string, index int, route resource.Route, base matchSet) (core.Route, bool) {
	subject := fmt.Sprintf("route %d", index)

	match, err := mergeRoute(base, route.Conditions)
	if err != nil {
		c.statuses.AddError(owner, status.ReasonInvalidConditions, subject, err.Error())
		return core.Route{}, false
	}

	if len(route.Services) == 0 {
		c.statuses.AddError(owner, status.ReasonRouteError, subject, "route must name at least one service")
		return core.Route{}, false
	}

	clusters := make([]core.Cluster, 0, len(route.Services))
	var failures []string
	for _, ref := range route.Services {
		if ref.Name == "" || ref.Port < 1 || ref.Port > 65535 {
			c.statuses.AddError(owner, status.ReasonServiceError, subject,
				fmt.Sprintf("malformed service reference %q port %d", ref.Name, ref.Port))
			return core.Route{}, false
		}
		weight := ref.Weight
		if weight < 0 {
			c.statuses.AddWarning(owner, status.ReasonRouteError, subject,
				fmt.Sprintf("negative weight on service %q defaults to 1", ref.Name))
			weight = 0
		}
		if weight == 0 {
			weight = 1
		}
		resolved, err := c.resolver.Resolve(ctx, namespace, ref.Name, ref.Port)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		clusters = append(clusters, core.Cluster{Service: resolved, Weight: weight})
	}
	if len(clusters) == 0 {
		c.statuses.AddError(owner, status.ReasonServiceError, subject,
			fmt.Sprintf("no referenced service resolved: %s", strings.Join(failures, "; ")))
		return core.Route{}, false
	}
	for _, failure := range failures {
		c.statuses.AddWarning(owner, status.ReasonServiceError, subject,
			fmt.Sprintf("%s; traffic shifts to the remaining services", failure))
	}

	built := core.Route{
		Match:    match,
		Clusters: clusters,
		Source:   core.Ref{Kind: string(owner.Kind), Namespace: owner.Namespace, Name: owner.Name},
	}
	c.applyPolicies(owner, subject, route, &built)
	return built, true
}

func (c *compilation) applyPolicies(owner resource.Key, subject string, route resource.Route, built *core.Route) {
	if route.PathRewrite != nil {
		replacement := route.PathRewrite.ReplacePrefix
		switch {
		case built.Match.Path.Type != core.PathMatchPrefix:
			c.statuses.AddWarning(owner, status.ReasonPolicyError, subject,
				"path rewrite requires a prefix condition; policy dropped")
		case !strings.HasPrefix(replacement, "/"):
			c.statuses.AddWarning(owner, status.ReasonPolicyError, subject,
				fmt.Sprintf("path rewrite replacement %q must begin with /; policy dropped", replacement))
		default:
			built.PathRewrite = &core.PathRewritePolicy{ReplacePrefix: replacement}
		}
	}

	if route.RequestHeaders != nil {
		policy := &core.HeadersPolicy{Remove: append([]string{}, route.RequestHeaders.Remove...)}
		if len(route.RequestHeaders.Set) > 0 {
			policy.Set = make(map[string]string, len(route.RequestHeaders.Set))
			for name, value := range route.RequestHeaders.Set {
				policy.Set[name] = value
			}
		}
		built.RequestHeaders = policy
	}

	if route.Retry != nil {
		policy := &core.RetryPolicy{Count: route.Retry.Count}
		if policy.Count < 0 {
			c.statuses.AddWarning(owner, status.ReasonPolicyError, subject,
				"negative retry count; field dropped")
			policy.Count = 0
		}
		policy.PerTryTimeout = c.parseTimeout(owner, subject, "retry per-try timeout", route.Retry.PerTryTimeout)
		if policy.Count > 0 || policy.PerTryTimeout > 0 {
			built.Retry = policy
		}
	}

	if route.Timeout != nil {
		policy := &core.TimeoutPolicy{
			Response: c.parseTimeout(owner, subject, "response timeout", route.Timeout.Response),
			Idle:     c.parseTimeout(owner, subject, "idle timeout", route.Timeout.Idle),
		}
		if policy.Response > 0 || policy.Idle > 0 {
			built.Timeout = policy
		}
	}
}

// parseTimeout parses a policy duration, degrading a malformed value to
// a warning and a dropped field.
func (c *compilation) parseTimeout(owner resource.Key, subject, field, value string) time.Duration {
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		c.statuses.AddWarning(owner, status.ReasonPolicyError, subject,
			fmt.Sprintf("invalid %s %q; field dropped", field, value))
		return 0
	}
	return parsed
}
