package core

import (
	"fmt"
	"strings"
	"time"
)

// PathMatchType ranks path condition kinds for route ordering. Lower
// values are more specific.
type PathMatchType int

const (
	PathMatchExact PathMatchType = iota
	PathMatchRegex
	PathMatchPrefix
)

func (t PathMatchType) String() string {
	switch t {
	case PathMatchExact:
		return "exact"
	case PathMatchRegex:
		return "regex"
	case PathMatchPrefix:
		return "prefix"
	default:
		return "unknown"
	}
}

// HeaderMatchType says how a header clause compares its value.
type HeaderMatchType int

const (
	HeaderMatchExact HeaderMatchType = iota
	HeaderMatchContains
	HeaderMatchPresent
)

func (t HeaderMatchType) String() string {
	switch t {
	case HeaderMatchExact:
		return "exact"
	case HeaderMatchContains:
		return "contains"
	case HeaderMatchPresent:
		return "present"
	default:
		return "unknown"
	}
}

// HeaderMatch is one merged header clause. Names are stored lowercased.
// Invert negates the exact and contains comparisons.
type HeaderMatch struct {
	Name   string
	Type   HeaderMatchType
	Value  string
	Invert bool
}

func (h HeaderMatch) String() string {
	if h.Type == HeaderMatchPresent {
		return fmt.Sprintf("%s:present", h.Name)
	}
	if h.Invert {
		return fmt.Sprintf("%s:!%s:%s", h.Name, h.Type, h.Value)
	}
	return fmt.Sprintf("%s:%s:%s", h.Name, h.Type, h.Value)
}

// PathMatch is the single merged path condition of a route.
type PathMatch struct {
	Type  PathMatchType
	Value string
}

// RouteMatch is the complete merged condition set selecting requests for
// one route. Headers are held in canonical order so equal matches render
// equal strings.
type RouteMatch struct {
	Path    PathMatch
	Headers []HeaderMatch
}

func (m RouteMatch) String() string {
	parts := make([]string, 0, len(m.Headers)+1)
	parts = append(parts, fmt.Sprintf("%s:%s", m.Path.Type, m.Path.Value))
	for _, header := range m.Headers {
		parts = append(parts, header.String())
	}
	return strings.Join(parts, " ")
}

// Ref points at the source document a graph element came from.
type Ref struct {
	Kind      string
	Namespace string
	Name      string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// ResolvedService is an upstream endpoint accepted by the resolver.
type ResolvedService struct {
	Namespace string
	Name      string
	Port      int
	Protocol  string
}

// Cluster pairs a resolved service with its share of the route's
// traffic.
type Cluster struct {
	Service ResolvedService
	Weight  int64
}

// PathRewritePolicy replaces the matched prefix before forwarding.
type PathRewritePolicy struct {
	ReplacePrefix string
}

// HeadersPolicy manipulates request headers before forwarding.
type HeadersPolicy struct {
	Set    map[string]string
	Remove []string
}

// RetryPolicy retries failed upstream requests.
type RetryPolicy struct {
	Count         int64
	PerTryTimeout time.Duration
}

// TimeoutPolicy bounds upstream request handling. Zero values mean the
// renderer's defaults apply.
type TimeoutPolicy struct {
	Response time.Duration
	Idle     time.Duration
}

// Route is one fully validated entry in a virtual host's route table.
type Route struct {
	Match    RouteMatch
	Clusters []Cluster

	PathRewrite    *PathRewritePolicy
	RequestHeaders *HeadersPolicy
	Retry          *RetryPolicy
	Timeout        *TimeoutPolicy

	// Source is the document whose route block produced this entry.
	Source Ref
}
