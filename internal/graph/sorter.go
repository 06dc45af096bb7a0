package graph

import (
	"fmt"
	"sort"

	"github.com/projectcontour/contour-sub001/internal/core"
)

// SortMode selects how the routes of a virtual host are ordered.
type SortMode int

const (
	// SortModeSpecificity orders routes most specific first; see
	// CompareMatches.
	SortModeSpecificity SortMode = iota
	// SortModeDeclaration preserves declaration order: depth first,
	// parent document before included children, array order within a
	// document.
	SortModeDeclaration
)

func (m SortMode) String() string {
	switch m {
	case SortModeSpecificity:
		return "specificity"
	case SortModeDeclaration:
		return "declaration"
	default:
		return "unknown"
	}
}

// ParseSortMode parses a sort mode from configuration.
func ParseSortMode(mode string) (SortMode, error) {
	switch mode {
	case "", "specificity":
		return SortModeSpecificity, nil
	case "declaration":
		return SortModeDeclaration, nil
	default:
		return SortModeSpecificity, fmt.Errorf("unknown route sort mode %q", mode)
	}
}

// CompareMatches reports whether a sorts before b under the specificity
// heuristic: exact path matches before regex before prefix, longer paths
// before shorter within a type, more header clauses first, and finally
// the rendered condition string for a deterministic total order.
func CompareMatches(a, b core.RouteMatch) bool {
	if a.Path.Type != b.Path.Type {
		return a.Path.Type < b.Path.Type
	}
	if len(a.Path.Value) != len(b.Path.Value) {
		return len(a.Path.Value) > len(b.Path.Value)
	}
	if len(a.Headers) != len(b.Headers) {
		return len(a.Headers) > len(b.Headers)
	}
	return a.String() < b.String()
}

// SortRoutes orders routes in place according to mode. Routes arrive in
// declaration order, so declaration mode leaves them untouched; the
// specificity sort is stable for determinism on equal matches.
func SortRoutes(mode SortMode, routes []core.Route) {
	if mode == SortModeDeclaration {
		return
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return CompareMatches(routes[i].Match, routes[j].Match)
	})
}
