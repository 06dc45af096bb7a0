package graph

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

// matchSet is the set of conditions accumulated along a delegation path:
// the rendered path prefix plus the header clauses collected so far.
type matchSet struct {
	prefix  string
	headers []core.HeaderMatch
}

func (s matchSet) clone() matchSet {
	return matchSet{
		prefix:  s.prefix,
		headers: append([]core.HeaderMatch{}, s.headers...),
	}
}

// validateClause checks that a single condition entry carries exactly one
// clause: one path match or one header match, never both, never neither.
func validateClause(condition resource.MatchCondition) error {
	paths := condition.PathMatchCount()
	if paths > 1 {
		return errors.New("condition entry sets more than one path match type")
	}
	if paths == 1 && condition.Header != nil {
		return errors.New("condition entry sets both a path match and a header match")
	}
	if paths == 0 && condition.Header == nil {
		return errors.New("empty condition entry")
	}
	return nil
}

// mergeInclude folds an include's conditions onto the set accumulated so
// far. Includes may narrow by one path prefix and any number of header
// clauses; exact and regex path matches cannot be delegated.
func mergeInclude(base matchSet, conditions []resource.MatchCondition) (matchSet, error) {
	merged := base.clone()
	prefixes := 0
	for _, condition := range conditions {
		if err := validateClause(condition); err != nil {
			return matchSet{}, err
		}
		if condition.Exact != "" || condition.Regex != "" {
			return matchSet{}, errors.New("include conditions support prefix and header clauses only")
		}
		if condition.Prefix != "" {
			prefixes++
			if prefixes > 1 {
				return matchSet{}, errors.New("more than one path clause in a single condition block")
			}
			if !strings.HasPrefix(condition.Prefix, "/") {
				return matchSet{}, fmt.Errorf("prefix %q must begin with /", condition.Prefix)
			}
			merged.prefix = joinPrefix(merged.prefix, condition.Prefix)
		}
		if condition.Header != nil {
			header, err := convertHeaderMatch(*condition.Header)
			if err != nil {
				return matchSet{}, err
			}
			merged.headers, err = appendHeader(merged.headers, header)
			if err != nil {
				return matchSet{}, err
			}
		}
	}
	return merged, nil
}

// mergeRoute produces the final match for one route block laid over the
// conditions delegated to its document. A route with no path clause
// inherits the delegated prefix unchanged.
func mergeRoute(base matchSet, conditions []resource.MatchCondition) (core.RouteMatch, error) {
	headers := append([]core.HeaderMatch{}, base.headers...)
	path := core.PathMatch{Type: core.PathMatchPrefix, Value: base.prefix}
	pathClauses := 0
	for _, condition := range conditions {
		if err := validateClause(condition); err != nil {
			return core.RouteMatch{}, err
		}
		switch {
		case condition.Prefix != "":
			if !strings.HasPrefix(condition.Prefix, "/") {
				return core.RouteMatch{}, fmt.Errorf("prefix %q must begin with /", condition.Prefix)
			}
			path = core.PathMatch{Type: core.PathMatchPrefix, Value: joinPrefix(base.prefix, condition.Prefix)}
			pathClauses++
		case condition.Exact != "":
			if !strings.HasPrefix(condition.Exact, "/") {
				return core.RouteMatch{}, fmt.Errorf("exact path %q must begin with /", condition.Exact)
			}
			path = core.PathMatch{Type: core.PathMatchExact, Value: joinPrefix(base.prefix, condition.Exact)}
			pathClauses++
		case condition.Regex != "":
			if _, err := regexp.Compile(condition.Regex); err != nil {
				return core.RouteMatch{}, fmt.Errorf("invalid path regex %q: %v", condition.Regex, err)
			}
			// The delegated prefix is a literal, so it is quoted into
			// the final expression.
			value := condition.Regex
			if base.prefix != "" {
				value = regexp.QuoteMeta(base.prefix) + condition.Regex
			}
			path = core.PathMatch{Type: core.PathMatchRegex, Value: value}
			pathClauses++
		default:
			header, err := convertHeaderMatch(*condition.Header)
			if err != nil {
				return core.RouteMatch{}, err
			}
			headers, err = appendHeader(headers, header)
			if err != nil {
				return core.RouteMatch{}, err
			}
		}
	}
	if pathClauses > 1 {
		return core.RouteMatch{}, errors.New("more than one path clause in a single condition block")
	}
	if path.Value == "" {
		path.Value = "/"
	}
	sortHeaders(headers)
	return core.RouteMatch{Path: path, Headers: headers}, nil
}

// joinPrefix appends child to parent verbatim, collapsing the seam to a
// single slash. No other normalization is applied.
func joinPrefix(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	if strings.HasSuffix(parent, "/") && strings.HasPrefix(child, "/") {
		return parent + child[1:]
	}
	return parent + child
}

// convertHeaderMatch lowers a header clause into its graph form. Header
// names are case-insensitive and stored lowercased.
func convertHeaderMatch(header resource.HeaderMatch) (core.HeaderMatch, error) {
	if header.Name == "" {
		return core.HeaderMatch{}, errors.New("header clause requires a name")
	}
	if header.Matchers() != 1 {
		return core.HeaderMatch{}, fmt.Errorf("header clause %q must set exactly one match type", header.Name)
	}
	name := strings.ToLower(header.Name)
	switch {
	case header.Present:
		return core.HeaderMatch{Name: name, Type: core.HeaderMatchPresent}, nil
	case header.Exact != "":
		return core.HeaderMatch{Name: name, Type: core.HeaderMatchExact, Value: header.Exact}, nil
	case header.NotExact != "":
		return core.HeaderMatch{Name: name, Type: core.HeaderMatchExact, Value: header.NotExact, Invert: true}, nil
	case header.Contains != "":
		return core.HeaderMatch{Name: name, Type: core.HeaderMatchContains, Value: header.Contains}, nil
	default:
		return core.HeaderMatch{Name: name, Type: core.HeaderMatchContains, Value: header.NotContains, Invert: true}, nil
	}
}

// appendHeader unions a clause into the set. Exact duplicates collapse;
// clauses that can never hold together are rejected.
func appendHeader(headers []core.HeaderMatch, header core.HeaderMatch) ([]core.HeaderMatch, error) {
	for _, existing := range headers {
		if existing == header {
			return headers, nil
		}
		if existing.Name != header.Name || existing.Type != core.HeaderMatchExact || header.Type != core.HeaderMatchExact {
			continue
		}
		if !existing.Invert && !header.Invert && existing.Value != header.Value {
			return nil, fmt.Errorf("contradictory exact matches on header %q: %q vs %q", header.Name, existing.Value, header.Value)
		}
		if existing.Invert != header.Invert && existing.Value == header.Value {
			return nil, fmt.Errorf("header %q cannot both equal and not equal %q", header.Name, header.Value)
		}
	}
	return append(headers, header), nil
}

// sortHeaders orders header clauses canonically so that equivalent
// condition sets render and compare identically.
func sortHeaders(headers []core.HeaderMatch) {
	sort.SliceStable(headers, func(i, j int) bool {
		a, b := headers[i], headers[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return !a.Invert && b.Invert
	})
}
