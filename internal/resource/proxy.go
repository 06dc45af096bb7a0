package resource

// Proxy is a hierarchical routing document. A Proxy that declares a
// VirtualHost is a root; one without is a delegate that only joins the
// graph when another Proxy includes it.
type Proxy struct {
	Meta

	VirtualHost *VirtualHost
	Includes    []Include
	Routes      []Route
}

func (p *Proxy) Kind() Kind     { return KindProxy }
func (p *Proxy) Key() Key       { return KeyFor(KindProxy, p.NamespacedName()) }
func (p *Proxy) Metadata() Meta { return p.Meta }

// Root reports whether the document declares a virtual host of its own.
func (p *Proxy) Root() bool { return p.VirtualHost != nil }

// VirtualHost names the externally visible host a root document serves.
type VirtualHost struct {
	Hostname string
	// Port is the external port requested for the host. Zero selects the
	// configured default for the protocol class.
	Port int
	TLS  *TLS
}

// TLS references the server certificate for a virtual host or listener.
type TLS struct {
	// SecretName is either "name", resolved in the owning document's
	// namespace, or an explicit "namespace/name".
	SecretName string
}

// Include delegates a slice of the request space to another Proxy.
type Include struct {
	Name string
	// Namespace of the included document. Empty means the including
	// document's namespace.
	Namespace string
	// Conditions narrow the requests delegated across this edge. Only
	// prefix and header conditions may appear on an include.
	Conditions []MatchCondition
}

// Route maps matched requests onto a weighted set of services. The same
// shape serves as the rule entry of flat route documents.
type Route struct {
	Conditions []MatchCondition
	Services   []ServiceRef

	PathRewrite    *PathRewrite
	RequestHeaders *HeadersPolicy
	Retry          *RetryPolicy
	Timeout        *TimeoutPolicy
}

// ServiceRef names one upstream service of a route, resolved in the
// owning document's namespace.
type ServiceRef struct {
	Name string
	Port int
	// Weight splits traffic between the services on a route. Zero means 1.
	Weight int64
}

// MatchCondition is a tagged union: at most one of the path fields may be
// set, or Header for a header clause.
type MatchCondition struct {
	Prefix string
	Exact  string
	Regex  string
	Header *HeaderMatch
}

// PathMatchCount reports how many path fields are set. Well-formed
// conditions set at most one.
func (c MatchCondition) PathMatchCount() int {
	count := 0
	if c.Prefix != "" {
		count++
	}
	if c.Exact != "" {
		count++
	}
	if c.Regex != "" {
		count++
	}
	return count
}

// HeaderMatch is one header clause. Exactly one of the match fields must
// be set.
type HeaderMatch struct {
	Name        string
	Present     bool
	Exact       string
	NotExact    string
	Contains    string
	NotContains string
}

// Matchers reports how many match fields are set.
func (h HeaderMatch) Matchers() int {
	count := 0
	if h.Present {
		count++
	}
	for _, value := range []string{h.Exact, h.NotExact, h.Contains, h.NotContains} {
		if value != "" {
			count++
		}
	}
	return count
}

// PathRewrite rewrites the matched prefix of the request path before the
// request is forwarded upstream.
type PathRewrite struct {
	ReplacePrefix string
}

// HeadersPolicy manipulates request headers before forwarding.
type HeadersPolicy struct {
	Set    map[string]string
	Remove []string
}

// RetryPolicy retries failed upstream requests.
type RetryPolicy struct {
	Count int64
	// PerTryTimeout bounds each attempt, as a duration string such as
	// "250ms".
	PerTryTimeout string
}

// TimeoutPolicy bounds upstream request handling. Values are duration
// strings; malformed values are dropped with a warning, leaving the
// route otherwise functional.
type TimeoutPolicy struct {
	Response string
	Idle     string
}
