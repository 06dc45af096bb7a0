package resource

// GatewayRoute is a flat routing document bound directly to one or more
// Gateway listeners rather than delegated to through a Proxy tree.
type GatewayRoute struct {
	Meta

	Parents []ParentRef
	// Hostnames narrows which listener hostnames the route serves. Empty
	// means every hostname the bound listener exposes.
	Hostnames []string
	Rules     []Route
}

func (r *GatewayRoute) Kind() Kind     { return KindGatewayRoute }
func (r *GatewayRoute) Key() Key       { return KeyFor(KindGatewayRoute, r.NamespacedName()) }
func (r *GatewayRoute) Metadata() Meta { return r.Meta }

// ParentRef names a Gateway the route wants to attach to.
type ParentRef struct {
	Name string
	// Namespace of the Gateway. Empty means the route's namespace.
	Namespace string
	// SectionName binds the route to a single named listener. Empty binds
	// to every listener of the Gateway.
	SectionName string
}
