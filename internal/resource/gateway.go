package resource

// Protocol values accepted on a Gateway listener.
const (
	ListenerProtocolHTTP  = "http"
	ListenerProtocolHTTPS = "https"
)

// Gateway is a flat configuration document requesting listeners on
// arbitrary ports, populated by GatewayRoute documents that bind to it.
type Gateway struct {
	Meta

	Listeners []Listener
}

func (g *Gateway) Kind() Kind     { return KindGateway }
func (g *Gateway) Key() Key       { return KeyFor(KindGateway, g.NamespacedName()) }
func (g *Gateway) Metadata() Meta { return g.Meta }

// Listener is one requested (protocol, port, hostname) endpoint.
type Listener struct {
	// Name distinguishes listeners within the Gateway and is the target
	// of a ParentRef section name. Empty is allowed when no route needs
	// to single the listener out.
	Name string
	// Hostname constrains the hosts served. Empty is the catch-all.
	Hostname string
	Port     int
	// Protocol is "http" or "https". The https protocol requires TLS.
	Protocol string
	TLS      *TLS
}
