package resource

// Service protocols routable by HTTP listeners. An empty protocol means
// ProtocolHTTP.
const (
	ProtocolHTTP = "http"
	ProtocolH2   = "h2"
	ProtocolH2C  = "h2c"
	ProtocolTCP  = "tcp"
)

// Service describes a resolvable upstream and the ports it exposes.
type Service struct {
	Meta

	Ports []ServicePort
}

func (s *Service) Kind() Kind     { return KindService }
func (s *Service) Key() Key       { return KeyFor(KindService, s.NamespacedName()) }
func (s *Service) Metadata() Meta { return s.Meta }

// ServicePort is one exposed port of a Service.
type ServicePort struct {
	Port     int
	Protocol string
}

// Port returns the service port entry matching port.
func (s *Service) Port(port int) (ServicePort, bool) {
	for _, p := range s.Ports {
		if p.Port == port {
			return p, true
		}
	}
	return ServicePort{}, false
}
