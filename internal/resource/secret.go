package resource

// SecretTypeTLS marks secrets holding a server certificate keypair.
const SecretTypeTLS = "tls"

// Secret holds opaque certificate material referenced by virtual hosts
// and listeners. The compiler checks shape only; the material itself is
// handled downstream.
type Secret struct {
	Meta

	Type       string
	Cert       []byte
	PrivateKey []byte
}

func (s *Secret) Kind() Kind     { return KindSecret }
func (s *Secret) Key() Key       { return KeyFor(KindSecret, s.NamespacedName()) }
func (s *Secret) Metadata() Meta { return s.Meta }
