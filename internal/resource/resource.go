package resource

import (
	"fmt"
	"time"
)

// Kind discriminates the document types the compiler consumes.
type Kind string

const (
	KindProxy        Kind = "Proxy"
	KindGatewayRoute Kind = "GatewayRoute"
	KindGateway      Kind = "Gateway"
	KindService      Kind = "Service"
	KindSecret       Kind = "Secret"
)

// Kinds returns every document kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindProxy, KindGatewayRoute, KindGateway, KindService, KindSecret}
}

// NamespacedName identifies a document within a single kind.
type NamespacedName struct {
	Namespace string
	Name      string
}

func (n NamespacedName) String() string {
	return n.Namespace + "/" + n.Name
}

// Key is the full identity of a document across kinds.
type Key struct {
	Kind      Kind
	Namespace string
	Name      string
}

func KeyFor(kind Kind, name NamespacedName) Key {
	return Key{Kind: kind, Namespace: name.Namespace, Name: name.Name}
}

func (k Key) NamespacedName() NamespacedName {
	return NamespacedName{Namespace: k.Namespace, Name: k.Name}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Namespace, k.Name)
}

// Meta carries the identity and bookkeeping fields shared by every
// document kind.
type Meta struct {
	Namespace string
	Name      string
	// Revision increases monotonically with each accepted change to the
	// document. The cache discards writes carrying a stale revision.
	Revision int64
	// CreatedAt orders documents for conflict precedence: the oldest
	// document wins a cross-document conflict.
	CreatedAt time.Time
}

func (m Meta) NamespacedName() NamespacedName {
	return NamespacedName{Namespace: m.Namespace, Name: m.Name}
}

// Precedes reports whether m wins a conflict against other: older
// CreatedAt first, namespace/name as the tiebreak.
func (m Meta) Precedes(other Meta) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	if m.Namespace != other.Namespace {
		return m.Namespace < other.Namespace
	}
	return m.Name < other.Name
}

// Object is implemented by every document the cache stores.
type Object interface {
	Kind() Kind
	Key() Key
	Metadata() Meta
}
