package core

import (
	"time"

	"github.com/google/uuid"
)

// Protocol is the traffic class a listener terminates.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// TLSDescriptor carries what a virtual host needs to terminate TLS. Two
// descriptors are equal when they reference the same secret.
type TLSDescriptor struct {
	SecretRef Ref
}

// VirtualHost groups the routes served for one hostname on a listener.
// An empty hostname is the catch-all host.
type VirtualHost struct {
	Hostname string
	TLS      *TLSDescriptor
	Routes   []Route
}

// CatchAll reports whether the host serves requests matching no other
// hostname on its listener.
func (v *VirtualHost) CatchAll() bool { return v.Hostname == "" }

// Listener is one port the data plane binds. Port is the internal port
// after privileged-port remapping; ExternalPort is what clients connect
// to.
type Listener struct {
	Name         string
	Protocol     Protocol
	Port         int
	ExternalPort int
	VirtualHosts []VirtualHost
}

// Snapshot is one immutable build of the routing graph. Snapshots are
// replaced wholesale, never mutated, so readers may hold one for as long
// as they like.
type Snapshot struct {
	// ID identifies the build that produced the snapshot.
	ID        string
	BuiltAt   time.Time
	Listeners []Listener
}

func NewSnapshot(listeners []Listener) *Snapshot {
	return &Snapshot{
		ID:        uuid.New().String(),
		BuiltAt:   time.Now().UTC(),
		Listeners: listeners,
	}
}

// Stats counts the graph elements for logging and metrics.
func (s *Snapshot) Stats() (listeners, virtualHosts, routes int) {
	for _, listener := range s.Listeners {
		listeners++
		for _, host := range listener.VirtualHosts {
			virtualHosts++
			routes += len(host.Routes)
		}
	}
	return listeners, virtualHosts, routes
}
