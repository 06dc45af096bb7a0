package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/projectcontour/contour-sub001/internal/core"
)

//go:generate mockgen -source ./resolver.go -destination ./mocks/resolver.go -package mocks

var (
	// ErrNotFound means no service document matches the reference.
	ErrNotFound = errors.New("service not found")
	// ErrPortNotFound means the service exists but exposes no such port.
	ErrPortNotFound = errors.New("service port not found")
	// ErrProtocolMismatch means the port exists but its protocol cannot
	// carry HTTP traffic.
	ErrProtocolMismatch = errors.New("service port protocol is not routable")
)

// Resolver answers whether a service reference names a live, routable
// service port. Failures are reported to the caller, never retried here.
type Resolver interface {
	Resolve(ctx context.Context, namespace, name string, port int) (core.ResolvedService, error)
}

// ResolutionError wraps a resolver failure with the reference that
// produced it.
type ResolutionError struct {
	Namespace string
	Name      string
	Port      int
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("service %q port %d: %s", e.Namespace+"/"+e.Name, e.Port, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
