package graph

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/projectcontour/contour-sub001/internal/core"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

// validateHostname checks the syntax of a virtual host or listener
// hostname. A leading "*" label makes the hostname a wildcard; wildcards
// are only valid in the first position and never stand alone.
func validateHostname(hostname string) error {
	if hostname == "" {
		return errors.New("hostname is empty")
	}
	if hostname != strings.ToLower(hostname) {
		return errors.New("hostname must be lowercase")
	}
	labels := strings.Split(hostname, ".")
	if len(labels) == 1 && labels[0] == "*" {
		return errors.New("hostname cannot be a bare wildcard")
	}
	for i, label := range labels {
		if label == "*" {
			if i != 0 {
				return errors.New("wildcard label is only valid in the first position")
			}
			continue
		}
		if !validHostnameLabel(label) {
			return fmt.Errorf("invalid hostname label %q", label)
		}
	}
	return nil
}

func validHostnameLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// hostnamesOverlap reports whether two hostnames can serve the same
// request. A wildcard covers exactly one leading label, so the label
// counts must agree and the remaining labels must be equal. Hostnames
// are validated lowercase before this is called.
func hostnamesOverlap(a, b string) bool {
	if a == b {
		return true
	}
	aLabels := strings.Split(a, ".")
	bLabels := strings.Split(b, ".")
	if aLabels[0] != "*" && bLabels[0] != "*" {
		return false
	}
	if len(aLabels) != len(bLabels) {
		return false
	}
	return slices.Equal(aLabels[1:], bLabels[1:])
}

// moreSpecificHostname picks the precise hostname of an overlapping
// pair, preferring the non-wildcard form.
func moreSpecificHostname(a, b string) string {
	if strings.HasPrefix(a, "*.") {
		return b
	}
	return a
}

// resolveTLS resolves a certificate reference against the cached secrets
// and checks the secret's shape. The reference is "name" for a secret in
// namespace, or "namespace/name" for a cross-namespace reference.
func (c *compilation) resolveTLS(namespace string, ref *resource.TLS) (*core.TLSDescriptor, error) {
	if ref.SecretName == "" {
		return nil, errors.New("tls block requires a certificate secret name")
	}
	name := resource.NamespacedName{Namespace: namespace, Name: ref.SecretName}
	if before, after, found := strings.Cut(ref.SecretName, "/"); found {
		if before == "" || after == "" || strings.Contains(after, "/") {
			return nil, fmt.Errorf("malformed certificate secret reference %q", ref.SecretName)
		}
		name = resource.NamespacedName{Namespace: before, Name: after}
	}
	secret, found := c.snapshot.Secret(name)
	if !found {
		return nil, fmt.Errorf("certificate secret %q does not exist", name.String())
	}
	if secret.Type != resource.SecretTypeTLS {
		return nil, fmt.Errorf("secret %q is not a TLS secret", name.String())
	}
	if len(secret.Cert) == 0 || len(secret.PrivateKey) == 0 {
		return nil, fmt.Errorf("secret %q is missing certificate material", name.String())
	}
	return &core.TLSDescriptor{
		SecretRef: core.Ref{Kind: string(resource.KindSecret), Namespace: name.Namespace, Name: name.Name},
	}, nil
}

// tlsEqual reports whether two listeners terminate TLS identically.
func tlsEqual(a, b *core.TLSDescriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SecretRef == b.SecretRef
}
