package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcontour/contour-sub001/internal/cache"
	"github.com/projectcontour/contour-sub001/internal/resource"
)

func TestValidateHostname(t *testing.T) {
	t.Parallel()

	for _, hostname := range []string{
		"example.com",
		"sub.example.com",
		"*.example.com",
		"a-1.b-2.io",
		"localhost",
	} {
		require.NoError(t, validateHostname(hostname), "hostname %q", hostname)
	}

	for hostname, want := range map[string]string{
		"":               "empty",
		"Example.com":    "lowercase",
		"*":              "bare wildcard",
		"a.*.com":        "first position",
		"a..com":         "invalid hostname label",
		"-a.com":         "invalid hostname label",
		"a-.com":         "invalid hostname label",
		"under_score.io": "invalid hostname label",
		strings.Repeat("a", 64) + ".com": "invalid hostname label",
	} {
		err := validateHostname(hostname)
		require.Error(t, err, "hostname %q", hostname)
		require.ErrorContains(t, err, want, "hostname %q", hostname)
	}
}

func TestHostnamesOverlap(t *testing.T) {
	t.Parallel()

	require.True(t, hostnamesOverlap("a.example.com", "a.example.com"))
	require.True(t, hostnamesOverlap("*.example.com", "a.example.com"))
	require.True(t, hostnamesOverlap("a.example.com", "*.example.com"))
	require.True(t, hostnamesOverlap("*.example.com", "*.example.com"))

	require.False(t, hostnamesOverlap("a.example.com", "b.example.com"))
	require.False(t, hostnamesOverlap("*.example.com", "a.b.example.com"))
	require.False(t, hostnamesOverlap("*.example.com", "example.com"))
	require.False(t, hostnamesOverlap("*.example.com", "a.example.org"))
}

func TestResolveTLS(t *testing.T) {
	t.Parallel()

	secrets := map[resource.NamespacedName]*resource.Secret{
		{Namespace: "default", Name: "cert"}: {
			Meta:       resource.Meta{Namespace: "default", Name: "cert"},
			Type:       resource.SecretTypeTLS,
			Cert:       []byte("cert"),
			PrivateKey: []byte("key"),
		},
		{Namespace: "certs", Name: "shared"}: {
			Meta:       resource.Meta{Namespace: "certs", Name: "shared"},
			Type:       resource.SecretTypeTLS,
			Cert:       []byte("cert"),
			PrivateKey: []byte("key"),
		},
		{Namespace: "default", Name: "opaque"}: {
			Meta: resource.Meta{Namespace: "default", Name: "opaque"},
			Type: "opaque",
		},
		{Namespace: "default", Name: "hollow"}: {
			Meta: resource.Meta{Namespace: "default", Name: "hollow"},
			Type: resource.SecretTypeTLS,
		},
	}
	c := &compilation{snapshot: &cache.Snapshot{Secrets: secrets}}

	descriptor, err := c.resolveTLS("default", &resource.TLS{SecretName: "cert"})
	require.NoError(t, err)
	require.Equal(t, "default", descriptor.SecretRef.Namespace)
	require.Equal(t, "cert", descriptor.SecretRef.Name)

	descriptor, err = c.resolveTLS("default", &resource.TLS{SecretName: "certs/shared"})
	require.NoError(t, err)
	require.Equal(t, "certs", descriptor.SecretRef.Namespace)
	require.Equal(t, "shared", descriptor.SecretRef.Name)

	_, err = c.resolveTLS("default", &resource.TLS{SecretName: ""})
	require.ErrorContains(t, err, "requires a certificate secret name")

	_, err = c.resolveTLS("default", &resource.TLS{SecretName: "ghost"})
	require.ErrorContains(t, err, "does not exist")

	_, err = c.resolveTLS("default", &resource.TLS{SecretName: "opaque"})
	require.ErrorContains(t, err, "not a TLS secret")

	_, err = c.resolveTLS("default", &resource.TLS{SecretName: "hollow"})
	require.ErrorContains(t, err, "missing certificate material")

	_, err = c.resolveTLS("default", &resource.TLS{SecretName: "a/b/c"})
	require.ErrorContains(t, err, "malformed certificate secret reference")
}
