package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/projectcontour/contour-sub001/internal/config"
	"github.com/projectcontour/contour-sub001/internal/core"
	rgTesting "github.com/projectcontour/contour-sub001/internal/testing"
)

type consumerFunc func(ctx context.Context, snapshot *core.Snapshot) error

func (f consumerFunc) OnSnapshot(ctx context.Context, snapshot *core.Snapshot) error {
	return f(ctx, snapshot)
}

func TestServerStoreInitializationError(t *testing.T) {
	t.Parallel()

	var buffer rgTesting.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Output: &buffer,
	})

	cfg := config.Default()
	cfg.StoreDirectory = filepath.Join(t.TempDir(), "missing")

	require.Equal(t, 1, RunServer(ServerConfig{
		Context: context.Background(),
		Logger:  logger,
		Config:  cfg,
	}))
	require.Contains(t, buffer.String(), "error opening the document store")
}

func TestServerRunsAndShutsDown(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(directory, "routing.yaml"), []byte(`kind: Proxy
metadata:
  name: www
spec:
  virtualhost:
    hostname: www.example.com
    port: 8080
  routes:
    - conditions:
        - prefix: /
      services:
        - name: web
          port: 8080
---
kind: Service
metadata:
  name: web
spec:
  ports:
    - port: 8080
      protocol: http
`), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buffer rgTesting.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Output: &buffer,
	})

	cfg := config.Default()
	cfg.StoreDirectory = directory
	cfg.RebuildHoldoff = 20 * time.Millisecond

	snapshots := make(chan *core.Snapshot, 8)
	result := make(chan int, 1)
	go func() {
		result <- RunServer(ServerConfig{
			Context: ctx,
			Logger:  logger,
			Config:  cfg,
			Consumer: consumerFunc(func(_ context.Context, snapshot *core.Snapshot) error {
				snapshots <- snapshot
				return nil
			}),
		})
	}()

	// the first published snapshot may predate the store sync
	deadline := time.After(10 * time.Second)
waiting:
	for {
		select {
		case snapshot := <-snapshots:
			listeners, hosts, routes := snapshot.Stats()
			if listeners == 1 && hosts == 1 && routes == 1 {
				break waiting
			}
		case <-deadline:
			t.Fatal("timeout waiting for the routing snapshot")
		}
	}

	cancel()
	select {
	case code := <-result:
		require.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for server shutdown")
	}
	require.Contains(t, buffer.String(), "shutting down")
}
