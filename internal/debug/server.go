// Package debug serves introspection endpoints for the running control
// plane: the current snapshot as Graphviz DOT or JSON, plus pprof.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/projectcontour/contour-sub001/internal/core"
)

// SnapshotFunc returns the most recently published snapshot, or nil when
// no build has completed yet.
type SnapshotFunc func() *core.Snapshot

// NewHandler returns the debug mux so tests can drive it without a
// listener.
func NewHandler(snapshot SnapshotFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/dag", func(w http.ResponseWriter, _ *http.Request) {
		s := snapshot()
		if s == nil {
			http.Error(w, "no snapshot built yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		writeDOT(w, s)
	})
	mux.HandleFunc("/debug/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		s := snapshot()
		if s == nil {
			http.Error(w, "no snapshot built yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		// headers are sent by now, best effort from here
		_ = encoder.Encode(s)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// RunServer serves the debug endpoints until ctx is canceled.
func RunServer(ctx context.Context, logger hclog.Logger, address string, snapshot SnapshotFunc) error {
	server := &http.Server{
		Addr:    address,
		Handler: NewHandler(snapshot),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			// graceful shutdown failed, exit
			logger.Error("error shutting down debug server", "error", err)
		}
	}()
	defer wg.Wait()

	if err := server.ListenAndServe(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
