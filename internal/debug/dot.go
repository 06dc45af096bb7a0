package debug

import (
	"fmt"
	"io"

	"github.com/projectcontour/contour-sub001/internal/core"
)

// writeDOT renders the snapshot as a Graphviz digraph: listeners point at
// their virtual hosts, hosts at their routes, routes at the clusters they
// forward to. Node identifiers are quoted so service names survive as-is.
func writeDOT(w io.Writer, snapshot *core.Snapshot) {
	fmt.Fprintf(w, "digraph routing {\n")
	fmt.Fprintf(w, "  rankdir=LR\n")
	fmt.Fprintf(w, "  labelloc=t\n")
	fmt.Fprintf(w, "  label=%q\n", "snapshot "+snapshot.ID)

	clusters := make(map[string]bool)
	for li, listener := range snapshot.Listeners {
		listenerID := fmt.Sprintf("listener_%d", li)
		fmt.Fprintf(w, "  %q [shape=box, label=%q]\n", listenerID,
			fmt.Sprintf("%s\n%s :%d (external :%d)", listener.Name, listener.Protocol, listener.Port, listener.ExternalPort))

		for vi, host := range listener.VirtualHosts {
			hostID := fmt.Sprintf("%s_host_%d", listenerID, vi)
			label := host.Hostname
			if host.CatchAll() {
				label = "*"
			}
			if host.TLS != nil {
				label = fmt.Sprintf("%s\ntls: %s", label, host.TLS.SecretRef)
			}
			fmt.Fprintf(w, "  %q [label=%q]\n", hostID, label)
			fmt.Fprintf(w, "  %q -> %q\n", listenerID, hostID)

			for ri, route := range host.Routes {
				routeID := fmt.Sprintf("%s_route_%d", hostID, ri)
				fmt.Fprintf(w, "  %q [shape=note, label=%q]\n", routeID, route.Match.String())
				fmt.Fprintf(w, "  %q -> %q\n", hostID, routeID)

				for _, cluster := range route.Clusters {
					service := cluster.Service
					clusterID := fmt.Sprintf("%s/%s:%d", service.Namespace, service.Name, service.Port)
					if !clusters[clusterID] {
						clusters[clusterID] = true
						fmt.Fprintf(w, "  %q [shape=ellipse, label=%q]\n", clusterID, clusterID)
					}
					fmt.Fprintf(w, "  %q -> %q [label=%q]\n", routeID, clusterID, fmt.Sprintf("weight %d", cluster.Weight))
				}
			}
		}
	}
	fmt.Fprintf(w, "}\n")
}
