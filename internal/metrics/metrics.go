// Package metrics holds the Prometheus collectors for config resolution and
// the permission cache. They register on a private registry so embedding
// programs decide whether to expose them.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kura"

// Lookup sources.
const (
	SourceEnv     = "env"
	SourceStore   = "store"
	SourceMissing = "missing"
)

// Permission check results.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultMiss    = "miss"
)

var (
	Registry = prometheus.NewRegistry()

	// ConfigLookups counts resolutions by namespace (config, secret) and the layer that answered.
	ConfigLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_lookups_total",
		Help:      "Config and secret lookups by the layer that answered them",
	}, []string{"namespace", "source"})

	PermissionChecks = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_checks_total",
		Help:      "Permission cache checks by outcome",
	}, []string{"result"})

	PermissionRecords = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_records_total",
		Help:      "Permission decisions recorded by outcome",
	}, []string{"result"})

	PermissionPruned = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_pruned_total",
		Help:      "Expired permission records removed",
	})
)

// WriteText dumps every counter as "name{labels} value" lines, sorted.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
