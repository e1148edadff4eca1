package tenant

import "github.com/prometheus/client_golang/prometheus"

// PromRegistry is a dedicated prometheus registry for tenant-lifecycle
// gauges. The rest of this codebase reports through go-ethereum's
// metrics registry (spec-wide convention, grounded in the teacher's own
// metrics.NewRegisteredX calls); tenant counts are additionally exposed
// here in prometheus's native format, since an operator fronting many
// pageserver processes with a Prometheus scrape target is the one place
// in this system where that ecosystem's registry/collector shape, not
// go-ethereum's, is what downstream tooling expects.
var PromRegistry = prometheus.NewRegistry()

var (
	activeTenantsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pageserver",
		Subsystem: "tenant",
		Name:      "active",
		Help:      "Number of tenants currently in the Active state.",
	})
	brokenTenantsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pageserver",
		Subsystem: "tenant",
		Name:      "broken",
		Help:      "Number of tenants currently in the Broken state.",
	})
)

func init() {
	PromRegistry.MustRegister(activeTenantsGauge, brokenTenantsGauge)
}

// reportState adjusts the prometheus gauges for a tenant's transition
// from 'from' to 'to'. Called with every SetState; cheap Inc/Dec pairs,
// no scan of the tenant registry needed.
func reportState(from, to State) {
	if from == StateActive {
		activeTenantsGauge.Dec()
	}
	if to == StateActive {
		activeTenantsGauge.Inc()
	}
	if from == StateBroken {
		brokenTenantsGauge.Dec()
	}
	if to == StateBroken {
		brokenTenantsGauge.Inc()
	}
}
