package statsio

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMirror exposes a Tree's counters as a Prometheus gauge vector,
// refreshed on demand from a live snapshot (spec §6, ADDED "live view").
type PromMirror struct {
	tree   *Tree
	gauges *prometheus.GaugeVec
}

// NewPromMirror registers a "coresim_counter{name}" gauge vector on reg
// and returns a mirror whose Refresh method updates it from t.
func NewPromMirror(reg prometheus.Registerer, t *Tree) (*PromMirror, error) {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "coresim",
		Name:      "counter",
		Help:      "Simulation counter tree, flattened by dotted path.",
	}, []string{"name"})
	if err := reg.Register(gv); err != nil {
		return nil, err
	}
	return &PromMirror{tree: t, gauges: gv}, nil
}

// Refresh pushes the tree's current flattened values into the gauge
// vector. Intended to be called at phase boundaries alongside the
// trace/stats flush.
func (m *PromMirror) Refresh() {
	for _, r := range m.tree.flattened() {
		m.gauges.WithLabelValues(r.name).Set(float64(r.value))
	}
}
