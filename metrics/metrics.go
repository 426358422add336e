// Package metrics exposes the orchestrator's Prometheus gauges (spec §4.8
// "[EXPANSION]"), grounded on the teacher's metrics/prometheus packages:
// a handful of package-level collectors registered once at init and
// updated by node.Node at the end of every tick.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Height is the current consensus height.
	Height = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "permabft",
		Name:      "height",
		Help:      "Current consensus height.",
	})

	// Round is the current round within Height.
	Round = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "permabft",
		Name:      "round",
		Help:      "Current consensus round within the current height.",
	})

	// PoolPending is the transaction pool's total pending+queued size.
	PoolPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "permabft",
		Name:      "pool_pending",
		Help:      "Number of transactions currently held by the pool.",
	})

	// LastBlockGasUsed is the gas_used field of the most recently committed block.
	LastBlockGasUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "permabft",
		Name:      "last_block_gas_used",
		Help:      "Gas used by the most recently committed block.",
	})

	// LastBlockBatches is the number of parallel scheduler layers the most
	// recently built block was split into.
	LastBlockBatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "permabft",
		Name:      "last_block_batches",
		Help:      "Number of scheduler batches used to build the most recently committed block.",
	})
)

func init() {
	prometheus.MustRegister(Height, Round, PoolPending, LastBlockGasUsed, LastBlockBatches)
}
