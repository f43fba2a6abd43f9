package mempool

import "github.com/prometheus/client_golang/prometheus"

// poolSize exposes the current mempool transaction count as a Prometheus
// gauge.
var poolSize = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "intcoin",
	Subsystem: "mempool",
	Name:      "transactions",
	Help:      "Number of transactions currently held in the mempool.",
})

func init() {
	prometheus.MustRegister(poolSize)
}

func setPoolSize(n int) {
	poolSize.Set(float64(n))
}
