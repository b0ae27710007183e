package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the node's version, set at build time via -ldflags.
var Version = "dev"

var nodeVersion = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Help:      "Node version.",
		Name:      "version",
		Namespace: "p2pnet",
	},
	[]string{"version"})

func setNodeVersion(v string) {
	nodeVersion.WithLabelValues(v).Add(1)
}

func init() {
	prometheus.MustRegister(
		nodeVersion,
	)
}
