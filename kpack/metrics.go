package kpack

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var loads = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kpack",
	Name:      "loads_total",
	Help:      "Main set and tile loads by outcome",
}, []string{"part", "status"})

var loadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "kpack",
	Name:      "load_duration_seconds",
	Help:      "Time to read and decode the main set or one tile",
	Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
}, []string{"part"})

var blockBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kpack",
	Name:      "block_bytes_total",
	Help:      "Compressed block bytes moved, including size prefixes",
}, []string{"direction"})

var saves = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kpack",
	Name:      "saves_total",
	Help:      "Pack file saves by outcome",
}, []string{"status"})

func init() {
	for _, c := range []prometheus.Collector{loads, loadDuration, blockBytes, saves} {
		if err := prometheus.Register(c); err != nil {
			fmt.Println("Error registering metric", err)
		}
	}
}
