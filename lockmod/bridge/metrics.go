package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var occurrencesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_bridge_occurrences_dropped",
	Help: "Number of occurrences read from the gateway but never delivered to the consumer",
})

var occurrenceBacklog = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "warden_bridge_occurrence_backlog",
	Help: "Occurrences read from the gateway and waiting for the consumer",
})
