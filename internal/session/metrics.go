package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache behavior. Counters are registered on the supplied
// registerer so batch runs can report how much real authentication work
// they caused.
type Metrics struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	Refreshes       prometheus.Counter
	CorruptDiscards prometheus.Counter
}

// NewMetrics builds and registers the session counters. reg may be nil for
// unregistered (test) counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odinbots", Subsystem: "session",
			Name: "cache_hits_total", Help: "Lookups answered from a live cached record.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odinbots", Subsystem: "session",
			Name: "cache_misses_total", Help: "Lookups that required a delegation protocol run.",
		}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odinbots", Subsystem: "session",
			Name: "refreshes_total", Help: "Completed delegation protocol runs.",
		}),
		CorruptDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odinbots", Subsystem: "session",
			Name: "corrupt_records_discarded_total", Help: "Cached records discarded as unreadable or incomplete.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Refreshes, m.CorruptDiscards)
	}
	return m
}
