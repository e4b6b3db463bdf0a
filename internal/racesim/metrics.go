package racesim

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pitwall"

// Metrics are shared by every session created with the same options.
type Metrics struct {
	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	LapsCompleted prometheus.Counter
	PitStops      prometheus.Counter
	Overtakes     prometheus.Counter
	RacesFinished prometheus.Counter
	Observers     prometheus.Gauge
	Detached      prometheus.Counter
	Sessions      prometheus.Gauge

	AdvisorAnswers *prometheus.CounterVec
	Commentary     *prometheus.CounterVec
}

// NewMetrics creates the simulator's metrics and registers them with reg. A nil reg leaves the
// metrics unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ticks_total",
			Help:      "Simulation ticks processed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent stepping the simulation and building a snapshot.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		LapsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "laps_completed_total",
			Help:      "Laps completed by all drivers.",
		}),
		PitStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pit_stops_total",
			Help:      "Pit stops taken by all drivers.",
		}),
		Overtakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "overtakes_total",
			Help:      "Position changes detected between ticks.",
		}),
		RacesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "races_finished_total",
			Help:      "Races in which every driver completed the final lap.",
		}),
		Observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "observers",
			Help:      "Observers attached across all sessions.",
		}),
		Detached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observers_detached_total",
			Help:      "Observers detached after a failed delivery.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions",
			Help:      "Sessions currently held by the manager.",
		}),
		AdvisorAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "advisor_answers_total",
			Help:      "Engineer answers by source.",
		}, []string{"source"}),
		Commentary: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commentary_total",
			Help:      "Race start commentary requests by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Ticks,
			m.TickDuration,
			m.LapsCompleted,
			m.PitStops,
			m.Overtakes,
			m.RacesFinished,
			m.Observers,
			m.Detached,
			m.Sessions,
			m.AdvisorAnswers,
			m.Commentary,
		)
	}

	return m
}
