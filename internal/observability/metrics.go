package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for pipeline runs and
// exposes a /metrics handler.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	Observations  *prometheus.CounterVec
	Tracks        prometheus.Counter
	Events        *prometheus.CounterVec
	Warnings      *prometheus.CounterVec
	RuleSkips     *prometheus.CounterVec
	RowSkips      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	SparseSatellites prometheus.Gauge
	LastRunTracks    prometheus.Gauge
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	observations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uct_observations_processed_total",
		Help: "Observations processed, labeled by provenance (REAL or SIMULATED).",
	}, []string{"provenance"}), "uct_observations_processed_total")
	if err != nil {
		return nil, err
	}

	tracks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uct_tracks_total",
		Help: "Tracks produced by segmentation across all runs.",
	}), "uct_tracks_total")
	if err != nil {
		return nil, err
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uct_events_total",
		Help: "Events emitted by the detector, labeled by event type.",
	}, []string{"type"}), "uct_events_total")
	if err != nil {
		return nil, err
	}

	warnings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uct_implausible_values_total",
		Help: "Computed or supplied values discarded for falling outside physical bounds, labeled by field.",
	}, []string{"field"}), "uct_implausible_values_total")
	if err != nil {
		return nil, err
	}

	skips, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uct_rule_skips_total",
		Help: "Satellites or track pairs a detector rule skipped for insufficient data, labeled by rule.",
	}, []string{"rule"}), "uct_rule_skips_total")
	if err != nil {
		return nil, err
	}

	rowSkips, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uct_rows_skipped_total",
		Help: "Input rows dropped for a NULL or empty required value, labeled by the first such field.",
	}, []string{"field"}), "uct_rows_skipped_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uct_stage_duration_seconds",
		Help:    "Wall time spent per pipeline stage.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"stage"}), "uct_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	sparse, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uct_sparse_satellites",
		Help: "Satellites below the sparse-coverage threshold in the last run.",
	}), "uct_sparse_satellites")
	if err != nil {
		return nil, err
	}

	lastTracks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uct_last_run_tracks",
		Help: "Tracks produced by the last run.",
	}), "uct_last_run_tracks")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:         gatherer,
		Observations:     observations,
		Tracks:           tracks,
		Events:           events,
		Warnings:         warnings,
		RuleSkips:        skips,
		RowSkips:         rowSkips,
		StageDuration:    durations,
		SparseSatellites: sparse,
		LastRunTracks:    lastTracks,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveStage records how long a stage took. Safe on a nil collector.
func (c *PipelineCollector) ObserveStage(stage string, d time.Duration) {
	if c == nil || c.StageDuration == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddObservations counts processed observations by provenance label.
func (c *PipelineCollector) AddObservations(provenance string, n int) {
	if c == nil || c.Observations == nil || n <= 0 {
		return
	}
	c.Observations.WithLabelValues(provenance).Add(float64(n))
}

// SetTracks records the tracks produced by a run.
func (c *PipelineCollector) SetTracks(n int) {
	if c == nil {
		return
	}
	if c.Tracks != nil && n > 0 {
		c.Tracks.Add(float64(n))
	}
	if c.LastRunTracks != nil {
		c.LastRunTracks.Set(float64(n))
	}
}

// IncEvent counts one emitted event. It satisfies the detector's recorder.
func (c *PipelineCollector) IncEvent(eventType string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.WithLabelValues(eventType).Inc()
}

// IncSkip counts one insufficient-data skip for a rule.
func (c *PipelineCollector) IncSkip(rule string) {
	if c == nil || c.RuleSkips == nil {
		return
	}
	c.RuleSkips.WithLabelValues(rule).Inc()
}

// IncWarning counts one discarded implausible value.
func (c *PipelineCollector) IncWarning(field string) {
	if c == nil || c.Warnings == nil {
		return
	}
	c.Warnings.WithLabelValues(field).Inc()
}

// IncRowSkip counts one dropped input row.
func (c *PipelineCollector) IncRowSkip(field string) {
	if c == nil || c.RowSkips == nil {
		return
	}
	c.RowSkips.WithLabelValues(field).Inc()
}

// SetSparseSatellites records the number of sparse satellites.
func (c *PipelineCollector) SetSparseSatellites(n int) {
	if c == nil || c.SparseSatellites == nil {
		return
	}
	c.SparseSatellites.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
