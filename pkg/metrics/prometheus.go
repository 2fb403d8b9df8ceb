// Package metrics provides Prometheus metrics for rating replays and feature runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of a run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Rating replay
	matchesReplayed   prometheus.Counter
	teamsInitialized  *prometheus.CounterVec
	ratingResets      prometheus.Counter
	teamsRated        prometheus.Gauge
	homeAdvantage     prometheus.Gauge
	replayDuration    prometheus.Histogram
	duplicatesDropped prometheus.Counter

	// Aggregation
	recordsEnriched     prometheus.Counter
	aggregateMissing    *prometheus.CounterVec
	aggregationDuration prometheus.Histogram

	// Pipeline
	pipelineErrors *prometheus.CounterVec
	lastRunUnix    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics in batch output.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchform",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 5000, 30000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.matchesReplayed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_replayed_total",
		Help:      "Match results folded into the rating state",
	})

	m.teamsInitialized = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams_initialized_total",
		Help:      "Teams seen for the first time, by initial-rating rule",
	}, []string{"rule"})

	m.ratingResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_resets_total",
		Help:      "Ratings reset after an inactivity gap",
	})

	m.teamsRated = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams_rated",
		Help:      "Teams held by the rating store",
	})

	m.homeAdvantage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "home_advantage_points",
		Help:      "Current adaptive home advantage in rating points",
	})

	m.replayDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_duration_milliseconds",
		Help:      "Wall time of one rating replay",
		Buckets:   m.histogramBuckets,
	})

	m.duplicatesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_matches_total",
		Help:      "Match results dropped because their id was already seen",
	})

	m.recordsEnriched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_enriched_total",
		Help:      "Match records that received aggregate features",
	})

	m.aggregateMissing = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_missing_total",
		Help:      "Aggregate cells left missing because the eligible history was empty",
	}, []string{"variant"})

	m.aggregationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregation_duration_milliseconds",
		Help:      "Wall time of one aggregation pass",
		Buckets:   m.histogramBuckets,
	})

	m.pipelineErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Pipeline failures by stage",
	}, []string{"stage"})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run",
	})
}

// RecordMatchReplayed increments the replayed match counter.
func RecordMatchReplayed() {
	if globalManager.enabled {
		globalManager.matchesReplayed.Inc()
	}
}

// RecordTeamInitialized counts a first appearance under the given rule.
func RecordTeamInitialized(rule string) {
	if globalManager.enabled {
		globalManager.teamsInitialized.WithLabelValues(rule).Inc()
	}
}

// RecordRatingReset counts an inactivity reset.
func RecordRatingReset() {
	if globalManager.enabled {
		globalManager.ratingResets.Inc()
	}
}

// UpdateTeamsRated sets the number of rated teams.
func UpdateTeamsRated(count int) {
	if globalManager.enabled {
		globalManager.teamsRated.Set(float64(count))
	}
}

// UpdateHomeAdvantage sets the current home advantage.
func UpdateHomeAdvantage(points float64) {
	if globalManager.enabled {
		globalManager.homeAdvantage.Set(points)
	}
}

// RecordReplayDuration observes one replay's wall time.
func RecordReplayDuration(ms float64) {
	if globalManager.enabled {
		globalManager.replayDuration.Observe(ms)
	}
}

// RecordDuplicateMatch counts a dropped duplicate result.
func RecordDuplicateMatch() {
	if globalManager.enabled {
		globalManager.duplicatesDropped.Inc()
	}
}

// RecordRecordsEnriched adds n enriched records.
func RecordRecordsEnriched(n int) {
	if globalManager.enabled {
		globalManager.recordsEnriched.Add(float64(n))
	}
}

// RecordAggregateMissing adds n missing cells for a variant.
func RecordAggregateMissing(variant string, n int) {
	if globalManager.enabled {
		globalManager.aggregateMissing.WithLabelValues(variant).Add(float64(n))
	}
}

// RecordAggregationDuration observes one aggregation pass.
func RecordAggregationDuration(ms float64) {
	if globalManager.enabled {
		globalManager.aggregationDuration.Observe(ms)
	}
}

// RecordPipelineError counts a failure in the given stage.
func RecordPipelineError(stage string) {
	if globalManager.enabled {
		globalManager.pipelineErrors.WithLabelValues(stage).Inc()
	}
}

// UpdateLastRun stamps the completion time of a run.
func UpdateLastRun(unixSeconds float64) {
	if globalManager.enabled {
		globalManager.lastRunUnix.Set(unixSeconds)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the text exposition format so a batch
// run can be scraped through the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	return nil
}
