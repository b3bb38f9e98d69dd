// Package metrics defines the prometheus collectors exported by the estimator service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "reno"

	jobTypeLabel    = "job_type"
	rateSourceLabel = "rate_source"
	resultLabel     = "result"

	catalogSource    = "catalog"
	uncataloguedJobs = "other"

	// ReloadOK and ReloadFailed label catalog reload outcomes.
	ReloadOK     = "ok"
	ReloadFailed = "failed"
)

var batchLineBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 50}

// Metrics holds the service collectors.
type Metrics struct {
	estimates *prometheus.CounterVec
	batchSize prometheus.Histogram
	reloads   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimates_total",
				Help:      "Number of priced job lines partitioned by job type and rate source.",
			},
			[]string{jobTypeLabel, rateSourceLabel},
		),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_lines",
			Help:      "Number of lines per batch estimate.",
			Buckets:   batchLineBuckets,
		}),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Number of price list reloads partitioned by result.",
			},
			[]string{resultLabel},
		),
	}
	reg.MustRegister(m.estimates, m.batchSize, m.reloads)
	return m
}

// ObserveEstimate counts one priced line. Job types priced outside the catalog are free text
// and share a single label value.
func (m *Metrics) ObserveEstimate(jobType, rateSource string) {
	if rateSource != catalogSource {
		jobType = uncataloguedJobs
	}
	m.estimates.With(prometheus.Labels{
		jobTypeLabel:    jobType,
		rateSourceLabel: rateSource,
	}).Inc()
}

// ObserveBatch records the size of a batch estimate.
func (m *Metrics) ObserveBatch(lines int) {
	m.batchSize.Observe(float64(lines))
}

// ObserveReload counts a catalog reload attempt.
func (m *Metrics) ObserveReload(err error) {
	result := ReloadOK
	if err != nil {
		result = ReloadFailed
	}
	m.reloads.With(prometheus.Labels{resultLabel: result}).Inc()
}
