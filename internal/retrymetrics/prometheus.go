// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrymetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder is a Recorder backed by Prometheus counters and
// histograms, registered under the "retrycore_" namespace.
//
// Metrics exposed:
//
//  1. attempts_total (counter): every attempt dispatched. Labels: endpoint.
//  2. attempt_latency_seconds (histogram): attempt duration. Labels:
//     endpoint, status (success/failure).
//  3. retries_scheduled_total (counter): retries the rule and limiter both
//     agreed to. Labels: endpoint.
//  4. retries_denied_total (counter): retries the limiter vetoed. Labels:
//     endpoint.
//  5. sequence_attempts (histogram): attempts per completed sequence.
//     Labels: endpoint, outcome (success/failure).
//  6. sequence_latency_seconds (histogram): total sequence duration.
//     Labels: endpoint, outcome.
type PrometheusRecorder struct {
	attempts         *prometheus.CounterVec
	attemptLatency   *prometheus.HistogramVec
	retriesScheduled *prometheus.CounterVec
	retriesDenied    *prometheus.CounterVec
	sequenceAttempts *prometheus.HistogramVec
	sequenceLatency  *prometheus.HistogramVec
}

// NewPrometheusRecorder registers every metric with registry and returns a
// Recorder that updates them. Pass prometheus.DefaultRegisterer to use the
// global registry.
func NewPrometheusRecorder(registry prometheus.Registerer) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusRecorder{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retrycore",
			Name:      "attempts_total",
			Help:      "Total number of retry attempts dispatched, per endpoint.",
		}, []string{"endpoint"}),

		attemptLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "retrycore",
			Name:      "attempt_latency_seconds",
			Help:      "Duration of a single attempt, from dispatch to completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),

		retriesScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retrycore",
			Name:      "retries_scheduled_total",
			Help:      "Total number of retries the rule and limiter both granted.",
		}, []string{"endpoint"}),

		retriesDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retrycore",
			Name:      "retries_denied_total",
			Help:      "Total number of retries the limiter vetoed.",
		}, []string{"endpoint"}),

		sequenceAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "retrycore",
			Name:      "sequence_attempts",
			Help:      "Number of attempts made per completed sequence.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21},
		}, []string{"endpoint", "outcome"}),

		sequenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "retrycore",
			Name:      "sequence_latency_seconds",
			Help:      "Total duration of a retry sequence, across all its attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
	}
}

// AttemptStarted implements Recorder.
func (r *PrometheusRecorder) AttemptStarted(endpoint string) {
	r.attempts.WithLabelValues(endpoint).Inc()
}

// AttemptCompleted implements Recorder. Status code granularity is left to
// the structured log rather than a metric label, to keep cardinality down.
func (r *PrometheusRecorder) AttemptCompleted(endpoint string, _ int, succeeded bool, latency time.Duration) {
	r.attemptLatency.WithLabelValues(endpoint, outcomeLabel(succeeded)).Observe(latency.Seconds())
}

// RetryScheduled implements Recorder.
func (r *PrometheusRecorder) RetryScheduled(endpoint string, _ time.Duration) {
	r.retriesScheduled.WithLabelValues(endpoint).Inc()
}

// RetryDenied implements Recorder.
func (r *PrometheusRecorder) RetryDenied(endpoint string) {
	r.retriesDenied.WithLabelValues(endpoint).Inc()
}

// SequenceCompleted implements Recorder.
func (r *PrometheusRecorder) SequenceCompleted(endpoint string, succeeded bool, attempts int, total time.Duration) {
	outcome := outcomeLabel(succeeded)
	r.sequenceAttempts.WithLabelValues(endpoint, outcome).Observe(float64(attempts))
	r.sequenceLatency.WithLabelValues(endpoint, outcome).Observe(total.Seconds())
}

func outcomeLabel(succeeded bool) string {
	if succeeded {
		return "success"
	}
	return "failure"
}
