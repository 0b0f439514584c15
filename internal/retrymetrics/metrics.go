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

// Package retrymetrics defines the Recorder hook a retry driver calls on
// every attempt and sequence outcome, plus a Prometheus-backed Recorder for
// production use.
package retrymetrics

import "time"

// Recorder observes retry driver activity. Implementations must tolerate
// concurrent calls from multiple in-flight sequences and must never block
// the caller on anything slower than an in-memory counter update.
type Recorder interface {
	// AttemptStarted is called once per attempt, immediately before it is
	// dispatched to the delegate.
	AttemptStarted(endpoint string)

	// AttemptCompleted is called once per attempt, after it finishes.
	// statusCode is 0 if the attempt failed before a response arrived.
	AttemptCompleted(endpoint string, statusCode int, succeeded bool, latency time.Duration)

	// RetryScheduled is called each time the rule and limiter agree to
	// retry, with the delay that was chosen.
	RetryScheduled(endpoint string, delay time.Duration)

	// RetryDenied is called each time the limiter vetoes a retry the rule
	// would otherwise have granted.
	RetryDenied(endpoint string)

	// SequenceCompleted is called exactly once per top-level call into the
	// driver, whether it ultimately succeeded or gave up.
	SequenceCompleted(endpoint string, succeeded bool, attempts int, total time.Duration)
}

// Nop is a Recorder that discards everything. It is the default when no
// Recorder is configured.
var Nop Recorder = nopRecorder{}

type nopRecorder struct{}

func (nopRecorder) AttemptStarted(string)                              {}
func (nopRecorder) AttemptCompleted(string, int, bool, time.Duration)  {}
func (nopRecorder) RetryScheduled(string, time.Duration)               {}
func (nopRecorder) RetryDenied(string)                                 {}
func (nopRecorder) SequenceCompleted(string, bool, int, time.Duration) {}
