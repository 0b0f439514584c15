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

// Package retrylog emits the observable events a running retry sequence
// produces: one event per attempt start, one per attempt completion, and
// one when the sequence as a whole gives up or succeeds. It wraps
// zerolog.Logger rather than wrapping a custom interface around it, so
// callers can attach the same sinks, sampling, and context propagation
// they already use for the rest of their logging.
package retrylog

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Log emits structured attempt and sequence events for one retry driver.
// The zero value is usable and discards everything, same as Nop().
type Log struct {
	logger *zerolog.Logger
}

// New wraps logger. A Log built this way tags every event with
// component=retrydriver so they can be filtered out of a larger
// application's log stream.
func New(logger zerolog.Logger) Log {
	tagged := logger.With().Str("component", "retrydriver").Logger()
	return Log{logger: &tagged}
}

// Nop returns a Log that discards every event, for callers who do not want
// retry telemetry.
func Nop() Log {
	discard := zerolog.Nop()
	return Log{logger: &discard}
}

// AttemptStarted records that attempt number attempt began at start against
// endpoint.
func (l Log) AttemptStarted(endpoint string, attempt uint32, start time.Time) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().
		Str("endpoint", endpoint).
		Uint32("attempt", attempt).
		Time("start", start).
		Msg("retry attempt started")
}

// AttemptCompleted records the outcome of one attempt: its status code (0
// if the attempt failed before a response arrived), the cause if any, and
// the response/trailer headers observed.
func (l Log) AttemptCompleted(endpoint string, attempt uint32, statusCode int, cause error, headers, trailers http.Header, elapsed time.Duration) {
	if l.logger == nil {
		return
	}
	event := l.logger.Info().
		Str("endpoint", endpoint).
		Uint32("attempt", attempt).
		Dur("elapsed", elapsed)
	if statusCode != 0 {
		event = event.Int("status", statusCode)
	}
	if cause != nil {
		event = event.Err(cause)
	}
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		event = event.Str("retry_after", retryAfter)
	}
	if len(trailers) > 0 {
		event = event.Int("trailer_count", len(trailers))
	}
	event.Msg("retry attempt completed")
}

// RuleDecision records what the retry rule decided for one attempt, and
// whether the limiter overrode it.
func (l Log) RuleDecision(endpoint string, attempt uint32, kind string, delayMillis int64, limiterDenied bool) {
	if l.logger == nil {
		return
	}
	event := l.logger.Debug().
		Str("endpoint", endpoint).
		Uint32("attempt", attempt).
		Str("decision", kind)
	if delayMillis >= 0 {
		event = event.Int64("delay_ms", delayMillis)
	}
	if limiterDenied {
		event = event.Bool("limiter_denied", true)
	}
	event.Msg("retry rule decision")
}

// SequenceGaveUp records that a retry sequence exhausted its attempts or
// hit a hard stop without ever succeeding.
func (l Log) SequenceGaveUp(endpoint string, attempts uint32, cause error, total time.Duration) {
	if l.logger == nil {
		return
	}
	l.logger.Warn().
		Str("endpoint", endpoint).
		Uint32("attempts", attempts).
		Dur("total", total).
		Err(cause).
		Msg("retry sequence gave up")
}

// SequenceSucceeded records that a retry sequence completed successfully,
// possibly after one or more retries.
func (l Log) SequenceSucceeded(endpoint string, attempts uint32, total time.Duration) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().
		Str("endpoint", endpoint).
		Uint32("attempts", attempts).
		Dur("total", total).
		Msg("retry sequence succeeded")
}

// HedgeLaunched records that a hedged attempt was launched alongside an
// already in-flight one.
func (l Log) HedgeLaunched(endpoint string, attempt uint32, afterDelay time.Duration) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().
		Str("endpoint", endpoint).
		Uint32("attempt", attempt).
		Dur("after", afterDelay).
		Msg("hedged attempt launched")
}

// HedgeWon records which attempt of a hedged sequence produced the winning
// response, so the siblings that were cancelled can be correlated in logs.
func (l Log) HedgeWon(endpoint string, winningAttempt uint32, siblingsCancelled int) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().
		Str("endpoint", endpoint).
		Uint32("winning_attempt", winningAttempt).
		Int("siblings_cancelled", siblingsCancelled).
		Msg("hedged attempt won")
}
