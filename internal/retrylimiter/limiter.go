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

// Package retrylimiter implements the side-band retry throttles of
// spec.md §4.4: a concurrency-limiting gate and a token-bucket gate. Both
// are process-wide, safe for concurrent use across logical retry
// sequences, and fail open: a panic inside a limiter callback is swallowed
// and treated as "should_retry = true" / "no decision applied" rather than
// propagating into the driver.
package retrylimiter

import (
	"context"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
)

// Limiter gates whether a logical retry sequence may continue retrying.
type Limiter interface {
	// ShouldRetry reports whether a retry permit is currently available.
	// It must be safe to call from multiple goroutines concurrently.
	ShouldRetry(ctx context.Context) bool

	// HandleDecision applies the limiter-relevant side effects of a
	// Decision (e.g. token consumption/refund). It is a no-op for limiters
	// that don't use the permit hint.
	HandleDecision(ctx context.Context, decision retrydecision.Decision)
}

// safeShouldRetry invokes fn and fails open (returns true) if fn panics,
// per spec.md §4.4 ("Exceptions thrown from limiter callbacks must NOT
// propagate into the driver").
func safeShouldRetry(fn func() bool) (result bool) {
	result = true
	defer func() {
		if r := recover(); r != nil {
			result = true
		}
	}()
	return fn()
}

// safeHandleDecision invokes fn and swallows any panic.
func safeHandleDecision(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
