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

// Package retrydecision defines the typed outcome of a retry rule
// evaluation. Rather than a class hierarchy, the decision is a tagged
// struct (spec.md §9: "Use tagged variants or a Layer enum instead of
// subclass trees"), dispatched on Kind.
package retrydecision

import "github.com/sirseerhq/retrycore/internal/backoff"

// Kind tags which variant a Decision holds.
type Kind int

const (
	// KindNext means the rule did not match; evaluation should fall
	// through to the next rule in an OrElse chain.
	KindNext Kind = iota
	// KindRetry means the rule matched and a retry should be scheduled.
	KindRetry
	// KindNoRetry means the rule matched and no further retries should
	// occur.
	KindNoRetry
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "Next"
	case KindRetry:
		return "Retry"
	case KindNoRetry:
		return "NoRetry"
	default:
		return "Unknown"
	}
}

// NoPermit indicates a Decision carries no throttle hint for the limiter.
const NoPermit = -2.0

// Decision is the outcome of evaluating a retry rule against one attempt.
// Permit is a hint in [-1, 1] consumed by token-bucket limiters
// (spec.md §4.4); it is NoPermit when the rule did not set one.
type Decision struct {
	Kind    Kind
	Backoff backoff.Backoff
	Permit  float64
}

// Next is the fall-through decision used by OrElse composition.
func Next() Decision {
	return Decision{Kind: KindNext, Permit: NoPermit}
}

// Retry constructs a retry decision with the given backoff. If b is nil,
// the caller is expected to substitute backoff.DefaultExponential() before
// use (spec.md §4.3: "Backoff.default" if omitted).
func Retry(b backoff.Backoff) Decision {
	return Decision{Kind: KindRetry, Backoff: b, Permit: NoPermit}
}

// RetryWithPermit is Retry with an explicit limiter permit hint.
func RetryWithPermit(b backoff.Backoff, permit float64) Decision {
	return Decision{Kind: KindRetry, Backoff: b, Permit: permit}
}

// NoRetry constructs a terminal no-retry decision.
func NoRetry() Decision {
	return Decision{Kind: KindNoRetry, Permit: NoPermit}
}

// NoRetryWithPermit is NoRetry with an explicit limiter permit hint.
func NoRetryWithPermit(permit float64) Decision {
	return Decision{Kind: KindNoRetry, Permit: permit}
}

// HasPermit reports whether the decision carries a limiter permit hint.
func (d Decision) HasPermit() bool {
	return d.Permit != NoPermit
}

// EffectiveBackoff returns d.Backoff, or backoff.DefaultExponential() if the
// decision is a Retry with no backoff set.
func (d Decision) EffectiveBackoff() backoff.Backoff {
	if d.Backoff != nil {
		return d.Backoff
	}
	return backoff.DefaultExponential()
}
