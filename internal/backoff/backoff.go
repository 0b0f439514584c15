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

// Package backoff provides delay policies for the retry core. A Backoff is a
// pure function from a 1-based attempt number to a delay in milliseconds, or
// -1 to signal that no more retries should be attempted.
package backoff

import (
	"math"
	"math/rand"
)

// Stop is the sentinel delay returned by NextDelayMillis to indicate that no
// further retries should be attempted.
const Stop int64 = -1

// Backoff computes the delay before a given attempt, or Stop.
type Backoff interface {
	// NextDelayMillis returns the delay in milliseconds before attempt
	// number n (n >= 1), or Stop if no more retries should occur.
	NextDelayMillis(attempt uint32) int64

	// Unwrap returns the backoff this one wraps, or itself if it wraps
	// nothing. Used to inspect a chain of modifiers (WithJitter,
	// WithMaxAttempts) down to the base policy.
	Unwrap() Backoff
}

// InvalidArgumentError is returned by the constructors below when given
// parameters that violate the contracts in spec.md §3.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "backoff: invalid argument " + e.Field + ": " + e.Reason
}

func invalidArg(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}

// base is embedded by leaf policies; each leaf overrides Unwrap to return
// itself, matching the "Layer" enum design note in spec.md §9 ("unwrap
// returns the inner, or self if none").
type base struct{}

// withoutDelay always returns 0.
type withoutDelay struct{ base }

// WithoutDelay returns a Backoff that never delays.
func WithoutDelay() Backoff { return withoutDelay{} }

func (w withoutDelay) NextDelayMillis(uint32) int64 { return 0 }
func (w withoutDelay) Unwrap() Backoff               { return w }

// fixedBackoff always returns the same delay.
type fixedBackoff struct {
	base
	delayMillis int64
}

// Fixed returns a Backoff that always waits delayMillis.
func Fixed(delayMillis int64) (Backoff, error) {
	if delayMillis < 0 {
		return nil, invalidArg("delayMillis", "must be >= 0")
	}
	return fixedBackoff{delayMillis: delayMillis}, nil
}

// MustFixed is like Fixed but panics on invalid arguments, for use in tests
// and package-level defaults.
func MustFixed(delayMillis int64) Backoff {
	b, err := Fixed(delayMillis)
	if err != nil {
		panic(err)
	}
	return b
}

func (f fixedBackoff) NextDelayMillis(uint32) int64 { return f.delayMillis }
func (f fixedBackoff) Unwrap() Backoff               { return f }

// exponentialBackoff computes min(max, initial*multiplier^(n-1)) with
// saturating multiplication.
type exponentialBackoff struct {
	base
	initialMillis int64
	maxMillis     int64
	multiplier    float64
}

// Exponential returns a Backoff computing min(max, initial*multiplier^(n-1)),
// saturating at max rather than oscillating once reached.
func Exponential(initialMillis, maxMillis int64, multiplier float64) (Backoff, error) {
	if initialMillis < 0 {
		return nil, invalidArg("initialMillis", "must be >= 0")
	}
	if maxMillis <= 0 {
		return nil, invalidArg("maxMillis", "must be > 0")
	}
	if initialMillis > maxMillis {
		return nil, invalidArg("initialMillis", "must be <= maxMillis")
	}
	if multiplier < 1.0 {
		return nil, invalidArg("multiplier", "must be >= 1.0")
	}
	return exponentialBackoff{initialMillis: initialMillis, maxMillis: maxMillis, multiplier: multiplier}, nil
}

// DefaultExponential is the spec.md §3 default base backoff used when a
// BackoffSpec omits a base option: exponential=200:10000:2.0.
func DefaultExponential() Backoff {
	b, err := Exponential(200, 10000, 2.0)
	if err != nil {
		panic(err)
	}
	return b
}

func (e exponentialBackoff) NextDelayMillis(attempt uint32) int64 {
	if attempt < 1 {
		attempt = 1
	}
	value := float64(e.initialMillis)
	capMillis := float64(e.maxMillis)
	for i := uint32(1); i < attempt; i++ {
		value *= e.multiplier
		if value >= capMillis || math.IsInf(value, 1) {
			return e.maxMillis
		}
	}
	if value > capMillis {
		value = capMillis
	}
	return int64(value)
}

func (e exponentialBackoff) Unwrap() Backoff { return e }

// fibonacciBackoff computes min(max, initial*F(n)) where F(1)=F(2)=1.
type fibonacciBackoff struct {
	base
	initialMillis int64
	maxMillis     int64
}

// Fibonacci returns a Backoff computing min(max, initial*F(n)).
func Fibonacci(initialMillis, maxMillis int64) (Backoff, error) {
	if initialMillis < 0 {
		return nil, invalidArg("initialMillis", "must be >= 0")
	}
	if maxMillis <= 0 {
		return nil, invalidArg("maxMillis", "must be > 0")
	}
	if initialMillis > maxMillis {
		return nil, invalidArg("initialMillis", "must be <= maxMillis")
	}
	return fibonacciBackoff{initialMillis: initialMillis, maxMillis: maxMillis}, nil
}

func (f fibonacciBackoff) NextDelayMillis(attempt uint32) int64 {
	if attempt < 1 {
		attempt = 1
	}
	capMillis := float64(f.maxMillis)
	// fPrev, fCur track F(n-1), F(n) starting from F(1)=F(2)=1.
	fPrev, fCur := int64(1), int64(1)
	for n := uint32(3); n <= attempt; n++ {
		next := fPrev + fCur
		fPrev, fCur = fCur, next
		if float64(fCur)*float64(f.initialMillis) >= capMillis {
			return f.maxMillis
		}
	}
	value := float64(f.initialMillis) * float64(fCur)
	if value > capMillis {
		value = capMillis
	}
	return int64(value)
}

func (f fibonacciBackoff) Unwrap() Backoff { return f }

// Rand is the subset of *rand.Rand the random/jittered backoffs need. Tests
// inject a seeded source instead of reaching for process-global state, per
// spec.md §9 ("Random generator injection").
type Rand interface {
	Float64() float64
}

// randomBackoff is uniform in [min, max] on every call, independent of n.
type randomBackoff struct {
	base
	minMillis int64
	maxMillis int64
	rng       Rand
}

// Random returns a Backoff uniform in [minMillis, maxMillis] on every call.
func Random(minMillis, maxMillis int64, rng Rand) (Backoff, error) {
	if minMillis < 0 {
		return nil, invalidArg("minMillis", "must be >= 0")
	}
	if maxMillis < minMillis {
		return nil, invalidArg("maxMillis", "must be >= minMillis")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return randomBackoff{minMillis: minMillis, maxMillis: maxMillis, rng: rng}, nil
}

func (r randomBackoff) NextDelayMillis(uint32) int64 {
	span := r.maxMillis - r.minMillis
	// Scale over span+1 so maxMillis itself is reachable; clamp guards rounding.
	d := r.minMillis + int64(r.rng.Float64()*(float64(span)+1))
	if d > r.maxMillis || d < r.minMillis {
		d = r.maxMillis
	}
	return d
}

func (r randomBackoff) Unwrap() Backoff { return r }

// jitteredBackoff wraps an inner Backoff and multiplies its result by
// (1+u) where u is uniform in [minRate, maxRate].
type jitteredBackoff struct {
	inner   Backoff
	minRate float64
	maxRate float64
	rng     Rand
}

// WithJitter wraps inner so that each delay is scaled by a random factor in
// [1+minRate, 1+maxRate].
func WithJitter(inner Backoff, minRate, maxRate float64, rng Rand) (Backoff, error) {
	if inner == nil {
		return nil, invalidArg("inner", "must not be nil")
	}
	if minRate < -1 || minRate > 1 {
		return nil, invalidArg("minRate", "must be in [-1, 1]")
	}
	if maxRate < -1 || maxRate > 1 {
		return nil, invalidArg("maxRate", "must be in [-1, 1]")
	}
	if minRate > maxRate {
		return nil, invalidArg("minRate", "must be <= maxRate")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return jitteredBackoff{inner: inner, minRate: minRate, maxRate: maxRate, rng: rng}, nil
}

func (j jitteredBackoff) NextDelayMillis(attempt uint32) int64 {
	d := j.inner.NextDelayMillis(attempt)
	if d == Stop {
		return Stop
	}
	u := j.minRate + j.rng.Float64()*(j.maxRate-j.minRate)
	scaled := float64(d) * (1 + u)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > math.MaxInt64 {
		scaled = math.MaxInt64
	}
	return int64(scaled)
}

func (j jitteredBackoff) Unwrap() Backoff { return j.inner }

// maxAttemptsBackoff returns inner(n) for n < cap, else Stop.
type maxAttemptsBackoff struct {
	inner Backoff
	cap   uint32
}

// WithMaxAttempts wraps inner so that NextDelayMillis returns Stop once
// attempt reaches cap.
func WithMaxAttempts(inner Backoff, cap uint32) (Backoff, error) {
	if inner == nil {
		return nil, invalidArg("inner", "must not be nil")
	}
	if cap < 1 {
		return nil, invalidArg("cap", "must be >= 1")
	}
	return maxAttemptsBackoff{inner: inner, cap: cap}, nil
}

func (m maxAttemptsBackoff) NextDelayMillis(attempt uint32) int64 {
	if attempt >= m.cap {
		return Stop
	}
	return m.inner.NextDelayMillis(attempt)
}

func (m maxAttemptsBackoff) Unwrap() Backoff { return m.inner }
