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

package retryrule

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/retrydecision"
)

// ErrNoPredicateConfigured is returned by Builder.ThenBackoff,
// Builder.ThenNoRetry and Builder.ThenDecide when no predicate
// was configured, per spec.md §4.3 ("if any predicate is configured but
// none was set, construction fails").
var ErrNoPredicateConfigured = errors.New("retryrule: should set at least one rule predicate")

// Builder constructs an atomic Rule as the conjunction of whichever
// predicates are configured. A Builder with zero predicates configured
// fails at ThenBackoff/ThenNoRetry/ThenDecide time, never at evaluation time.
type Builder struct {
	methods          map[string]bool
	statuses         map[int]bool
	statusClass      func(code int) bool
	trailerPredicate func(http.Header) bool
	headerPredicate  func(http.Header) bool
	exceptionClass   func(error) bool
	unprocessed      *bool
	contentPredicate ContentPredicate
	any              bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// OnMethods restricts the rule to the given HTTP methods.
func (b *Builder) OnMethods(methods ...string) *Builder {
	b.methods = make(map[string]bool, len(methods))
	for _, m := range methods {
		b.methods[m] = true
	}
	b.any = true
	return b
}

// OnIdempotentMethods is the "idempotent methods" shortcut of spec.md §4.3.
func (b *Builder) OnIdempotentMethods() *Builder {
	b.methods = IdempotentMethods
	b.any = true
	return b
}

// OnStatus restricts the rule to responses with exactly one of the given
// status codes.
func (b *Builder) OnStatus(codes ...int) *Builder {
	b.statuses = make(map[int]bool, len(codes))
	for _, c := range codes {
		b.statuses[c] = true
	}
	b.any = true
	return b
}

// OnStatusClass restricts the rule to status codes in [class, class+100),
// e.g. OnStatusClass(500) matches all 5xx responses.
func (b *Builder) OnStatusClass(class int) *Builder {
	b.statusClass = func(code int) bool { return code >= class && code < class+100 }
	b.any = true
	return b
}

// OnStatusPredicate installs a custom status predicate.
func (b *Builder) OnStatusPredicate(pred func(code int) bool) *Builder {
	b.statusClass = pred
	b.any = true
	return b
}

// OnTrailer restricts the rule to responses whose trailers match pred.
func (b *Builder) OnTrailer(pred func(http.Header) bool) *Builder {
	b.trailerPredicate = pred
	b.any = true
	return b
}

// OnResponseHeaders restricts the rule by a predicate over response
// headers -- used for hedging-style "retry on provisional headers" rules.
func (b *Builder) OnResponseHeaders(pred func(http.Header) bool) *Builder {
	b.headerPredicate = pred
	b.any = true
	return b
}

// OnException restricts the rule to causes matching pred. The cause is
// unwrapped one layer first (spec.md §4.3).
func (b *Builder) OnException(pred func(error) bool) *Builder {
	b.exceptionClass = pred
	b.any = true
	return b
}

// OnExceptionIs restricts the rule to causes satisfying errors.Is(cause,
// target) after unwrapping one completion/execution layer.
func (b *Builder) OnExceptionIs(target error) *Builder {
	return b.OnException(func(err error) bool { return errors.Is(err, target) })
}

// OnUnprocessedRequest restricts the rule to attempts where the request was
// never sent.
func (b *Builder) OnUnprocessedRequest(want bool) *Builder {
	b.unprocessed = &want
	b.any = true
	return b
}

// matches evaluates every configured predicate as a conjunction.
func (b *Builder) matches(info AttemptInfo) bool {
	if b.methods != nil && !b.methods[info.Method] {
		return false
	}
	if b.statuses != nil && !b.statuses[info.StatusCode] {
		return false
	}
	if b.statusClass != nil && !b.statusClass(info.StatusCode) {
		return false
	}
	if b.trailerPredicate != nil && !b.trailerPredicate(info.Trailers) {
		return false
	}
	if b.headerPredicate != nil && !b.headerPredicate(info.Headers) {
		return false
	}
	if b.exceptionClass != nil {
		if info.Cause == nil || !b.exceptionClass(unwrapOnce(info.Cause)) {
			return false
		}
	}
	if b.unprocessed != nil && info.Unprocessed != *b.unprocessed {
		return false
	}
	if b.contentPredicate != nil && !b.contentPredicate(info.Content) {
		return false
	}
	return true
}

// ThenBackoff builds a Rule that retries with b (or
// backoff.DefaultExponential() if b is nil) whenever all configured
// predicates match, and falls through (KindNext) otherwise.
func (rb *Builder) ThenBackoff(b backoff.Backoff) (Rule, error) {
	if !rb.any {
		return nil, ErrNoPredicateConfigured
	}
	fn := RuleFunc(func(_ context.Context, info AttemptInfo) (retrydecision.Decision, error) {
		if !rb.matches(info) {
			return retrydecision.Next(), nil
		}
		return retrydecision.Retry(b), nil
	})
	return rb.wrapIfContentAware(fn), nil
}

// ThenNoRetry builds a Rule that stops retrying whenever all configured
// predicates match, and falls through otherwise.
func (rb *Builder) ThenNoRetry() (Rule, error) {
	if !rb.any {
		return nil, ErrNoPredicateConfigured
	}
	fn := RuleFunc(func(_ context.Context, info AttemptInfo) (retrydecision.Decision, error) {
		if !rb.matches(info) {
			return retrydecision.Next(), nil
		}
		return retrydecision.NoRetry(), nil
	})
	return rb.wrapIfContentAware(fn), nil
}

// ThenDecide builds a Rule that produces a custom Decision, computed by fn,
// whenever all configured predicates match.
func (rb *Builder) ThenDecide(fn func(AttemptInfo) retrydecision.Decision) (Rule, error) {
	if !rb.any {
		return nil, ErrNoPredicateConfigured
	}
	ruleFn := RuleFunc(func(_ context.Context, info AttemptInfo) (retrydecision.Decision, error) {
		if !rb.matches(info) {
			return retrydecision.Next(), nil
		}
		return fn(info), nil
	})
	return rb.wrapIfContentAware(ruleFn), nil
}

// MustThenBackoff is ThenBackoff but panics on construction error, for use
// building package-level default rules.
func (rb *Builder) MustThenBackoff(b backoff.Backoff) Rule {
	r, err := rb.ThenBackoff(b)
	if err != nil {
		panic(fmt.Sprintf("retryrule: %v", err))
	}
	return r
}
