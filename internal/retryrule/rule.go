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

// Package retryrule implements the retry rule DSL of spec.md §4.3: atomic
// rules built from a conjunction of optional predicates over method,
// status, trailers, exceptions and content, composed with OrElse into a
// chain evaluated in declaration order.
package retryrule

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
)

// AttemptInfo carries everything a rule may need to reach a decision about
// one completed (or never-started) attempt.
type AttemptInfo struct {
	// Method is the HTTP method of the outgoing request.
	Method string
	// StatusCode is the response status code, or 0 if none was received.
	StatusCode int
	// Headers are the response headers, or nil if none was received.
	Headers http.Header
	// Trailers are the response trailers, or nil if none was received.
	Trailers http.Header
	// Cause is the error the attempt failed with, or nil on success.
	Cause error
	// Unprocessed indicates the request was never sent (e.g. connection
	// refused, pool exhausted) -- always retriable if a rule says so.
	Unprocessed bool
	// Content is the aggregated response body, populated by the driver
	// only when the rule being evaluated implements ContentAware.
	Content []byte
}

// Rule evaluates an attempt and produces a Decision. Rules are asynchronous
// in principle (content-aware rules must wait on body aggregation); in Go
// that simply means ShouldRetry takes a context and may block or return
// ctx.Err().
type Rule interface {
	ShouldRetry(ctx context.Context, info AttemptInfo) (retrydecision.Decision, error)
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(ctx context.Context, info AttemptInfo) (retrydecision.Decision, error)

// ShouldRetry implements Rule.
func (f RuleFunc) ShouldRetry(ctx context.Context, info AttemptInfo) (retrydecision.Decision, error) {
	return f(ctx, info)
}

// composedRule evaluates a first; if a falls through (KindNext), b is
// evaluated. Declaration order is preserved (spec.md §4.3 "Tie-breaking").
type composedRule struct {
	a, b Rule
}

// ShouldRetry implements Rule.
func (c composedRule) ShouldRetry(ctx context.Context, info AttemptInfo) (retrydecision.Decision, error) {
	decision, err := c.a.ShouldRetry(ctx, info)
	if err != nil {
		// Propagate as-is; the driver applies the fail-open policy of
		// spec.md §7 ("rule said retry with default backoff") and records
		// the error on the attempt's log. A composed rule must not mask
		// the failure by silently falling through to b.
		return decision, err
	}
	if decision.Kind != retrydecision.KindNext {
		return decision, nil
	}
	return c.b.ShouldRetry(ctx, info)
}

// OrElse composes two rules: a is evaluated first, and b only if a falls
// through with KindNext.
func OrElse(a, b Rule) Rule {
	return composedRule{a: a, b: b}
}

// IdempotentMethods is the "idempotent methods" shortcut named in
// spec.md §4.3.
var IdempotentMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// unwrapOnce removes exactly one layer of a "completion"/"execution"
// wrapper error, per spec.md §4.3 ("automatic unwrapping of one layer of
// completion/execution wrapper exceptions").
func unwrapOnce(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}
