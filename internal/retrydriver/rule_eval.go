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

package retrydriver

import (
	"context"
	"errors"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
	"github.com/sirseerhq/retrycore/internal/retryrule"
)

// evaluateRule asks rule for a decision and fails open: a panic or a
// returned error is treated as "retry with the default backoff" per
// spec.md §7 ("Errors inside the rule evaluator are treated as 'rule said
// retry with default backoff' to fail-open; the driver records the error
// in the attempt's log"). The error, if any, is returned alongside the
// decision purely for logging; callers must not treat it as fatal.
func evaluateRule(ctx context.Context, rule retryrule.Rule, info retryrule.AttemptInfo) (decision retrydecision.Decision, loggedErr error) {
	if rule == nil {
		return retrydecision.NoRetry(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			decision = retrydecision.Retry(nil)
			if err, ok := r.(error); ok {
				loggedErr = err
			} else {
				loggedErr = errors.New("retrydriver: rule evaluator panicked")
			}
		}
	}()

	decision, err := rule.ShouldRetry(ctx, info)
	if err != nil {
		return retrydecision.Retry(nil), err
	}
	if decision.Kind == retrydecision.KindNext {
		// A composed rule that falls all the way through without any
		// atomic rule matching behaves as NoRetry: there is nothing left
		// to say "retry" on its behalf.
		return retrydecision.NoRetry(), nil
	}
	return decision, nil
}

// needsContent reports whether rule requires the response body to be
// aggregated before it can decide (spec.md §4.3's RetryRuleWithContent).
func needsContent(rule retryrule.Rule) bool {
	aware, ok := rule.(retryrule.ContentAware)
	return ok && aware.NeedsContent()
}

// isUnprocessed reports whether err indicates the request was never sent.
func isUnprocessed(err error) bool {
	var u Unprocessed
	return errors.As(err, &u) && u.UnprocessedRequest()
}

// buildAttemptInfo adapts one attempt's raw outcome into the AttemptInfo a
// retryrule.Rule evaluates against.
func buildAttemptInfo(method string, resp *Response, cause error) retryrule.AttemptInfo {
	info := retryrule.AttemptInfo{
		Method:      method,
		Cause:       cause,
		Unprocessed: isUnprocessed(cause),
	}
	if resp != nil {
		info.StatusCode = resp.StatusCode
		info.Headers = resp.Header
		info.Trailers = resp.Trailer
	}
	return info
}
