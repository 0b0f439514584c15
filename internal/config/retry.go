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

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/retrydriver"
	"github.com/sirseerhq/retrycore/internal/retrylimiter"
	"github.com/sirseerhq/retrycore/internal/retryrule"
)

// RuleFactory builds the retry rule a RetryConfig should use, given the
// backoff the Retry section's backoff_spec parsed to. Callers typically
// close over a Builder chain ending in ThenBackoff(base).
type RuleFactory func(base backoff.Backoff) (retryrule.Rule, error)

// BuildRetryConfig translates the Retry section of c into a
// *retrydriver.RetryConfig, parsing backoff_spec and handing it to
// ruleFor to build the rule the driver consults. It is the bridge between
// the YAML configuration surface and the retry core: callers that want a
// config-driven retrydriver.RetryConfigMapping build one RetryConfig per
// key this way and hand it to retrydriver.NewRetryConfigMapping.
func (c *Config) BuildRetryConfig(ruleFor RuleFactory) (*retrydriver.RetryConfig, error) {
	rc := c.Retry

	base, err := backoff.ParseSpec(rc.BackoffSpec)
	if err != nil {
		return nil, fmt.Errorf("retry.backoff_spec: %w", err)
	}
	rule, err := ruleFor(base)
	if err != nil {
		return nil, fmt.Errorf("retry.rule: %w", err)
	}

	cfg := &retrydriver.RetryConfig{
		Rule:                      rule,
		MaxTotalAttempts:          rc.MaxAttempts,
		ResponseTimeoutPerAttempt: time.Duration(rc.ResponseTimeoutMillis) * time.Millisecond,
		UseRetryAfter:             rc.UseRetryAfter,
		MaxContentLength:          rc.MaxContentLength,
	}
	if cfg.MaxTotalAttempts == 0 {
		cfg.MaxTotalAttempts = 1
	}

	switch rc.TimeoutMode {
	case "", "from_submission":
		cfg.TimeoutMode = retrydriver.TimeoutFromSubmission
	case "from_start":
		cfg.TimeoutMode = retrydriver.TimeoutFromStart
	default:
		return nil, fmt.Errorf("retry.timeout_mode: unrecognized value %q", rc.TimeoutMode)
	}

	if rc.HedgingBackoffSpec != "" {
		hedging, err := backoff.ParseSpec(rc.HedgingBackoffSpec)
		if err != nil {
			return nil, fmt.Errorf("retry.hedging_backoff_spec: %w", err)
		}
		cfg.HedgingBackoff = hedging
	}

	limiter, err := rc.Limiter.build()
	if err != nil {
		return nil, fmt.Errorf("retry.limiter: %w", err)
	}
	cfg.RetryLimiter = limiter

	return cfg, nil
}

// build constructs the retrylimiter.Limiter named by lc.Kind, or nil if
// limiting is disabled.
func (lc RetryLimiterConfig) build() (retrylimiter.Limiter, error) {
	switch lc.Kind {
	case "":
		return nil, nil
	case "concurrency":
		if lc.ConcurrencyLimit <= 0 {
			return nil, fmt.Errorf("concurrency_limit must be positive for kind=concurrency")
		}
		return retrylimiter.NewConcurrencyLimiter(lc.ConcurrencyLimit), nil
	case "token":
		if lc.MaxTokens <= 0 || lc.TokensPerRetry <= 0 {
			return nil, fmt.Errorf("max_tokens and tokens_per_retry must be positive for kind=token")
		}
		return retrylimiter.NewTokenBucketLimiter(lc.MaxTokens, lc.TokensPerRetry), nil
	default:
		return nil, fmt.Errorf("unrecognized kind %q", lc.Kind)
	}
}

// RetryConfigMappingFor builds a retrydriver.RetryConfigMapping that hands
// out one *retrydriver.RetryConfig per distinct key produced by keyFn, each
// built from this Config's Retry section and ruleFor. Every repository (or
// other request-derived key) gets its own cached config rather than
// re-parsing the backoff spec on every request.
func (c *Config) RetryConfigMappingFor(keyFn func(req *retrydriver.Request) any, ruleFor RuleFactory) *retrydriver.RetryConfigMapping {
	return retrydriver.NewRetryConfigMapping(func(_ context.Context, req *retrydriver.Request) (any, *retrydriver.RetryConfig) {
		key := keyFn(req)
		cfg, err := c.BuildRetryConfig(ruleFor)
		if err != nil {
			// BuildRetryConfig only fails on a malformed Retry section,
			// which Validate is expected to have already caught at load
			// time; KeyFunc has no error return, so fall back to a
			// single-attempt config rather than panicking on a live
			// request.
			cfg = &retrydriver.RetryConfig{MaxTotalAttempts: 1}
		}
		return key, cfg
	})
}
