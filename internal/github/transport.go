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

package github

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/config"
	"github.com/sirseerhq/retrycore/internal/delegate"
	relaierrors "github.com/sirseerhq/retrycore/internal/errors"
	"github.com/sirseerhq/retrycore/internal/giterror"
	"github.com/sirseerhq/retrycore/internal/ratelimit"
	"github.com/sirseerhq/retrycore/internal/retrydecision"
	"github.com/sirseerhq/retrycore/internal/retrydriver"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/sirseerhq/retrycore/internal/retryrule"
	"github.com/sirseerhq/retrycore/pkg/version"
)

// StateSaver provides an interface for saving state during rate limit waits.
type StateSaver interface {
	Save() error
}

// rateLimitTransport adds rate limit detection and handling to HTTP requests.
// It wraps the auth transport and checks responses for rate limit headers.
type rateLimitTransport struct {
	base       http.RoundTripper
	detector   *ratelimit.Detector
	waiter     *ratelimit.Waiter
	config     *config.RateLimitConfig
	stateSaver StateSaver
}

// newRateLimitTransport creates a new transport with rate limit handling.
func newRateLimitTransport(token string, cfg *config.RateLimitConfig, stateSaver StateSaver) http.RoundTripper {
	authTransport := &authTransport{
		token: token,
		base:  http.DefaultTransport,
	}

	return &rateLimitTransport{
		base:       authTransport,
		detector:   ratelimit.NewDetector(),
		waiter:     ratelimit.NewWaiter(cfg.ShowProgress),
		config:     cfg,
		stateSaver: stateSaver,
	}
}

// RoundTrip implements http.RoundTripper with rate limit handling.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Add standard headers
	req.Header.Set("User-Agent", fmt.Sprintf("sirseer-relay/%s", version.Version))

	// Execute the request
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Check for rate limiting
	if t.detector.IsRateLimited(resp) {
		info := t.detector.Detect(resp)

		if !t.config.AutoWait {
			// Return rate limit error without waiting
			return resp, fmt.Errorf("rate limit exceeded, reset at %s: %w",
				info.Reset.Format("3:04 PM"), relaierrors.ErrRateLimit)
		}

		// Save state before waiting
		if t.stateSaver != nil {
			// Save state before waiting - best effort
			_ = t.stateSaver.Save()
		}

		// Wait for rate limit to reset
		ctx := req.Context()
		if err := t.waiter.Wait(ctx, info); err != nil {
			return resp, fmt.Errorf("rate limit wait canceled: %w", err)
		}

		// Retry the request after waiting
		return t.RoundTrip(req)
	}

	return resp, nil
}

// retryTransport adds exponential backoff retry logic for transient
// failures, built on internal/retrydriver so the same attempt-cap,
// backoff-jitter, and Retry-After handling the typed GraphQL retry path
// uses also governs this raw HTTP transport.
type retryTransport struct {
	base   http.RoundTripper
	driver *retrydriver.Driver
}

// newRetryTransport creates a new transport with retry logic.
func newRetryTransport(base http.RoundTripper) http.RoundTripper {
	rule, err := buildTransportRetryRule()
	if err != nil {
		// buildTransportRetryRule uses fixed backoff parameters; if it
		// fails anyway, degrade to a single attempt rather than panicking.
		rule = retryrule.RuleFunc(noRetryRule)
	}

	cfg := &retrydriver.RetryConfig{
		Rule:             rule,
		MaxTotalAttempts: 5,
		UseRetryAfter:    true,
	}

	return &retryTransport{
		base:   base,
		driver: retrydriver.New(delegate.HTTP(base), cfg, retrylog.Nop()),
	}
}

func noRetryRule(_ context.Context, _ retryrule.AttemptInfo) (retrydecision.Decision, error) {
	return retrydecision.NoRetry(), nil
}

// buildTransportRetryRule retries on the gateway status codes GitHub
// returns for transient upstream failures, falling through to
// giterror-classified rate-limit and network errors when no response was
// received at all.
func buildTransportRetryRule() (retryrule.Rule, error) {
	b, err := backoff.Exponential(1000, 30000, 2.0)
	if err != nil {
		return nil, err
	}
	jittered, err := backoff.WithJitter(b, -0.1, 0.1, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}

	statusRule, err := retryrule.NewBuilder().
		OnStatusPredicate(isRetryableStatusCode).
		ThenBackoff(jittered)
	if err != nil {
		return nil, err
	}

	transientRule, err := retryrule.NewGitHubTransientRule(giterror.NewInspector(), jittered)
	if err != nil {
		return nil, err
	}

	return retryrule.OrElse(statusRule, transientRule), nil
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	driverReq := delegate.FromHTTPRequest(req)
	resp, err := t.driver.Execute(req.Context(), driverReq)
	if err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", err)
	}
	return delegate.ToHTTPResponse(req, resp), nil
}

// isRetryableStatusCode checks if an HTTP status code should trigger a retry.
func isRetryableStatusCode(code int) bool {
	switch code {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

