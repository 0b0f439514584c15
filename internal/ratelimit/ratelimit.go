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

// Package ratelimit detects and waits out GitHub API rate limiting at the
// transport level. This is deliberately separate from internal/retryrule
// and internal/retrydriver: a rate limit is a known, scheduled recovery
// (the server tells us exactly when to come back), not a retry decision,
// so it is handled by rateLimitTransport before a request ever reaches the
// retry engine.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Info describes when a rate-limited caller may retry.
type Info struct {
	Reset time.Time
}

// Detector inspects HTTP responses for GitHub rate limit signals.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector { return &Detector{} }

// IsRateLimited reports whether resp indicates the request was rejected or
// throttled due to rate limiting.
func (d *Detector) IsRateLimited(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// Detect extracts the reset time from resp's headers, preferring
// Retry-After (seconds) and falling back to GitHub's X-RateLimit-Reset
// (Unix seconds). If neither is present, Reset defaults to one minute out.
func (d *Detector) Detect(resp *http.Response) Info {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		return Info{Reset: time.Now().Add(time.Duration(secs) * time.Second)}
	}
	if unix, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		return Info{Reset: time.Unix(unix, 0)}
	}
	return Info{Reset: time.Now().Add(time.Minute)}
}

// Waiter blocks until a rate limit resets, optionally printing progress.
type Waiter struct {
	showProgress bool
}

// NewWaiter returns a Waiter that prints progress to stderr when
// showProgress is true.
func NewWaiter(showProgress bool) *Waiter {
	return &Waiter{showProgress: showProgress}
}

// Wait blocks until info.Reset or ctx is cancelled, whichever comes first.
func (w *Waiter) Wait(ctx context.Context, info Info) error {
	remaining := time.Until(info.Reset)
	if remaining < 0 {
		remaining = 0
	}
	if w.showProgress {
		fmt.Fprintf(os.Stderr, "\n⚠️  Rate limit hit. Waiting %v before retry (reset at %s)...\n",
			remaining.Round(time.Second), info.Reset.Format("3:04 PM"))
	}
	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
