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

package retrylimiter

import (
	"context"
	"math"
	"sync"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
)

// TokenBucketLimiter starts with maxTokens tokens and gates retries on
// tokens >= tokensPerRetry, applying each Decision's Permit hint to
// consume or refund tokens (spec.md §4.4), clamped to [0, maxTokens].
type TokenBucketLimiter struct {
	mu             sync.Mutex
	maxTokens      float64
	tokensPerRetry float64
	tokens         float64
}

// NewTokenBucketLimiter returns a token-bucket limiter, named for the
// grpc-style throttle of spec.md §8 scenario 10.
func NewTokenBucketLimiter(maxTokens, tokensPerRetry float64) *TokenBucketLimiter {
	if tokensPerRetry <= 0 {
		tokensPerRetry = 1
	}
	return &TokenBucketLimiter{
		maxTokens:      maxTokens,
		tokensPerRetry: tokensPerRetry,
		tokens:         maxTokens,
	}
}

// ShouldRetry implements Limiter.
func (t *TokenBucketLimiter) ShouldRetry(context.Context) bool {
	return safeShouldRetry(func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.tokens >= t.tokensPerRetry
	})
}

// HandleDecision implements Limiter: a positive Permit consumes
// ceil(permit*tokensPerRetry) tokens, negative refunds, zero is ignored.
func (t *TokenBucketLimiter) HandleDecision(_ context.Context, decision retrydecision.Decision) {
	safeHandleDecision(func() {
		if !decision.HasPermit() || decision.Permit == 0 {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()

		delta := math.Ceil(math.Abs(decision.Permit) * t.tokensPerRetry)
		if decision.Permit > 0 {
			t.tokens -= delta
		} else {
			t.tokens += delta
		}
		if t.tokens < 0 {
			t.tokens = 0
		}
		if t.tokens > t.maxTokens {
			t.tokens = t.maxTokens
		}
	})
}

// Tokens reports the current token count, for tests and diagnostics.
func (t *TokenBucketLimiter) Tokens() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens
}
