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
	"sync"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
)

// ConcurrencyLimiter holds at most n concurrent logical retry sequences.
// ShouldRetry returns true iff a permit is available; the permit is
// released automatically when ctx is done (any terminal state).
type ConcurrencyLimiter struct {
	mu       sync.Mutex
	max      int
	inFlight int
}

// NewConcurrencyLimiter returns a limiter admitting at most n concurrent
// retry sequences.
func NewConcurrencyLimiter(n int) *ConcurrencyLimiter {
	if n < 1 {
		n = 1
	}
	return &ConcurrencyLimiter{max: n}
}

// ShouldRetry implements Limiter.
func (c *ConcurrencyLimiter) ShouldRetry(ctx context.Context) bool {
	return safeShouldRetry(func() bool {
		c.mu.Lock()
		if c.inFlight >= c.max {
			c.mu.Unlock()
			return false
		}
		c.inFlight++
		c.mu.Unlock()

		go func() {
			<-ctx.Done()
			c.mu.Lock()
			if c.inFlight > 0 {
				c.inFlight--
			}
			c.mu.Unlock()
		}()
		return true
	})
}

// HandleDecision implements Limiter; concurrency limiting has no
// permit-driven side effect (spec.md §4.4: "handle_decision is a no-op").
func (c *ConcurrencyLimiter) HandleDecision(context.Context, retrydecision.Decision) {}

// InFlight reports the current number of admitted sequences, for tests and
// diagnostics.
func (c *ConcurrencyLimiter) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
