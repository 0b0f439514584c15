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
	"sync"
	"time"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/retrylimiter"
	"github.com/sirseerhq/retrycore/internal/retrymetrics"
	"github.com/sirseerhq/retrycore/internal/retryrule"
)

// TimeoutMode selects when a per-attempt response-timeout clock starts,
// per spec.md §4.8. It affects only the start instant, never the duration.
type TimeoutMode int

const (
	// TimeoutFromSubmission starts the clock when the attempt is
	// submitted to the delegate. This is the default.
	TimeoutFromSubmission TimeoutMode = iota
	// TimeoutFromStart starts the clock when the outer request was
	// submitted, and spans every retry of the sequence.
	TimeoutFromStart
	// TimeoutConnectionAcquired starts the clock when a connection to the
	// endpoint is acquired. Delegates that cannot report this instant
	// fall back to TimeoutFromSubmission.
	TimeoutConnectionAcquired
	// TimeoutRequestSent starts the clock after the request headers are
	// fully written. Delegates that cannot report this instant fall back
	// to TimeoutFromSubmission.
	TimeoutRequestSent
)

// RetryConfig is an immutable bag of everything one logical retry
// sequence needs: the rule it consults, how many attempts it may make,
// and its optional timeout, hedging, limiter, and content-length settings.
type RetryConfig struct {
	Rule                      retryrule.Rule
	MaxTotalAttempts          uint32
	ResponseTimeoutPerAttempt time.Duration // 0 means no per-attempt timeout
	TimeoutMode               TimeoutMode
	HedgingBackoff            backoff.Backoff // nil disables hedging
	RetryLimiter              retrylimiter.Limiter
	MaxContentLength          int64
	UseRetryAfter             bool
	BodyDuplicator            BodyDuplicator
	Recorder                  retrymetrics.Recorder
}

// duplicator returns cfg.BodyDuplicator, or DefaultBodyDuplicator{} if
// unset.
func (cfg *RetryConfig) duplicator() BodyDuplicator {
	if cfg.BodyDuplicator != nil {
		return cfg.BodyDuplicator
	}
	return DefaultBodyDuplicator{}
}

func (cfg *RetryConfig) maxContentLength() int64 {
	if cfg.MaxContentLength > 0 {
		return cfg.MaxContentLength
	}
	return defaultMaxContentLength
}

func (cfg *RetryConfig) recorder() retrymetrics.Recorder {
	if cfg.Recorder != nil {
		return cfg.Recorder
	}
	return retrymetrics.Nop
}

// KeyFunc derives a cache key and a RetryConfig from a request. Equivalent
// requests (by key equality) share the same *RetryConfig instance.
type KeyFunc func(ctx context.Context, req *Request) (key any, cfg *RetryConfig)

// RetryConfigMapping caches RetryConfig values by a user-supplied
// comparable key, per spec.md §9's design note: an unbounded concurrent
// map. Callers with an unbounded key space (e.g. one key per user ID) are
// responsible for choosing a key function that keeps the map bounded.
type RetryConfigMapping struct {
	keyFn KeyFunc

	mu    sync.RWMutex
	cache map[any]*RetryConfig
}

// NewRetryConfigMapping returns a mapping that derives keys and configs
// via keyFn, caching the result of each distinct key.
func NewRetryConfigMapping(keyFn KeyFunc) *RetryConfigMapping {
	return &RetryConfigMapping{keyFn: keyFn, cache: make(map[any]*RetryConfig)}
}

// ConfigFor returns the cached RetryConfig for req, computing and storing
// it on first use for that key.
func (m *RetryConfigMapping) ConfigFor(ctx context.Context, req *Request) *RetryConfig {
	key, cfg := m.keyFn(ctx, req)

	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return cached
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.cache[key]; ok {
		return cached
	}
	m.cache[key] = cfg
	return cfg
}
