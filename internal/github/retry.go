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
	"time"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/giterror"
	"github.com/sirseerhq/retrycore/internal/retrydecision"
	"github.com/sirseerhq/retrycore/internal/retrydriver"
	"github.com/sirseerhq/retrycore/internal/retrylimiter"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/sirseerhq/retrycore/internal/retryrule"
	"github.com/sirseerhq/retrycore/internal/retryscheduler"
)

// RetryConfig configures the retry behavior for API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// RetryLimiter caps how many concurrent retries may be in flight; nil
	// means unlimited.
	RetryLimiter retrylimiter.Limiter
	// Log receives structured attempt events; the zero value discards them.
	Log retrylog.Log
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Log:               retrylog.Nop(),
	}
}

// RetryClient wraps a GitHub client, routing every call through a
// retryrule.Rule built from giterror.Inspector's classification and driven
// by internal/retryscheduler's cooperative timer, so the same overtake and
// clean-shutdown semantics the HTTP driver uses also govern these typed
// GraphQL calls.
type RetryClient struct {
	client Client
	rule   retryrule.Rule
	max    uint32
	engine retryEngine
}

type retryEngine struct {
	limiter retrylimiter.Limiter
	log     retrylog.Log
	loops   map[string]retryscheduler.EventLoop
}

// NewRetryClient creates a new RetryClient with the given configuration
func NewRetryClient(client Client, config *RetryConfig) Client {
	if config == nil {
		config = DefaultRetryConfig()
	}

	rule, err := buildTransientRule(config)
	if err != nil {
		// A build failure here means the caller passed something like a
		// negative InitialBackoff. Degrade to never retrying rather than
		// propagating a constructor error or panicking.
		rule = retryrule.RuleFunc(func(context.Context, retryrule.AttemptInfo) (retrydecision.Decision, error) {
			return retrydecision.NoRetry(), nil
		})
	}

	return &RetryClient{
		client: client,
		rule:   rule,
		max:    uint32(config.MaxRetries) + 1,
		engine: retryEngine{
			limiter: config.RetryLimiter,
			log:     config.Log,
			loops:   make(map[string]retryscheduler.EventLoop),
		},
	}
}

// buildTransientRule adapts config's exponential-backoff parameters into a
// backoff.Backoff and pairs it with the giterror-classified transient rule.
func buildTransientRule(config *RetryConfig) (retryrule.Rule, error) {
	b, err := backoff.Exponential(config.InitialBackoff.Milliseconds(), config.MaxBackoff.Milliseconds(), config.BackoffMultiplier)
	if err != nil {
		return nil, err
	}
	jittered, err := backoff.WithJitter(b, -0.1, 0.1, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}
	return retryrule.NewGitHubTransientRule(giterror.NewInspector(), jittered)
}

func (e *retryEngine) loopFor(endpoint string) retryscheduler.EventLoop {
	if loop, ok := e.loops[endpoint]; ok {
		return loop
	}
	loop := retryscheduler.NewRealEventLoop()
	e.loops[endpoint] = loop
	return loop
}

// call runs fn to completion, retrying per rule/max until it succeeds, the
// rule says stop, or the attempt cap is reached.
func call[T any](ctx context.Context, r *RetryClient, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	loop := r.engine.loopFor(endpoint)
	sched := retryscheduler.New(loop, time.Time{}, false)
	defer sched.Close()

	var attemptNo uint32 = 1
	seqStart := loop.Now()

	for {
		start := loop.Now()
		r.engine.log.AttemptStarted(endpoint, attemptNo, start)
		result, err := fn(ctx)
		elapsed := loop.Now().Sub(start)
		r.engine.log.AttemptCompleted(endpoint, attemptNo, 0, err, nil, nil, elapsed)

		if err == nil {
			r.engine.log.SequenceSucceeded(endpoint, attemptNo, loop.Now().Sub(seqStart))
			return result, nil
		}

		decision, ruleErr := r.rule.ShouldRetry(ctx, retryrule.AttemptInfo{Cause: err})
		if ruleErr != nil {
			r.engine.log.RuleDecision(endpoint, attemptNo, "error:"+ruleErr.Error(), -1, false)
		}
		if decision.Kind != retrydecision.KindRetry || attemptNo >= r.max || ctx.Err() != nil {
			r.engine.log.SequenceGaveUp(endpoint, attemptNo, err, loop.Now().Sub(seqStart))
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, fmt.Errorf("failed after %d attempts: %w", attemptNo, err)
		}

		delayMs := decision.EffectiveBackoff().NextDelayMillis(attemptNo)
		if delayMs < 0 {
			r.engine.log.SequenceGaveUp(endpoint, attemptNo, err, loop.Now().Sub(seqStart))
			return zero, err
		}

		if r.engine.limiter != nil && !r.engine.limiter.ShouldRetry(ctx) {
			return zero, retrydriver.ErrRetryLimited
		}
		if r.engine.limiter != nil {
			r.engine.limiter.HandleDecision(ctx, decision)
		}

		r.engine.log.RuleDecision(endpoint, attemptNo, "retry", delayMs, false)

		fired := make(chan struct{})
		ok, schedErr := sched.TrySchedule(retryscheduler.Task{
			Run: func() error {
				close(fired)
				return nil
			},
		}, delayMs)
		if schedErr != nil || !ok {
			return zero, err
		}

		select {
		case <-fired:
		case <-ctx.Done():
			sched.Close()
			return zero, ctx.Err()
		}

		attemptNo++
	}
}

// FetchPullRequests implements the Client interface with retry logic
func (r *RetryClient) FetchPullRequests(ctx context.Context, owner, repo string, opts FetchOptions) (*PullRequestPage, error) {
	return call(ctx, r, "FetchPullRequests:"+owner+"/"+repo, func(ctx context.Context) (*PullRequestPage, error) {
		return r.client.FetchPullRequests(ctx, owner, repo, opts)
	})
}

// FetchPullRequestsSearch implements the Client interface with retry logic
func (r *RetryClient) FetchPullRequestsSearch(ctx context.Context, owner, repo string, opts FetchOptions) (*PullRequestPage, error) {
	return call(ctx, r, "FetchPullRequestsSearch:"+owner+"/"+repo, func(ctx context.Context) (*PullRequestPage, error) {
		return r.client.FetchPullRequestsSearch(ctx, owner, repo, opts)
	})
}

// GetRepositoryInfo implements the Client interface with retry logic
func (r *RetryClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	return call(ctx, r, "GetRepositoryInfo:"+owner+"/"+repo, func(ctx context.Context) (*RepositoryInfo, error) {
		return r.client.GetRepositoryInfo(ctx, owner, repo)
	})
}
