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
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/sirseerhq/retrycore/internal/retryscheduler"
)

// Driver coordinates one delegate's attempts against a single RetryConfig.
// A Driver is safe for concurrent use by multiple callers; each call to
// Execute runs its own logical retry sequence.
type Driver struct {
	delegate Delegate
	cfg      *RetryConfig
	log      retrylog.Log
	loops    *loopPool
}

// New returns a Driver that dispatches through delegate according to cfg.
// A zero Log (retrylog.Nop()) may be passed to discard attempt logs.
func New(delegate Delegate, cfg *RetryConfig, log retrylog.Log) *Driver {
	return &Driver{delegate: delegate, cfg: cfg, log: log, loops: newLoopPool()}
}

// Execute runs one logical request to completion: a bounded sequence of
// attempts if cfg.HedgingBackoff is nil, or speculative parallel attempts
// otherwise.
func (d *Driver) Execute(ctx context.Context, req *Request) (*Response, error) {
	if d.cfg.HedgingBackoff != nil {
		return d.executeHedged(ctx, req)
	}
	return d.executeSequential(ctx, req)
}

func (d *Driver) maxAttempts() uint32 {
	if d.cfg.MaxTotalAttempts == 0 {
		return 1
	}
	return d.cfg.MaxTotalAttempts
}

// attemptContext derives the context for one attempt per the configured
// TimeoutMode. Only TimeoutFromStart produces a single deadline shared by
// every attempt in the sequence; the other three modes (and the
// CONNECTION_ACQUIRED/REQUEST_SENT variants, which this generic delegate
// signature cannot observe sub-request instants for) reset a fresh
// per-attempt timeout at submission.
func (d *Driver) attemptContext(ctx context.Context, loop retryscheduler.EventLoop, overallDeadline time.Time, hasOverallDeadline bool) (context.Context, context.CancelFunc) {
	switch {
	case hasOverallDeadline:
		remaining := overallDeadline.Sub(loop.Now())
		if remaining < 0 {
			remaining = 0
		}
		return context.WithTimeout(ctx, remaining)
	case d.cfg.ResponseTimeoutPerAttempt > 0:
		return context.WithTimeout(ctx, d.cfg.ResponseTimeoutPerAttempt)
	default:
		return context.WithCancel(ctx)
	}
}

// executeSequential implements spec.md §4.6.
func (d *Driver) executeSequential(ctx context.Context, req *Request) (*Response, error) {
	cfg := d.cfg
	endpoint := req.URL
	loop := d.loops.get(endpoint)
	recorder := cfg.recorder()

	seqStart := loop.Now()
	hasOverallDeadline := cfg.ResponseTimeoutPerAttempt > 0 && cfg.TimeoutMode == TimeoutFromStart
	var overallDeadline time.Time
	if hasOverallDeadline {
		overallDeadline = seqStart.Add(cfg.ResponseTimeoutPerAttempt)
	}

	sched := retryscheduler.New(loop, overallDeadline, hasOverallDeadline)
	defer sched.Close()

	current := req.clone()
	var attemptNo uint32 = 1
	maxAttempts := d.maxAttempts()

	var resp *Response
	var attemptErr error

	for {
		attemptCtx, cancel := d.attemptContext(ctx, loop, overallDeadline, hasOverallDeadline)
		attemptStart := loop.Now()
		recorder.AttemptStarted(endpoint)
		d.log.AttemptStarted(endpoint, attemptNo, attemptStart)

		resp, attemptErr = d.delegate(attemptCtx, current)
		cancel()
		elapsed := loop.Now().Sub(attemptStart)

		headers, trailers, statusCode := responseParts(resp)
		recorder.AttemptCompleted(endpoint, statusCode, attemptErr == nil, elapsed)
		d.log.AttemptCompleted(endpoint, attemptNo, statusCode, attemptErr, headers, trailers, elapsed)

		info := buildAttemptInfo(current.Method, resp, attemptErr)
		if needsContent(cfg.Rule) && resp != nil && resp.Body != nil {
			content, fresh, dupErr := cfg.duplicator().Duplicate(resp.Body, cfg.maxContentLength())
			if dupErr == nil {
				info.Content = content
				resp.Body = io.NopCloser(fresh)
			}
		}

		decision, ruleErr := evaluateRule(ctx, cfg.Rule, info)
		if ruleErr != nil {
			d.log.RuleDecision(endpoint, attemptNo, "error:"+ruleErr.Error(), -1, false)
		}

		if decision.Kind == retrydecision.KindNoRetry || attemptNo >= maxAttempts {
			succeeded := attemptErr == nil && decision.Kind == retrydecision.KindNoRetry
			recorder.SequenceCompleted(endpoint, succeeded, int(attemptNo), loop.Now().Sub(seqStart))
			if succeeded {
				d.log.SequenceSucceeded(endpoint, attemptNo, loop.Now().Sub(seqStart))
			} else {
				d.log.SequenceGaveUp(endpoint, attemptNo, attemptErr, loop.Now().Sub(seqStart))
			}
			return resp, attemptErr
		}

		backoffDelayMs := decision.EffectiveBackoff().NextDelayMillis(attemptNo)
		if backoffDelayMs < 0 {
			d.log.SequenceGaveUp(endpoint, attemptNo, attemptErr, loop.Now().Sub(seqStart))
			recorder.SequenceCompleted(endpoint, false, int(attemptNo), loop.Now().Sub(seqStart))
			return resp, attemptErr
		}
		effectiveDelay := time.Duration(backoffDelayMs) * time.Millisecond
		if cfg.UseRetryAfter && headers != nil {
			if retryAfter, ok := parseRetryAfter(headers, loop.Now()); ok && retryAfter > effectiveDelay {
				effectiveDelay = retryAfter
			}
		}

		if hasOverallDeadline && loop.Now().Add(effectiveDelay).After(overallDeadline) {
			// spec.md §9 open question: beyond-deadline Retry-After/backoff
			// resolves to returning the last observed response, not an error.
			d.log.SequenceGaveUp(endpoint, attemptNo, attemptErr, loop.Now().Sub(seqStart))
			recorder.SequenceCompleted(endpoint, false, int(attemptNo), loop.Now().Sub(seqStart))
			return resp, attemptErr
		}

		if cfg.RetryLimiter != nil && !cfg.RetryLimiter.ShouldRetry(ctx) {
			recorder.RetryDenied(endpoint)
			recorder.SequenceCompleted(endpoint, false, int(attemptNo), loop.Now().Sub(seqStart))
			return resp, ErrRetryLimited
		}
		if cfg.RetryLimiter != nil {
			cfg.RetryLimiter.HandleDecision(ctx, decision)
		}

		recorder.RetryScheduled(endpoint, effectiveDelay)
		d.log.RuleDecision(endpoint, attemptNo, "retry", backoffDelayMs, false)

		fired := make(chan struct{})
		ok, schedErr := sched.TrySchedule(retryscheduler.Task{
			Run: func() error {
				close(fired)
				return nil
			},
		}, effectiveDelay.Milliseconds())
		if schedErr != nil || !ok {
			recorder.SequenceCompleted(endpoint, false, int(attemptNo), loop.Now().Sub(seqStart))
			return resp, attemptErr
		}

		select {
		case <-fired:
		case <-ctx.Done():
			sched.Close()
			recorder.SequenceCompleted(endpoint, false, int(attemptNo), loop.Now().Sub(seqStart))
			return resp, ctx.Err()
		}

		attemptNo++
		current = req.clone()
		current.Header.Set(RetryCountHeader, strconv.Itoa(int(attemptNo-1)))
	}
}

func responseParts(resp *Response) (headers, trailers http.Header, statusCode int) {
	if resp == nil {
		return nil, nil, 0
	}
	return resp.Header, resp.Trailer, resp.StatusCode
}
