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
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sirseerhq/retrycore/internal/retrydecision"
	"github.com/sirseerhq/retrycore/internal/retryscheduler"
)

// hedgeOutcome is one attempt's result as it arrives on the results
// channel of executeHedged.
type hedgeOutcome struct {
	attemptNo uint32
	resp      *Response
	err       error
	decision  retrydecision.Decision
}

// executeHedged implements spec.md §4.7: attempt 1 starts immediately;
// further attempts launch on a hedging timer (or sooner, via the
// scheduler's overtake semantics, whenever an attempt's own decision says
// retry); the first NoRetry outcome wins and cancels every sibling.
func (d *Driver) executeHedged(ctx context.Context, req *Request) (*Response, error) {
	cfg := d.cfg
	endpoint := req.URL
	loop := d.loops.get(endpoint)
	recorder := cfg.recorder()
	maxAttempts := d.maxAttempts()

	seqStart := loop.Now()
	hasDeadline := cfg.ResponseTimeoutPerAttempt > 0 && cfg.TimeoutMode == TimeoutFromStart
	var deadline time.Time
	if hasDeadline {
		deadline = seqStart.Add(cfg.ResponseTimeoutPerAttempt)
	}

	sched := retryscheduler.New(loop, deadline, hasDeadline)
	defer sched.Close()

	groupCtx, cancelGroup := context.WithCancel(ctx)
	defer cancelGroup()

	results := make(chan hedgeOutcome, maxAttempts)

	var mu sync.Mutex
	cancels := make(map[uint32]context.CancelFunc)
	launched := uint32(0)

	launch := func(attemptNo uint32) {
		mu.Lock()
		if launched >= maxAttempts {
			mu.Unlock()
			return
		}
		launched++
		attemptCtx, cancel := d.attemptContext(groupCtx, loop, deadline, hasDeadline)
		cancels[attemptNo] = cancel
		mu.Unlock()

		current := req.clone()
		if attemptNo > 1 {
			current.Header.Set(RetryCountHeader, strconv.Itoa(int(attemptNo-1)))
		}

		go func() {
			defer cancel()
			start := loop.Now()
			recorder.AttemptStarted(endpoint)
			d.log.AttemptStarted(endpoint, attemptNo, start)

			resp, err := d.delegate(attemptCtx, current)
			elapsed := loop.Now().Sub(start)
			if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
				// The outer caller's context is still live, so this
				// attempt's own context was cancelled because a sibling
				// won (or this one lost the race): report it as such.
				err = ErrResponseCancelled
			}

			headers, trailers, statusCode := responseParts(resp)
			recorder.AttemptCompleted(endpoint, statusCode, err == nil, elapsed)
			d.log.AttemptCompleted(endpoint, attemptNo, statusCode, err, headers, trailers, elapsed)

			info := buildAttemptInfo(current.Method, resp, err)
			if needsContent(cfg.Rule) && resp != nil && resp.Body != nil {
				content, fresh, dupErr := cfg.duplicator().Duplicate(resp.Body, cfg.maxContentLength())
				if dupErr == nil {
					info.Content = content
					resp.Body = io.NopCloser(fresh)
				}
			}

			decision, ruleErr := evaluateRule(groupCtx, cfg.Rule, info)
			if ruleErr != nil {
				d.log.RuleDecision(endpoint, attemptNo, "error:"+ruleErr.Error(), -1, false)
			}

			select {
			case results <- hedgeOutcome{attemptNo: attemptNo, resp: resp, err: err, decision: decision}:
			case <-groupCtx.Done():
			}
		}()
	}

	scheduleNext := func(fromAttempt uint32) {
		if fromAttempt+1 > maxAttempts || cfg.HedgingBackoff == nil {
			return
		}
		delayMs := cfg.HedgingBackoff.NextDelayMillis(fromAttempt)
		if delayMs < 0 {
			return
		}
		next := fromAttempt + 1
		_, _ = sched.TrySchedule(retryscheduler.Task{
			Run: func() error {
				d.log.HedgeLaunched(endpoint, next, time.Duration(delayMs)*time.Millisecond)
				launch(next)
				return nil
			},
		}, delayMs)
	}

	launch(1)
	scheduleNext(1)

	var winner *hedgeOutcome
	received := uint32(0)
	var lastOutcome hedgeOutcome
	haveOutcome := false

collect:
	for {
		select {
		case out := <-results:
			received++
			if out.decision.Kind == retrydecision.KindNoRetry {
				w := out
				winner = &w
				break collect
			}
			lastOutcome = out
			haveOutcome = true
			if cfg.RetryLimiter != nil {
				cfg.RetryLimiter.HandleDecision(groupCtx, out.decision)
			}
			scheduleNext(out.attemptNo)
			if received >= launched && launched >= maxAttempts {
				break collect
			}
		case <-ctx.Done():
			break collect
		case <-sched.WhenClosed():
			break collect
		}
	}

	cancelGroup()
	mu.Lock()
	cancelled := 0
	for no, cancel := range cancels {
		if winner == nil || no != winner.attemptNo {
			cancel()
			cancelled++
		}
	}
	mu.Unlock()

	total := loop.Now().Sub(seqStart)
	if winner != nil {
		d.log.HedgeWon(endpoint, winner.attemptNo, cancelled)
		d.log.SequenceSucceeded(endpoint, winner.attemptNo, total)
		recorder.SequenceCompleted(endpoint, true, int(winner.attemptNo), total)
		return winner.resp, winner.err
	}

	recorder.SequenceCompleted(endpoint, false, int(received), total)
	if haveOutcome {
		d.log.SequenceGaveUp(endpoint, lastOutcome.attemptNo, lastOutcome.err, total)
		return lastOutcome.resp, lastOutcome.err
	}
	d.log.SequenceGaveUp(endpoint, received, ctx.Err(), total)
	return nil, ctx.Err()
}
