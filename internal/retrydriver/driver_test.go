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
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/sirseerhq/retrycore/internal/retrylimiter"
	"github.com/sirseerhq/retrycore/internal/retryrule"
)

func newReq(url string) *Request {
	return &Request{Method: http.MethodGet, URL: url, Header: make(http.Header)}
}

// buildRetryOn5xxRule retries on any 5xx status with a fixed 5ms backoff.
func buildRetryOn5xxRule() (retryrule.Rule, error) {
	return retryrule.NewBuilder().OnStatusClass(500).ThenBackoff(backoff.MustFixed(5))
}

func TestExecuteSequential_RetriesUntilSuccess(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}

	var attempts int32
	var seenRetryCountHeaders []string
	var mu sync.Mutex

	delegate := Delegate(func(_ context.Context, req *Request) (*Response, error) {
		n := atomic.AddInt32(&attempts, 1)
		mu.Lock()
		seenRetryCountHeaders = append(seenRetryCountHeaders, req.Header.Get(RetryCountHeader))
		mu.Unlock()
		if n < 3 {
			return &Response{StatusCode: 503, Header: make(http.Header)}, nil
		}
		return &Response{StatusCode: 200, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{Rule: rule, MaxTotalAttempts: 5}
	d := New(delegate, cfg, retrylog.Nop())

	resp, err := d.Execute(context.Background(), newReq("https://example.test/a"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("resp.StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}

	want := []string{"", "1", "2"}
	mu.Lock()
	got := append([]string(nil), seenRetryCountHeaders...)
	mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("retry-count headers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("retry-count headers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecuteSequential_StopsAtMaxAttempts(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}

	var attempts int32
	delegate := Delegate(func(context.Context, *Request) (*Response, error) {
		atomic.AddInt32(&attempts, 1)
		return &Response{StatusCode: 503, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{Rule: rule, MaxTotalAttempts: 3}
	d := New(delegate, cfg, retrylog.Nop())

	resp, err := d.Execute(context.Background(), newReq("https://example.test/b"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 503 {
		t.Fatalf("resp.StatusCode = %d, want 503 (last observed attempt)", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3 (capped by MaxTotalAttempts)", got)
	}
}

func TestExecuteSequential_NoRetryOnFirstSuccess(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}

	var attempts int32
	delegate := Delegate(func(context.Context, *Request) (*Response, error) {
		atomic.AddInt32(&attempts, 1)
		return &Response{StatusCode: 200, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{Rule: rule, MaxTotalAttempts: 5}
	d := New(delegate, cfg, retrylog.Nop())

	if _, err := d.Execute(context.Background(), newReq("https://example.test/c")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestExecuteSequential_RetryLimiterDenies(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}

	denyAll := retrylimiter.NewConcurrencyLimiter(1)
	// Exhaust the single permit so every ShouldRetry call denies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	denyAll.ShouldRetry(ctx)

	var attempts int32
	delegate := Delegate(func(context.Context, *Request) (*Response, error) {
		atomic.AddInt32(&attempts, 1)
		return &Response{StatusCode: 503, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{Rule: rule, MaxTotalAttempts: 5, RetryLimiter: denyAll}
	d := New(delegate, cfg, retrylog.Nop())

	_, err = d.Execute(context.Background(), newReq("https://example.test/d"))
	if !errors.Is(err, ErrRetryLimited) {
		t.Fatalf("Execute() error = %v, want ErrRetryLimited", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry was permitted)", got)
	}
}

func TestExecuteSequential_OuterCancellationStopsRetries(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}

	var attempts int32
	delegate := Delegate(func(context.Context, *Request) (*Response, error) {
		atomic.AddInt32(&attempts, 1)
		return &Response{StatusCode: 503, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{Rule: rule, MaxTotalAttempts: 100}
	d := New(delegate, cfg, retrylog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = d.Execute(ctx, newReq("https://example.test/e"))
	if err == nil {
		t.Fatal("Execute() error = nil, want a cancellation/timeout error")
	}
	if got := atomic.LoadInt32(&attempts); got < 1 || got >= 100 {
		t.Fatalf("attempts = %d, want a small number well below the 100 cap", got)
	}
}

// TestExecuteHedged_FastestNonRetriableWins mirrors spec.md §8 scenario 9's
// shape (without the exact millisecond literals, which depend on OS
// scheduling jitter): three logical endpoints race, the one that responds
// successfully first should win and the others should observe
// ErrResponseCancelled.
func TestExecuteHedged_FastestNonRetriableWins(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("building rule: %v", err)
	}

	var callOrder int32
	delegate := Delegate(func(ctx context.Context, req *Request) (*Response, error) {
		n := atomic.AddInt32(&callOrder, 1)
		if n == 2 {
			// The second attempt to start answers fastest and wins.
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &Response{StatusCode: 200, Header: make(http.Header)}, nil
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &Response{StatusCode: 200, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{
		Rule:             rule,
		MaxTotalAttempts: 3,
		HedgingBackoff:   backoff.MustFixed(15),
	}
	d := New(delegate, cfg, retrylog.Nop())

	resp, err := d.Execute(context.Background(), newReq("https://example.test/hedge"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("resp.StatusCode = %d, want 200", resp.StatusCode)
	}
}

// hedgeInvocation is one attempt's observable dispatch, recorded
// synchronously at invocation time (before any simulated latency) so the
// set of invocations is race-free to inspect once Execute returns.
type hedgeInvocation struct {
	Attempt          uint32
	RetryCountHeader string
}

func TestExecuteHedged_InvokesSiblingsWithExpectedAttemptHeaders(t *testing.T) {
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("building rule: %v", err)
	}

	var mu sync.Mutex
	var invocations []hedgeInvocation

	delegate := Delegate(func(ctx context.Context, req *Request) (*Response, error) {
		mu.Lock()
		invocations = append(invocations, hedgeInvocation{
			Attempt:          uint32(len(invocations) + 1),
			RetryCountHeader: req.Header.Get(RetryCountHeader),
		})
		mu.Unlock()

		if len(invocations) == 2 {
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &Response{StatusCode: 200, Header: make(http.Header)}, nil
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &Response{StatusCode: 200, Header: make(http.Header)}, nil
	})

	cfg := &RetryConfig{
		Rule:             rule,
		MaxTotalAttempts: 2,
		HedgingBackoff:   backoff.MustFixed(15),
	}
	d := New(delegate, cfg, retrylog.Nop())

	if _, err := d.Execute(context.Background(), newReq("https://example.test/hedge-cmp")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	mu.Lock()
	got := append([]hedgeInvocation(nil), invocations...)
	mu.Unlock()
	sort.Slice(got, func(i, j int) bool { return got[i].Attempt < got[j].Attempt })

	want := []hedgeInvocation{
		{Attempt: 1, RetryCountHeader: ""},
		{Attempt: 2, RetryCountHeader: "1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("hedge invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRetryOn5xxRule_Sanity(t *testing.T) {
	// Guards the test helper itself: a 200 must not match, a 503 must.
	rule, err := buildRetryOn5xxRule()
	if err != nil {
		t.Fatalf("buildRetryOn5xxRule() error = %v", err)
	}
	d, err := rule.ShouldRetry(context.Background(), retryrule.AttemptInfo{StatusCode: 200})
	if err != nil {
		t.Fatalf("ShouldRetry(200) error = %v", err)
	}
	if d.Kind != 0 { // KindNext
		t.Fatalf("ShouldRetry(200).Kind = %v, want Next (fall through)", d.Kind)
	}
	d, err = rule.ShouldRetry(context.Background(), retryrule.AttemptInfo{StatusCode: 503})
	if err != nil {
		t.Fatalf("ShouldRetry(503) error = %v", err)
	}
	if d.Kind == 0 {
		t.Fatal("ShouldRetry(503).Kind = Next, want Retry")
	}
}
