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

package retryscheduler

import "time"

// TimerHandle cancels a scheduled runnable. Cancel is idempotent and safe
// to call even after the runnable has already fired.
type TimerHandle interface {
	Cancel()
}

// EventLoop is the single-threaded executor a Scheduler is pinned to,
// abstracted per spec.md §9 ("abstract the single-threaded executor behind
// an interface... the production implementation wraps the target
// runtime's scheduler. Tests provide a manageable one that records every
// schedule call with delays"). A Scheduler's TrySchedule and
// ApplyMinimumBackoffMillis must not overlap; see Scheduler.enter.
type EventLoop interface {
	// Schedule arranges for runnable to execute after delay on the event
	// loop, returning a handle that cancels it. If the loop has been shut
	// down, Schedule returns (nil, an error).
	Schedule(delay time.Duration, runnable func()) (TimerHandle, error)

	// Execute runs runnable on the event loop, asynchronously with
	// respect to the caller.
	Execute(runnable func())

	// Now returns the event loop's notion of the current time, so tests
	// can inject a fake clock.
	Now() time.Time
}

// realTimerHandle wraps *time.Timer.
type realTimerHandle struct{ timer *time.Timer }

func (h realTimerHandle) Cancel() { h.timer.Stop() }

// realEventLoop is the production EventLoop: a single goroutine draining a
// work channel, with timers scheduled via time.AfterFunc posting back onto
// that channel so runnables still execute on the single owning goroutine.
type realEventLoop struct {
	work   chan func()
	done   chan struct{}
	closed chan struct{}
}

// NewRealEventLoop starts a single goroutine and returns an EventLoop bound
// to it. Call Close to stop the goroutine; pending work is dropped.
func NewRealEventLoop() *realEventLoop {
	loop := &realEventLoop{
		work:   make(chan func(), 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go loop.run()
	return loop
}

func (l *realEventLoop) run() {
	defer close(l.closed)
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.done:
			return
		}
	}
}

// Close stops the event loop's goroutine. It does not cancel timers that
// have already fired and posted to the work channel before Close is
// observed.
func (l *realEventLoop) Close() {
	select {
	case <-l.done:
		// already closed
	default:
		close(l.done)
	}
	<-l.closed
}

// Schedule implements EventLoop.
func (l *realEventLoop) Schedule(delay time.Duration, runnable func()) (TimerHandle, error) {
	select {
	case <-l.done:
		return nil, ErrExecutorShutDown
	default:
	}
	timer := time.AfterFunc(delay, func() {
		select {
		case l.work <- runnable:
		case <-l.done:
		}
	})
	return realTimerHandle{timer: timer}, nil
}

// Execute implements EventLoop.
func (l *realEventLoop) Execute(runnable func()) {
	select {
	case l.work <- runnable:
	case <-l.done:
	}
}

// Now implements EventLoop.
func (l *realEventLoop) Now() time.Time { return time.Now() }
