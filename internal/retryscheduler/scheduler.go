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

// Package retryscheduler implements the single pending retry timer of
// spec.md §4.5: at most one scheduled task at a time, overtake semantics
// when an earlier retry supersedes a later one, a minimum-backoff floor,
// an absolute deadline, and clean, idempotent shutdown.
package retryscheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tolerance absorbs clock jitter around the deadline comparison in
// TrySchedule and the actual-fire-time bound tested in spec.md §8
// ("t <= t' <= t + SCHEDULING_TOLERANCE").
const Tolerance = 10 * time.Millisecond

// deadlineTolerance is the smaller ~5ms tolerance spec.md §4.5 step 3
// specifically names for the deadline comparison.
const deadlineTolerance = 5 * time.Millisecond

// Task is the unit of work a Scheduler can hold pending. Run executes on
// the owning EventLoop; a non-nil return value marks the scheduler closed
// exceptionally (spec.md §4.5 "Exception model"). OnFailure is invoked,
// exactly once, if this task is superseded or dropped before it runs.
type Task struct {
	Run       func() error
	OnFailure func(err error)
}

type pendingTask struct {
	runAt  time.Time
	task   Task
	handle TimerHandle
}

// Scheduler owns the single pending retry timer for one logical retry
// sequence. TrySchedule and ApplyMinimumBackoffMillis must not be called
// concurrently with each other; see enter, which rejects an overlapping
// call (TrySchedule returns ErrIllegalState, ApplyMinimumBackoffMillis
// ignores it).
type Scheduler struct {
	loop EventLoop

	mu                sync.Mutex
	current           *pendingTask
	minBackoffCeiling time.Time
	deadline          time.Time
	hasDeadline       bool
	pastFloor         bool // minimum-backoff floor already exceeds deadline
	closed            bool
	deadlineWatcher   TimerHandle

	closeOnce sync.Once
	closedCh  chan struct{}
	closedErr error

	reentrancy int32 // guards against concurrent calls from >1 goroutine
}

// New returns a Scheduler pinned to loop. If hasDeadline is true, no task
// may be scheduled to run after deadline (plus deadlineTolerance).
func New(loop EventLoop, deadline time.Time, hasDeadline bool) *Scheduler {
	s := &Scheduler{
		loop:        loop,
		deadline:    deadline,
		hasDeadline: hasDeadline,
		closedCh:    make(chan struct{}),
	}
	if hasDeadline {
		// Arrange to fail the sequence if the deadline elapses with a
		// task still pending (spec.md §4.5 WhenClosed: "...or the
		// deadline elapsed with the task still pending").
		delay := deadline.Sub(loop.Now())
		if delay < 0 {
			delay = 0
		}
		if handle, err := loop.Schedule(delay, s.onDeadlineElapsed); err == nil {
			s.deadlineWatcher = handle
		}
	}
	return s
}

func (s *Scheduler) onDeadlineElapsed() {
	s.mu.Lock()
	stillPending := s.current != nil
	alreadyClosed := s.closed
	s.mu.Unlock()
	if !alreadyClosed && stillPending {
		s.failClosed(ErrTimedOut)
	}
}

// enter guards against concurrent invocation from more than one goroutine
// at a time. It is not a true thread-affinity check (Go has no cheap way
// to assert "this is the EventLoop's goroutine"), but it does catch the
// misuse spec.md §4.5 calls out: two overlapping calls into a scheduler
// meant to be driven by one cooperative loop.
func (s *Scheduler) enter() bool {
	return atomic.CompareAndSwapInt32(&s.reentrancy, 0, 1)
}

func (s *Scheduler) exit() {
	atomic.StoreInt32(&s.reentrancy, 0)
}

// TrySchedule implements spec.md §4.5's try_schedule contract.
func (s *Scheduler) TrySchedule(task Task, delayMillis int64) (bool, error) {
	if !s.enter() {
		return false, ErrIllegalState
	}
	defer s.exit()

	now := s.loop.Now()
	target := now.Add(time.Duration(delayMillis) * time.Millisecond)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, nil
	}

	if s.pastFloor {
		s.mu.Unlock()
		return false, nil
	}

	if !s.minBackoffCeiling.IsZero() && target.Before(s.minBackoffCeiling) {
		target = s.minBackoffCeiling
		s.minBackoffCeiling = time.Time{}
	}

	if s.hasDeadline && target.After(s.deadline.Add(deadlineTolerance)) {
		s.mu.Unlock()
		return false, nil
	}

	var toSupersede *pendingTask
	if s.current != nil {
		if !s.current.runAt.After(target) {
			// current.runAt <= target: caller tried to schedule a LATER
			// (or equal) task while an earlier one is already pending.
			s.mu.Unlock()
			return false, ErrIllegalState
		}
		toSupersede = s.current
		s.current = nil
	}
	s.mu.Unlock()

	if toSupersede != nil {
		toSupersede.handle.Cancel()
		if toSupersede.task.OnFailure != nil {
			toSupersede.task.OnFailure(ErrSuperseded)
		}
	}

	handle, err := s.loop.Schedule(target.Sub(now), func() { s.fire(task) })
	if err != nil {
		s.failClosed(ErrRejected)
		return false, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		handle.Cancel()
		return false, nil
	}
	s.current = &pendingTask{runAt: target, task: task, handle: handle}
	s.mu.Unlock()
	return true, nil
}

// fire runs on the EventLoop when a scheduled task's timer elapses.
func (s *Scheduler) fire(task Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()

	if err := s.runCatchingPanic(task.Run); err != nil {
		s.failClosed(err)
		return
	}
}

func (s *Scheduler) runCatchingPanic(run func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return run()
}

// panicError adapts a recovered panic value to the error interface so
// runCatchingPanic can report it through the same failClosed path as a
// normal returned error (spec.md §4.5 "Exception model": any exception
// thrown inside the runnable is caught).
type panicError struct{ value any }

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return "retryscheduler: runnable panicked: " + err.Error()
	}
	return "retryscheduler: runnable panicked"
}

// ApplyMinimumBackoffMillis implements spec.md §4.5's
// apply_minimum_backoff_millis: raises the floor to
// max(current_floor, now+ms). If the floor would exceed the deadline, the
// scheduler enters a state where further TrySchedule calls return false
// without yet being closed.
func (s *Scheduler) ApplyMinimumBackoffMillis(ms int64) {
	if !s.enter() {
		return
	}
	defer s.exit()

	now := s.loop.Now()
	floor := now.Add(time.Duration(ms) * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if floor.After(s.minBackoffCeiling) {
		s.minBackoffCeiling = floor
	}
	if s.hasDeadline && s.minBackoffCeiling.After(s.deadline.Add(deadlineTolerance)) {
		s.pastFloor = true
	}
}

// Close idempotently cancels the pending timer (if any) without invoking
// its OnFailure, marks the scheduler closed, and completes WhenClosed
// successfully if it has not already completed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	current := s.current
	s.current = nil
	watcher := s.deadlineWatcher
	s.deadlineWatcher = nil
	s.mu.Unlock()

	if current != nil {
		current.handle.Cancel()
	}
	if watcher != nil {
		watcher.Cancel()
	}
	s.closeOnce.Do(func() { close(s.closedCh) })
}

// failClosed closes the scheduler exceptionally with cause, unless it is
// already closed.
func (s *Scheduler) failClosed(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	current := s.current
	s.current = nil
	watcher := s.deadlineWatcher
	s.deadlineWatcher = nil
	s.closedErr = cause
	s.mu.Unlock()

	if current != nil {
		current.handle.Cancel()
	}
	if watcher != nil {
		watcher.Cancel()
	}
	s.closeOnce.Do(func() { close(s.closedCh) })
}

// WhenClosed returns a channel that is closed once the scheduler has shut
// down, cleanly or exceptionally. Err reports the cause after that
// channel closes: nil for a clean Close, otherwise ErrRejected,
// ErrTimedOut, or the error the runnable returned/panicked with.
func (s *Scheduler) WhenClosed() <-chan struct{} {
	return s.closedCh
}

// Err reports why the scheduler closed. Only meaningful after WhenClosed()
// has fired; returns nil for a clean shutdown.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedErr
}

// HasPendingTask reports whether a task is currently scheduled, for tests
// asserting the "at most one pending task" invariant.
func (s *Scheduler) HasPendingTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// PastMinimumBackoffFloor reports whether ApplyMinimumBackoffMillis has
// pushed the floor beyond the deadline, per spec.md §4.5.
func (s *Scheduler) PastMinimumBackoffFloor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pastFloor
}
