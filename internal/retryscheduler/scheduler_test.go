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

import (
	"errors"
	"testing"
	"time"
)

func newTestScheduler(hasDeadline bool, deadlineOffset time.Duration) (*Scheduler, *fakeEventLoop, time.Time) {
	start := time.Unix(1700000000, 0)
	loop := newFakeEventLoop(start)
	var deadline time.Time
	if hasDeadline {
		deadline = start.Add(deadlineOffset)
	}
	return New(loop, deadline, hasDeadline), loop, start
}

func TestTrySchedule_RunsOnFire(t *testing.T) {
	s, loop, _ := newTestScheduler(false, 0)
	defer s.Close()

	ran := false
	ok, err := s.TrySchedule(Task{Run: func() error { ran = true; return nil }}, 100)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}
	if !s.HasPendingTask() {
		t.Fatal("expected a pending task immediately after TrySchedule")
	}

	loop.Advance(100 * time.Millisecond)
	if !ran {
		t.Fatal("task did not run after advancing past its delay")
	}
	if s.HasPendingTask() {
		t.Fatal("no task should be pending after it has fired")
	}
}

func TestTrySchedule_AtMostOnePendingInvariant(t *testing.T) {
	s, _, _ := newTestScheduler(false, 0)
	defer s.Close()

	ok, err := s.TrySchedule(Task{Run: func() error { return nil }}, 100)
	if !ok || err != nil {
		t.Fatalf("first TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	// A second task scheduled for a LATER (or equal) time than the one
	// already pending is caller misuse, not a legitimate overtake.
	ok, err = s.TrySchedule(Task{Run: func() error { return nil }}, 200)
	if ok || !errors.Is(err, ErrIllegalState) {
		t.Fatalf("TrySchedule() with a later delay = (%v, %v), want (false, ErrIllegalState)", ok, err)
	}
}

// TestOvertake_Scenario7 mirrors the documented scenario: schedule a task
// for t+200ms, then schedule a second task for t+100ms before the first
// fires. Only the second task should run; the first's OnFailure must be
// invoked with the superseded cause.
func TestOvertake_Scenario7(t *testing.T) {
	s, loop, _ := newTestScheduler(false, 0)
	defer s.Close()

	var aRan, bRan bool
	var aFailure error

	ok, err := s.TrySchedule(Task{
		Run:       func() error { aRan = true; return nil },
		OnFailure: func(cause error) { aFailure = cause },
	}, 200)
	if !ok || err != nil {
		t.Fatalf("scheduling A = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = s.TrySchedule(Task{
		Run: func() error { bRan = true; return nil },
	}, 100)
	if !ok || err != nil {
		t.Fatalf("scheduling B = (%v, %v), want (true, nil)", ok, err)
	}

	if !errors.Is(aFailure, ErrSuperseded) {
		t.Fatalf("A's OnFailure cause = %v, want ErrSuperseded", aFailure)
	}

	loop.Advance(100 * time.Millisecond)
	if !bRan {
		t.Fatal("B should have run at t+100ms")
	}
	if aRan {
		t.Fatal("A should never run, it was superseded")
	}

	loop.Advance(100 * time.Millisecond) // would have been A's original fire time
	if aRan {
		t.Fatal("A must not run even after its original fire time elapses")
	}
}

// TestDeadlineRejection_Scenario8 mirrors the documented scenario: with a
// deadline at t+1s, a request to schedule 1005ms plus Tolerance plus 1ms
// out (beyond the deadline plus tolerance) must be rejected without
// closing the scheduler.
func TestDeadlineRejection_Scenario8(t *testing.T) {
	s, _, _ := newTestScheduler(true, time.Second)
	defer s.Close()

	ok, err := s.TrySchedule(Task{Run: func() error { return nil }}, 1005+int64(Tolerance/time.Millisecond)+1)
	if ok || err != nil {
		t.Fatalf("TrySchedule() beyond deadline = (%v, %v), want (false, nil)", ok, err)
	}

	select {
	case <-s.WhenClosed():
		t.Fatal("scheduler must remain open after a mere rejection")
	default:
	}
	if s.HasPendingTask() {
		t.Fatal("a rejected schedule must not leave a pending task")
	}
}

func TestTrySchedule_WithinDeadlineSucceeds(t *testing.T) {
	s, loop, _ := newTestScheduler(true, time.Second)
	defer s.Close()

	ok, err := s.TrySchedule(Task{Run: func() error { return nil }}, 500)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() within deadline = (%v, %v), want (true, nil)", ok, err)
	}
	loop.Advance(500 * time.Millisecond)
	if s.HasPendingTask() {
		t.Fatal("task should have fired and cleared")
	}
}

func TestApplyMinimumBackoffMillis_RaisesFloorOnce(t *testing.T) {
	s, loop, start := newTestScheduler(false, 0)
	defer s.Close()

	s.ApplyMinimumBackoffMillis(500)

	ok, err := s.TrySchedule(Task{Run: func() error { return nil }}, 100)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	fireTimes := loop.sortedFireTimes()
	if len(fireTimes) != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", len(fireTimes))
	}
	want := start.Add(500 * time.Millisecond)
	if !fireTimes[0].Equal(want) {
		t.Fatalf("fire time = %v, want %v (raised to the floor)", fireTimes[0], want)
	}

	loop.Advance(500 * time.Millisecond)

	// The floor is consumed by the schedule it raised; a later schedule at
	// a short delay should not be bumped again.
	ok, err = s.TrySchedule(Task{Run: func() error { return nil }}, 50)
	if !ok || err != nil {
		t.Fatalf("second TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}
	fireTimes = loop.sortedFireTimes()
	if len(fireTimes) != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", len(fireTimes))
	}
	wantSecond := start.Add(500 * time.Millisecond).Add(50 * time.Millisecond)
	if !fireTimes[0].Equal(wantSecond) {
		t.Fatalf("second fire time = %v, want %v (floor not reapplied)", fireTimes[0], wantSecond)
	}
}

func TestApplyMinimumBackoffMillis_PastDeadlineMarksFloor(t *testing.T) {
	s, _, _ := newTestScheduler(true, 100*time.Millisecond)
	defer s.Close()

	s.ApplyMinimumBackoffMillis(1000)
	if !s.PastMinimumBackoffFloor() {
		t.Fatal("raising the floor beyond the deadline should mark PastMinimumBackoffFloor")
	}

	ok, _ := s.TrySchedule(Task{Run: func() error { return nil }}, 10)
	if ok {
		t.Fatal("TrySchedule should fail once the floor exceeds the deadline")
	}
}

func TestClose_IsIdempotentAndCancelsPending(t *testing.T) {
	s, loop, _ := newTestScheduler(false, 0)

	ran := false
	ok, err := s.TrySchedule(Task{Run: func() error { ran = true; return nil }}, 100)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	s.Close()
	s.Close() // must not panic or double-close closedCh

	select {
	case <-s.WhenClosed():
	default:
		t.Fatal("WhenClosed() should have fired after Close()")
	}
	if s.Err() != nil {
		t.Fatalf("Err() = %v, want nil after a clean Close", s.Err())
	}

	loop.Advance(100 * time.Millisecond)
	if ran {
		t.Fatal("a cancelled task must not run after Close")
	}
}

func TestFailClosed_OnRunnableError(t *testing.T) {
	s, loop, _ := newTestScheduler(false, 0)
	defer s.Close()

	boom := errors.New("boom")
	ok, err := s.TrySchedule(Task{Run: func() error { return boom }}, 10)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	loop.Advance(10 * time.Millisecond)

	select {
	case <-s.WhenClosed():
	default:
		t.Fatal("scheduler should have closed after its runnable returned an error")
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err() = %v, want %v", s.Err(), boom)
	}
}

func TestFailClosed_OnRunnablePanic(t *testing.T) {
	s, loop, _ := newTestScheduler(false, 0)
	defer s.Close()

	ok, err := s.TrySchedule(Task{Run: func() error { panic("kaboom") }}, 10)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	loop.Advance(10 * time.Millisecond)

	select {
	case <-s.WhenClosed():
	default:
		t.Fatal("scheduler should have closed after its runnable panicked")
	}
	if s.Err() == nil {
		t.Fatal("Err() should report the recovered panic, got nil")
	}
}

func TestOnDeadlineElapsed_ClosesWhilePending(t *testing.T) {
	s, _, _ := newTestScheduler(true, 1000*time.Millisecond)
	defer s.Close()

	ok, err := s.TrySchedule(Task{Run: func() error { return nil }}, 10)
	if !ok || err != nil {
		t.Fatalf("TrySchedule() = (%v, %v), want (true, nil)", ok, err)
	}

	// Simulate the deadline watcher firing before the retry timer does.
	s.onDeadlineElapsed()

	select {
	case <-s.WhenClosed():
	default:
		t.Fatal("scheduler should close once the deadline elapses with a task still pending")
	}
	if !errors.Is(s.Err(), ErrTimedOut) {
		t.Fatalf("Err() = %v, want ErrTimedOut", s.Err())
	}
}

func TestOnDeadlineElapsed_NoOpWhenNothingPending(t *testing.T) {
	s, _, _ := newTestScheduler(true, 10*time.Millisecond)
	defer s.Close()

	s.onDeadlineElapsed()

	select {
	case <-s.WhenClosed():
		t.Fatal("scheduler must not close on deadline elapse when nothing is pending")
	default:
	}
}
