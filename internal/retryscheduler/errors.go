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

import "errors"

var (
	// ErrIllegalState is raised when TrySchedule overlaps another
	// TrySchedule or ApplyMinimumBackoffMillis call on the same
	// Scheduler, or when a caller tries to schedule a second
	// task whose run time is not strictly earlier than the one already
	// pending (spec.md §4.5 step 4: "the caller should not do this").
	ErrIllegalState = errors.New("retryscheduler: illegal state")

	// ErrSuperseded is the cause reported to a pending task's OnFailure
	// when an earlier-firing task overtakes it (spec.md §4.5 "overtake").
	ErrSuperseded = errors.New("retryscheduler: superseded by earlier retry")

	// ErrRejected is the cause WhenClosed() completes with when the
	// underlying EventLoop rejects a schedule (executor shut down).
	ErrRejected = errors.New("retryscheduler: rejected by executor")

	// ErrTimedOut is the cause WhenClosed() completes with when the
	// deadline elapses with a task still pending.
	ErrTimedOut = errors.New("retryscheduler: deadline exceeded before scheduling completed")

	// ErrExecutorShutDown is returned by an EventLoop's Schedule when the
	// loop is no longer accepting work.
	ErrExecutorShutDown = errors.New("retryscheduler: executor shut down")
)
