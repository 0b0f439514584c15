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

import "errors"

var (
	// ErrRetryLimited is returned when a retry limiter denies a retry the
	// rule would otherwise have granted.
	ErrRetryLimited = errors.New("retrydriver: retry limited")

	// ErrResponseCancelled is the cause given to a losing hedge sibling
	// once another attempt has won.
	ErrResponseCancelled = errors.New("retrydriver: response cancelled")

	// ErrResponseTimeout is returned when the overall or per-attempt
	// deadline elapses.
	ErrResponseTimeout = errors.New("retrydriver: response timeout")

	// ErrFactoryClosed is returned to every in-flight sequence when the
	// owning client factory is closed.
	ErrFactoryClosed = errors.New("retrydriver: factory closed")
)
