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

package retryrule

import (
	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/giterror"
)

// NewGitHubTransientRule builds a Rule that retries GitHub API errors
// inspector classifies as rate-limit or network failures, using b as the
// backoff. Auth, not-found, and complexity errors never match and fall
// through to whatever rule follows in a composition.
func NewGitHubTransientRule(inspector giterror.Inspector, b backoff.Backoff) (Rule, error) {
	if inspector == nil {
		inspector = giterror.NewInspector()
	}
	return NewBuilder().
		OnException(func(err error) bool {
			return inspector.IsRateLimitError(err) || inspector.IsNetworkError(err)
		}).
		ThenBackoff(b)
}
