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

package delegate

import (
	"context"
	"strconv"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

// RouteByAttempt returns a retrydriver.Delegate that sends each attempt to
// a different branch, selected by the attempt's 1-based position:
// branches[0] handles attempt 1 (no x-retry-count header), branches[1]
// handles attempt 2 (x-retry-count: 1), and so on. An attempt numbered
// past the last branch reuses the last one.
//
// It exists so one hedged Driver.Execute call can race structurally
// distinct delegates (e.g. GitHub, OpenAI, Anthropic) against each other,
// keyed off the header Driver already stamps on every attempt after the
// first.
func RouteByAttempt(branches ...retrydriver.Delegate) retrydriver.Delegate {
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		idx := 0
		if v := req.Header.Get(retrydriver.RetryCountHeader); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				idx = n
			}
		}
		if idx >= len(branches) {
			idx = len(branches) - 1
		}
		return branches[idx](ctx, req)
	}
}
