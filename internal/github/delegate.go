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

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

// AsDelegate adapts client to retrydriver.Delegate, for hedging a
// repository-info lookup across redundant GraphQL endpoints. req.URL is
// "owner/repo"; the looked-up RepositoryInfo is JSON-encoded into the
// response body so a caller of Driver.Execute can decode it generically
// without this package's types.
func AsDelegate(client Client) retrydriver.Delegate {
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		owner, repo, ok := strings.Cut(req.URL, "/")
		if !ok {
			return nil, fmt.Errorf("github delegate: malformed owner/repo %q", req.URL)
		}

		info, err := client.GetRepositoryInfo(ctx, owner, repo)
		if err != nil {
			return nil, err
		}

		body, err := json.Marshal(info)
		if err != nil {
			return nil, err
		}
		return &retrydriver.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(string(body))),
		}, nil
	}
}
