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
	"errors"
	"io"
	"testing"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

func TestAsDelegate_ReturnsJSONEncodedRepositoryInfo(t *testing.T) {
	mock := NewMockClient()
	d := AsDelegate(mock)

	resp, err := d(context.Background(), &retrydriver.Request{URL: "octocat/hello-world"})
	if err != nil {
		t.Fatalf("delegate returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	var info RepositoryInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if info.TotalPullRequests != len(mock.PullRequests) {
		t.Errorf("TotalPullRequests = %d, want %d", info.TotalPullRequests, len(mock.PullRequests))
	}

	if mock.LastOwner != "octocat" || mock.LastRepo != "hello-world" {
		t.Errorf("LastOwner/LastRepo = %q/%q, want octocat/hello-world", mock.LastOwner, mock.LastRepo)
	}
}

func TestAsDelegate_MalformedURL(t *testing.T) {
	d := AsDelegate(NewMockClient())

	if _, err := d(context.Background(), &retrydriver.Request{URL: "not-a-repo-path"}); err == nil {
		t.Error("expected error for malformed owner/repo URL, got nil")
	}
}

func TestAsDelegate_PropagatesClientError(t *testing.T) {
	mock := NewMockClient()
	mock.Error = errors.New("boom")
	d := AsDelegate(mock)

	if _, err := d(context.Background(), &retrydriver.Request{URL: "a/b"}); err == nil {
		t.Error("expected propagated client error, got nil")
	}
}
