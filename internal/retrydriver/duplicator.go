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
	"bytes"
	"io"
)

// BodyDuplicator reads at most maxBytes of r, returning a content slice a
// content-aware rule can inspect and a fresh reader equivalent to the
// original body, so both the rule and the eventual caller can consume it.
// spec.md §4.7 requires bounding retained response bytes during hedging;
// bodies beyond maxBytes are truncated for rule evaluation but the
// returned reader still yields the full original stream.
type BodyDuplicator interface {
	Duplicate(r io.Reader, maxBytes int64) (content []byte, fresh io.Reader, err error)
}

// DefaultBodyDuplicator buffers up to maxBytes in memory via bytes.Buffer
// and chains the buffered prefix with whatever remains unread on r.
type DefaultBodyDuplicator struct{}

// Duplicate implements BodyDuplicator.
func (DefaultBodyDuplicator) Duplicate(r io.Reader, maxBytes int64) ([]byte, io.Reader, error) {
	if r == nil {
		return nil, nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxContentLength
	}
	var buf bytes.Buffer
	_, err := io.CopyN(&buf, r, maxBytes)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	content := buf.Bytes()
	fresh := io.MultiReader(bytes.NewReader(content), r)
	return content, fresh, nil
}

// defaultMaxContentLength bounds body duplication when a RetryConfig does
// not set MaxContentLength explicitly.
const defaultMaxContentLength = 1 << 20 // 1 MiB
