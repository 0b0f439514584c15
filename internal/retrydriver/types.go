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

// Package retrydriver coordinates attempts: sequential retries, hedging,
// attempt caps, per-attempt and total timeouts, Retry-After handling, and
// consultation of a retry rule and a retry limiter. It is the orchestrator
// that sits on top of internal/backoff, internal/retrydecision,
// internal/retryrule, internal/retrylimiter, and internal/retryscheduler.
package retrydriver

import (
	"io"
	"net/http"
)

// RetryCountHeader is the header attached to every attempt numbered 2 or
// higher, carrying the 1-based retry count (attempt number minus 1).
const RetryCountHeader = "x-retry-count"

// Request is the logical request a Delegate dispatches once per attempt.
// GetBody, if non-nil, supplies the body; it is called for a fresh reader
// on every attempt.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	GetBody func() (io.ReadCloser, error)
}

// clone returns a Request that shares Method/URL/GetBody but carries its
// own header map, so per-attempt mutation (x-retry-count) never leaks
// across attempts or back into the caller's original request.
func (r *Request) clone() *Request {
	h := make(http.Header, len(r.Header))
	for k, v := range r.Header {
		vv := make([]string, len(v))
		copy(vv, v)
		h[k] = vv
	}
	return &Request{Method: r.Method, URL: r.URL, Header: h, GetBody: r.GetBody}
}

// Response is what a Delegate produces for one attempt.
type Response struct {
	StatusCode int
	Header     http.Header
	Trailer    http.Header
	Body       io.ReadCloser
}
