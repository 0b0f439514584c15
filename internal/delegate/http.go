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

// Package delegate adapts transport-specific clients to
// internal/retrydriver.Delegate, so the retry driver's sequential and
// hedging orchestration can sit in front of real network calls without
// knowing anything about HTTP, GraphQL, or any other wire shape.
package delegate

import (
	"context"
	"io"
	"net/http"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

// HTTP adapts an http.RoundTripper to a retrydriver.Delegate. Each
// invocation builds a fresh *http.Request from req, re-reading its body
// via GetBody so a retried attempt never reuses an already-drained
// reader.
func HTTP(rt http.RoundTripper) retrydriver.Delegate {
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
		if err != nil {
			return nil, err
		}
		if req.Header != nil {
			httpReq.Header = req.Header.Clone()
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			httpReq.Body = body
			httpReq.GetBody = req.GetBody
		}

		resp, err := rt.RoundTrip(httpReq)
		if err != nil {
			return nil, err
		}
		return &retrydriver.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Trailer:    resp.Trailer,
			Body:       resp.Body,
		}, nil
	}
}

// ToHTTPResponse reconstructs an *http.Response suitable for returning
// from an http.RoundTripper, from a retrydriver.Response produced by a
// Driver wrapping an HTTP delegate. req is attached as the Request field,
// matching what http.RoundTripper implementations conventionally set.
func ToHTTPResponse(req *http.Request, resp *retrydriver.Response) *http.Response {
	if resp == nil {
		return nil
	}
	body := resp.Body
	if body == nil {
		body = io.NopCloser(http.NoBody)
	}
	return &http.Response{
		Request:    req,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Trailer:    resp.Trailer,
		Body:       body,
	}
}

// FromHTTPRequest converts req into a retrydriver.Request, capturing
// req.GetBody so every retry attempt gets an independent, unread body
// reader. req.Body itself is not carried over: a request whose GetBody is
// unset produces a retrydriver.Request with no body.
func FromHTTPRequest(req *http.Request) *retrydriver.Request {
	out := &retrydriver.Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.GetBody != nil {
		out.GetBody = req.GetBody
	}
	return out
}
