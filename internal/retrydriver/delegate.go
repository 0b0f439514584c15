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

import "context"

// Delegate dispatches one physical attempt of req and returns its
// response, or an error if the request was never sent or the transport
// failed outright. The retry driver treats the delegate as opaque: it
// never inspects connection pooling, TLS, or protocol negotiation.
//
// A Delegate must honor ctx cancellation: once ctx is done, it should stop
// the in-flight attempt and return promptly.
type Delegate func(ctx context.Context, req *Request) (*Response, error)

// Unprocessed reports whether err indicates the request was never sent
// (connection refused, pool exhausted, factory closed). Delegates that
// want their failures to be treated as "unprocessed-request" errors by
// retry rules should wrap them so errors.As finds this interface.
type Unprocessed interface {
	UnprocessedRequest() bool
}
