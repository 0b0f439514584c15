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
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter reads the Retry-After response header per spec.md §6:
// either an integer number of seconds, or an HTTP-date. It returns
// (delay, true) on success. A past HTTP-date or a negative second count
// yields (0, true): honored, but with no wait. A missing or unparsable
// header yields (0, false).
func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0, true
		}
		return time.Duration(seconds) * time.Second, true
	}

	if when, err := http.ParseTime(raw); err == nil {
		delay := when.Sub(now)
		if delay < 0 {
			return 0, true
		}
		return delay, true
	}

	return 0, false
}
