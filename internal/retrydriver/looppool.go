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
	"sync"

	"github.com/sirseerhq/retrycore/internal/retryscheduler"
)

// loopPool hands out one retryscheduler.EventLoop per endpoint,
// deterministically, so repeated requests to the same endpoint reuse the
// same single-threaded executor (spec.md §4.6: "the event loop used for
// each attempt is deterministically selected per endpoint to preserve
// cache locality").
type loopPool struct {
	mu    sync.Mutex
	loops map[string]retryscheduler.EventLoop
}

func newLoopPool() *loopPool {
	return &loopPool{loops: make(map[string]retryscheduler.EventLoop)}
}

func (p *loopPool) get(endpoint string) retryscheduler.EventLoop {
	p.mu.Lock()
	defer p.mu.Unlock()
	if loop, ok := p.loops[endpoint]; ok {
		return loop
	}
	loop := retryscheduler.NewRealEventLoop()
	p.loops[endpoint] = loop
	return loop
}
