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

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirseerhq/retrycore/internal/config"
	"github.com/sirseerhq/retrycore/internal/delegate"
	"github.com/sirseerhq/retrycore/internal/retrydriver"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/spf13/cobra"
)

// newProbeCommand creates the 'probe' subcommand. With one endpoint it
// drives a single delegate.HTTP delegate through the config-driven retry
// sequence. With --hedge and more than one endpoint, each endpoint becomes
// one hedge branch, wired through delegate.RouteByAttempt exactly as
// spec.md §8 scenario 9 describes: attempt 1 goes to the first endpoint,
// attempt 2 hedges in behind it against the second, and so on.
func newProbeCommand(configFile *string) *cobra.Command {
	var hedge bool

	cmd := &cobra.Command{
		Use:   "probe <url> [url...]",
		Short: "Send a live request through the retry core, optionally hedging across endpoints",
		Long: `Probe sends a real HTTP request through a retrydriver.Driver built from the
Retry section of a retrycore config file (or its built-in defaults). With a
single URL it retries sequentially. With --hedge and multiple URLs, each URL
becomes a hedge branch raced via internal/delegate.RouteByAttempt: the
fastest non-retriable response wins and the other branches' requests are
cancelled, matching spec.md's hedging scenario.

Examples:
  retryctl probe https://example.com/health
  retryctl probe --hedge https://primary.example.com/health https://backup.example.com/health`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hedge && len(args) < 2 {
				return fmt.Errorf("--hedge requires at least two URLs")
			}

			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if hedge && cfg.Retry.HedgingBackoffSpec == "" {
				cfg.Retry.HedgingBackoffSpec = "fixed=50"
			}

			retryConfig, err := cfg.BuildRetryConfig(retryOn5xxOr429)
			if err != nil {
				return fmt.Errorf("building retry config: %w", err)
			}

			transport := http.DefaultTransport
			var d retrydriver.Delegate
			var primaryURL string
			if hedge {
				branches := make([]retrydriver.Delegate, len(args))
				for i, url := range args {
					branches[i] = endpointDelegate(transport, url)
				}
				d = delegate.RouteByAttempt(branches...)
				primaryURL = "hedged://" + args[0]
			} else {
				d = delegate.HTTP(transport)
				primaryURL = args[0]
			}

			driver := retrydriver.New(d, retryConfig, retrylog.Nop())
			req := &retrydriver.Request{Method: http.MethodGet, URL: primaryURL, Header: make(http.Header)}

			start := time.Now()
			resp, err := driver.Execute(cmd.Context(), req)
			elapsed := time.Since(start)
			if err != nil {
				return fmt.Errorf("probe failed after %s: %w", elapsed.Round(time.Millisecond), err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			fmt.Fprintf(cmd.OutOrStdout(), "status=%d elapsed=%s bytes=%d\n", resp.StatusCode, elapsed.Round(time.Millisecond), len(body))
			return nil
		},
	}

	cmd.Flags().BoolVar(&hedge, "hedge", false, "Race the given URLs as hedge branches instead of retrying one URL sequentially")

	return cmd
}

// endpointDelegate pins a delegate.HTTP call to url regardless of the
// request it is handed, so each hedge branch targets its own endpoint.
func endpointDelegate(rt http.RoundTripper, url string) retrydriver.Delegate {
	base := delegate.HTTP(rt)
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		pinned := *req
		pinned.URL = url
		return base(ctx, &pinned)
	}
}
