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
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/sirseerhq/retrycore/internal/config"
	"github.com/sirseerhq/retrycore/internal/retrydriver"
	"github.com/sirseerhq/retrycore/internal/retrylog"
	"github.com/sirseerhq/retrycore/internal/retryrule"
	"github.com/spf13/cobra"
)

// newSimulateCommand creates the 'simulate' subcommand. It drives a
// retrydriver.Driver, configured entirely from the Retry section of a
// retrycore config file (or built-in defaults), against a scripted sequence
// of status codes -- the config-driven construction path
// config.Config.BuildRetryConfig describes, exercised end to end.
func newSimulateCommand(configFile *string) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scripted status-code sequence through a config-driven retry sequence",
		Long: `Simulate loads the Retry section of a retrycore config file (or its
built-in defaults, if --config is omitted) into a retrydriver.RetryConfig via
config.BuildRetryConfig, then drives one retrydriver.Driver.Execute call
through a delegate that returns the status codes in --script, in order, on
consecutive attempts. The final attempt's status (or any error) is printed.

Examples:
  retryctl simulate --script 503,503,200
  retryctl --config ./retrycore.yaml simulate --script 500,429,200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			statuses, err := parseScript(script)
			if err != nil {
				return err
			}

			retryConfig, err := cfg.BuildRetryConfig(retryOn5xxOr429)
			if err != nil {
				return fmt.Errorf("building retry config: %w", err)
			}

			var next int32
			delegate := retrydriver.Delegate(func(_ context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
				i := atomic.AddInt32(&next, 1) - 1
				status := statuses[len(statuses)-1]
				if int(i) < len(statuses) {
					status = statuses[i]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempt %d (retry-count=%s): %d\n",
					i+1, req.Header.Get(retrydriver.RetryCountHeader), status)
				return &retrydriver.Response{StatusCode: status, Header: make(http.Header)}, nil
			})

			driver := retrydriver.New(delegate, retryConfig, retrylog.Nop())
			req := &retrydriver.Request{Method: http.MethodGet, URL: "simulate://script", Header: make(http.Header)}

			resp, err := driver.Execute(context.Background(), req)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "sequence failed: %v\n", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sequence ended: %d\n", resp.StatusCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&script, "script", "503,200", "Comma-separated status codes returned on successive attempts")

	return cmd
}

// retryOn5xxOr429 is the RuleFactory simulate and probe use: retry on any
// 5xx or a 429, with the caller-supplied base backoff.
func retryOn5xxOr429(base backoff.Backoff) (retryrule.Rule, error) {
	return retryrule.NewBuilder().
		OnStatusClass(500).
		OnStatus(429).
		ThenBackoff(base)
}

func parseScript(script string) ([]int, error) {
	parts := strings.Split(script, ",")
	statuses := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid --script entry %q: %w", p, err)
		}
		statuses = append(statuses, n)
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("--script must name at least one status code")
	}
	return statuses, nil
}
