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
	"fmt"

	"github.com/sirseerhq/retrycore/internal/backoff"
	"github.com/spf13/cobra"
)

// newParseBackoffCommand creates the 'parse-backoff' subcommand. It parses
// the textual grammar documented on backoff.ParseSpec and prints the delay
// it would produce for each of the first --attempts attempts, so a spec can
// be sanity-checked without wiring it into a driver.
func newParseBackoffCommand() *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "parse-backoff <spec>",
		Short: "Parse a backoff spec and print its delay schedule",
		Long: `Parse a backoff spec using the grammar described in internal/backoff.ParseSpec
and print the delay, in milliseconds, it produces for each attempt.

Examples:
  retryctl parse-backoff "exponential=200:10000:2.0,jitter=-0.2:0.2"
  retryctl parse-backoff "fibonacci=100:5000,maxAttempts=6"
  retryctl parse-backoff "fixed=250"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backoff.ParseSpec(args[0])
			if err != nil {
				return fmt.Errorf("parsing spec: %w", err)
			}

			for attempt := uint32(1); attempt <= uint32(attempts); attempt++ {
				delay := b.NextDelayMillis(attempt)
				if delay == backoff.Stop {
					fmt.Fprintf(cmd.OutOrStdout(), "attempt %d: stop\n", attempt)
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempt %d: %dms\n", attempt, delay)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", 5, "Number of attempts to print a delay for")

	return cmd
}
