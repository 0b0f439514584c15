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
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "retryctl",
		Short: "Inspect and exercise the retrycore retry subsystem",
		Long: `retryctl is a diagnostic tool for the retrycore retry subsystem: it
parses and explains backoff specs, simulates a retry sequence against a
scripted status-code trace, and probes a live endpoint with optional
hedging, all without writing any application code.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a retrycore YAML config file")
	rootCmd.AddCommand(newParseBackoffCommand())
	rootCmd.AddCommand(newSimulateCommand(&configFile))
	rootCmd.AddCommand(newProbeCommand(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
