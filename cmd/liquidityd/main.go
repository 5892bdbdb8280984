// Copyright (C) 2022 Poolswarm, Inc.
// This file is part of go-poolswarm
//
// go-poolswarm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-poolswarm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-poolswarm.  If not, see <https://www.gnu.org/licenses/>.

// liquidityd is the operator's tool for the liquidity provision service:
// inspect the configured deployment and simulate periods of the round state
// machine locally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/poolswarm/go-poolswarm/config"
	"github.com/poolswarm/go-poolswarm/logging"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "liquidityd",
	Short: "Liquidity provision service tooling",
	Long:  "liquidityd inspects and exercises the round state machine of the liquidity provision service.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of this build",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("liquidityd %s\n", versionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "datadir", "d", "", "Service data directory holding config.json")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

// loadConfig resolves the service configuration: defaults, overridden by the
// data directory's config.json when one is present.
func loadConfig() (config.Local, error) {
	if dataDir == "" {
		return config.GetDefaultLocal(), nil
	}
	cfg, err := config.LoadConfigFromDisk(dataDir)
	if os.IsNotExist(err) {
		return config.GetDefaultLocal(), nil
	}
	return cfg, err
}

func main() {
	logging.Base().SetLevel(logging.Info)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
