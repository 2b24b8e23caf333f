// Copyright 2025 The aer-crawler Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"

	"github.com/prairiedata/aer-crawler/internal/config"
	"github.com/prairiedata/aer-crawler/internal/rclone"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	APPNAME string = "aer-crawler"
	VERSION string = "0.3.0"
)

var (
	cfgFile    string
	debug      bool
	remoteName string
)

var rootCmd = &cobra.Command{
	Use:   APPNAME,
	Short: "Scrape AER well dashboards into object storage and PostgreSQL",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	},
}

// loadConfig reads the config file (if any) and applies the --remote
// override on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if remoteName != "" {
		cfg.Remote = remoteName
	}

	return cfg, nil
}

func newRemote(cfg *config.Config) *rclone.Remote {
	return rclone.New(cfg.Remote)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = VERSION

	rootCmd.PersistentFlags().
		StringVarP(&cfgFile, "config", "c", "", "path to YAML configuration file")

	rootCmd.PersistentFlags().
		StringVar(&remoteName, "remote", "", "rclone remote and bucket (overrides config)")

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print debugging information")
}
