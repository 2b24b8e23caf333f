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
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prairiedata/aer-crawler/internal/io"
	"github.com/prairiedata/aer-crawler/internal/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	wellsFile       string
	dataDir         string
	dashboards      []string
	sheets          []string
	workers         int
	actionTimeout   int
	downloadTimeout int
	settleSeconds   int
	headless        bool
	noPush          bool
	force           bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Export dashboard crosstabs for every well in the wells file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if settleSeconds >= 0 {
			cfg.VizSettle = time.Duration(settleSeconds) * time.Second
		}

		wells, err := io.LoadWells(wellsFile)
		if err != nil {
			return err
		}

		r, err := runner.New(cfg, newRemote(cfg), wells,
			runner.Workers(workers),
			runner.Headless(headless),
			runner.Timeout(time.Duration(actionTimeout)*time.Second),
			runner.DownloadTimeout(time.Duration(downloadTimeout)*time.Second),
			runner.Dashboards(dashboards),
			runner.SheetFilter(sheets),
			runner.DataDir(dataDir),
			runner.PushAfter(!noPush),
			runner.Force(force),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := r.Run(ctx); err != nil {
			return err
		}

		log.Info().Msg("scrape finished")

		return nil
	},
}

func init() {
	scrapeCmd.Flags().
		StringVarP(&wellsFile, "wells", "w", "", "path to wells file (one UWI per line)")

	scrapeCmd.Flags().
		StringVarP(&dataDir, "data-dir", "o", "./Data", "local staging directory for exports")

	scrapeCmd.Flags().
		StringSliceVarP(&dashboards, "dashboards", "d", []string{"all"}, "dashboard codes to scrape, or 'all'")

	scrapeCmd.Flags().
		StringSliceVar(&sheets, "sheets", nil,
			"restrict exports to the named sheets; 'Dash:SheetA|SheetB;Other:Foo' scopes them per dashboard")

	scrapeCmd.Flags().
		IntVarP(&workers, "workers", "n", 1, "number of concurrent browser workers")

	scrapeCmd.Flags().
		IntVarP(&actionTimeout, "timeout", "T", 60, "max time allowed for a browser action (in seconds)")

	scrapeCmd.Flags().
		IntVar(&downloadTimeout, "download-timeout", 180, "max time to wait for an export to land (in seconds)")

	scrapeCmd.Flags().
		IntVar(&settleSeconds, "settle", -1, "seconds to let a loaded viz settle (overrides config)")

	scrapeCmd.Flags().BoolVarP(&headless, "headless", "H", true, "run browsers in headless mode")

	scrapeCmd.Flags().BoolVar(&noPush, "no-push", false, "skip the rclone push after the run")

	scrapeCmd.Flags().
		BoolVar(&force, "force", false, "re-export every sheet even when state marks it complete")

	if err := scrapeCmd.MarkFlagRequired("wells"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(scrapeCmd)
}
