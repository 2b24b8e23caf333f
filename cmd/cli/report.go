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
	"github.com/prairiedata/aer-crawler/internal/io"
	"github.com/prairiedata/aer-crawler/internal/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	reportWells string
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize per-well progress from the shared state objects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		wells, err := io.LoadWells(reportWells)
		if err != nil {
			return err
		}

		tracker := state.NewTracker(newRemote(cfg))

		states := make([]*state.Well, 0, len(wells))
		for _, w := range wells {
			states = append(states, tracker.Load(w.Label))
		}

		rows := io.BuildReport(states)
		if err := io.SaveRecords(reportOut, &rows); err != nil {
			return err
		}

		complete := 0
		for _, r := range rows {
			if r.Status == state.StatusComplete {
				complete++
			}
		}

		log.Info().
			Int("rows", len(rows)).
			Int("complete", complete).
			Str("file", reportOut).
			Msg("report written")

		return nil
	},
}

func init() {
	reportCmd.Flags().
		StringVarP(&reportWells, "wells", "w", "", "path to wells file to report on")

	reportCmd.Flags().
		StringVarP(&reportOut, "output", "o", "report.csv", "report file (.csv or .json)")

	if err := reportCmd.MarkFlagRequired("wells"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(reportCmd)
}
