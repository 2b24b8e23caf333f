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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	splitInput  string
	splitOutDir string
	splitParts  int
)

var splitWellsCmd = &cobra.Command{
	Use:   "split-wells",
	Short: "Split a wells file into evenly sized parts for parallel machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		wells, err := io.LoadWells(splitInput)
		if err != nil {
			return err
		}

		paths, err := io.WriteWellParts(splitOutDir, io.SplitWells(wells, splitParts))
		if err != nil {
			return err
		}

		log.Info().
			Int("wells", len(wells)).
			Int("parts", len(paths)).
			Str("dir", splitOutDir).
			Msg("wells file split")

		return nil
	},
}

func init() {
	splitWellsCmd.Flags().
		StringVarP(&splitInput, "wells", "w", "", "path to wells file to split")

	splitWellsCmd.Flags().
		StringVarP(&splitOutDir, "output-dir", "o", ".", "directory for the part files")

	splitWellsCmd.Flags().
		IntVarP(&splitParts, "parts", "n", 2, "number of parts")

	if err := splitWellsCmd.MarkFlagRequired("wells"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(splitWellsCmd)
}
