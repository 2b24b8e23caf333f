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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pushDir      string
	pushExcludes []string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy the local staging directory to the remote, never overwriting",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		remote := newRemote(cfg)

		before, err := remote.Lsf("Data")
		if err != nil {
			return err
		}

		if err := remote.Push(pushDir, "Data", pushExcludes); err != nil {
			return err
		}

		after, err := remote.Lsf("Data")
		if err != nil {
			return err
		}

		log.Info().
			Str("dir", pushDir).
			Str("remote", cfg.Remote).
			Int("uploaded", len(after)-len(before)).
			Int("remote_objects", len(after)).
			Msg("push finished")

		return nil
	},
}

func init() {
	pushCmd.Flags().
		StringVarP(&pushDir, "data-dir", "o", "./Data", "local staging directory to push")

	pushCmd.Flags().
		StringSliceVar(&pushExcludes, "exclude",
			[]string{"_tmp_worker_*/**", "**/.DS_Store", "*.tmp"},
			"rclone exclude patterns")

	rootCmd.AddCommand(pushCmd)
}
