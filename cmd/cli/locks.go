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
	"github.com/prairiedata/aer-crawler/internal/lock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var purgeLocksCmd = &cobra.Command{
	Use:   "purge-locks",
	Short: "Delete expired well locks from the remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		locker := lock.New(newRemote(cfg), cfg.Lock.TTL, cfg.Lock.Heartbeat)
		if err := locker.PurgeExpired(); err != nil {
			return err
		}

		log.Info().Dur("ttl", cfg.Lock.TTL).Msg("expired locks purged")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeLocksCmd)
}
