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

	"github.com/prairiedata/aer-crawler/internal/warehouse"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pgHost   string
	pgPort   int
	pgUser   string
	pgPass   string
	pgDB     string
	createDB bool
	whData   string
)

var warehouseCmd = &cobra.Command{
	Use:   "build-warehouse",
	Short: "Load the staged CSV tree into a PostgreSQL warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := warehouse.Config{
			Host:     pgHost,
			Port:     pgPort,
			User:     pgUser,
			Password: pgPass,
			Database: pgDB,
		}

		ctx := context.Background()

		if createDB {
			if err := warehouse.EnsureDatabase(ctx, cfg); err != nil {
				return err
			}
		}

		b, err := warehouse.NewBuilder(ctx, cfg, whData)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.Build(ctx); err != nil {
			return err
		}

		log.Info().Str("database", pgDB).Msg("warehouse build finished")

		return nil
	},
}

func init() {
	warehouseCmd.Flags().StringVar(&pgHost, "pg-host", "localhost", "PostgreSQL host")
	warehouseCmd.Flags().IntVar(&pgPort, "pg-port", 5432, "PostgreSQL port")
	warehouseCmd.Flags().StringVar(&pgUser, "pg-user", "", "PostgreSQL user")
	warehouseCmd.Flags().StringVar(&pgPass, "pg-pass", "", "PostgreSQL password")
	warehouseCmd.Flags().StringVar(&pgDB, "pg-db", "", "PostgreSQL database name")

	warehouseCmd.Flags().
		BoolVar(&createDB, "create-db", false, "create the database if it does not exist")

	warehouseCmd.Flags().
		StringVarP(&whData, "data-dir", "o", "./Data", "staged CSV tree to load")

	for _, flag := range []string{"pg-user", "pg-pass", "pg-db"} {
		if err := warehouseCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(warehouseCmd)
}
