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

// Package warehouse loads the staged CSV tree into a PostgreSQL
// warehouse: one all-TEXT raw table per (dashboard, sheet), a well
// dimension, and typed curated fact tables on top.
package warehouse

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/normalize"
	"github.com/rs/zerolog/log"
)

// Warehouse schema names.
const (
	RawSchema     = "raw"
	CuratedSchema = "curated"
	DimSchema     = "dim"
)

// batchRows is how many rows go to the server per pgx batch.
const batchRows = 2000

// provenanceCols are appended to every raw table.
var provenanceCols = []string{"source_dashboard", "source_sheet", "source_file"}

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c Config) dsn(database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, database)
}

// EnsureDatabase creates the configured database when it does not exist
// yet, connecting through the maintenance database.
func EnsureDatabase(ctx context.Context, cfg Config) error {
	conn, err := pgx.Connect(ctx, cfg.dsn("postgres"))
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	var one int
	err = conn.QueryRow(ctx, "SELECT 1 FROM pg_database WHERE datname=$1", cfg.Database).Scan(&one)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return err
	}

	log.Info().Str("database", cfg.Database).Msg("creating database")

	_, err = conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, quoteIdent(cfg.Database)))
	return err
}

// Builder loads the staged Data tree into the warehouse.
type Builder struct {
	pool     *pgxpool.Pool
	dataRoot string
}

// NewBuilder connects to the warehouse database.
func NewBuilder(ctx context.Context, cfg Config, dataRoot string) (*Builder, error) {
	pool, err := pgxpool.New(ctx, cfg.dsn(cfg.Database))
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Builder{pool: pool, dataRoot: dataRoot}, nil
}

// Close releases the connection pool.
func (b *Builder) Close() {
	b.pool.Close()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Build runs the full load: schemas, dim_well, every discovered raw
// dataset, then the curated fact tables.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.ensureSchemas(ctx); err != nil {
		return err
	}

	if err := b.rebuildDimWell(ctx); err != nil {
		return err
	}

	datasets, err := DiscoverFiles(b.dataRoot)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		log.Warn().Str("root", b.dataRoot).Msg("no staged csv files found")
		return nil
	}

	keys := make([]DatasetKey, 0, len(datasets))
	for k := range datasets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b DatasetKey) int {
		if a.Dashboard != b.Dashboard {
			return strings.Compare(a.Dashboard, b.Dashboard)
		}
		return strings.Compare(a.Sheet, b.Sheet)
	})

	for _, key := range keys {
		if err := b.loadDataset(ctx, key, datasets[key]); err != nil {
			return fmt.Errorf("dataset %s: %w", key.RawTable(), err)
		}
	}

	return b.rebuildCurated(ctx)
}

func (b *Builder) ensureSchemas(ctx context.Context) error {
	for _, schema := range []string{RawSchema, CuratedSchema, DimSchema} {
		if _, err := b.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema)); err != nil {
			return err
		}
	}
	return nil
}

// rebuildDimWell drops and reloads dim.dim_well from the per-well
// directories under the Data root.
func (b *Builder) rebuildDimWell(ctx context.Context) error {
	wells, err := WellDirs(b.dataRoot)
	if err != nil {
		return err
	}

	if _, err := b.pool.Exec(ctx, `DROP TABLE IF EXISTS dim.dim_well`); err != nil {
		return err
	}
	if _, err := b.pool.Exec(ctx,
		`CREATE TABLE dim.dim_well (uwi_short TEXT PRIMARY KEY, uwi_formatted TEXT)`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, w := range wells {
		batch.Queue(`INSERT INTO dim.dim_well (uwi_short, uwi_formatted) VALUES ($1, $2)`,
			w, models.EnsureWrapped(strings.ReplaceAll(w, "_", "/")))
	}
	if err := b.pool.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	log.Info().Int("wells", len(wells)).Msg("dim_well rebuilt")

	return nil
}

func (b *Builder) tableExists(ctx context.Context, schema, table string) (bool, error) {
	var one int
	err := b.pool.QueryRow(ctx,
		`SELECT 1 FROM information_schema.tables WHERE table_schema=$1 AND table_name=$2`,
		schema, table).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (b *Builder) currentColumns(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema=$1 AND table_name=$2 ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}

	return cols, rows.Err()
}

// ensureRawTable creates the raw table or widens it so every union
// column exists. Raw tables only ever gain TEXT columns.
func (b *Builder) ensureRawTable(ctx context.Context, table string, unionCols []string) error {
	exists, err := b.tableExists(ctx, RawSchema, table)
	if err != nil {
		return err
	}

	if !exists {
		cols := []string{quoteIdent("uwi_formatted") + " TEXT"}
		for _, c := range unionCols {
			if c == "uwi_formatted" {
				continue
			}
			cols = append(cols, quoteIdent(c)+" TEXT")
		}
		for _, c := range provenanceCols {
			cols = append(cols, quoteIdent(c)+" TEXT")
		}

		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
			quoteIdent(RawSchema), quoteIdent(table), strings.Join(cols, ", "))
		if _, err := b.pool.Exec(ctx, ddl); err != nil {
			return err
		}

		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s.%s (%s)",
			quoteIdent("idx_"+table+"_uwi"), quoteIdent(RawSchema), quoteIdent(table),
			quoteIdent("uwi_formatted"))
		_, err := b.pool.Exec(ctx, idx)
		return err
	}

	existing, err := b.currentColumns(ctx, RawSchema, table)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	for _, c := range append(slices.Clone(unionCols), provenanceCols...) {
		if have[c] {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s.%s ADD COLUMN %s TEXT",
			quoteIdent(RawSchema), quoteIdent(table), quoteIdent(c))
		if _, err := b.pool.Exec(ctx, ddl); err != nil {
			return err
		}
		have[c] = true
	}

	return nil
}

// fileColumns reads one staged CSV and returns its snake-cased header
// (canonical UWI names applied) and data rows.
func fileColumns(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	rows, err := normalize.ParseCSV(raw)
	if err != nil || len(rows) == 0 {
		return nil, nil, err
	}

	mapped, _ := normalize.CanonicalizeHeader(rows[0])
	header := make([]string, len(mapped))
	for i, h := range mapped {
		header[i] = Snake(h)
	}

	return header, rows[1:], nil
}

// unionColumns builds the ordered union of every file's columns,
// guaranteeing uwi_formatted is present.
func unionColumns(files []FileInfo) ([]string, error) {
	var union []string
	seen := make(map[string]bool)

	for _, info := range files {
		header, _, err := fileColumns(info.Path)
		if err != nil {
			return nil, err
		}

		for _, c := range header {
			if !seen[c] {
				seen[c] = true
				union = append(union, c)
			}
		}
	}

	if !seen["uwi_formatted"] {
		union = append([]string{"uwi_formatted"}, union...)
	}

	return union, nil
}

// loadDataset widens the raw table to the union of columns across all
// files, then loads every file aligned by column name.
func (b *Builder) loadDataset(ctx context.Context, key DatasetKey, files []FileInfo) error {
	table := key.RawTable()
	log.Info().Str("table", RawSchema+"."+table).Int("files", len(files)).Msg("loading dataset")

	union, err := unionColumns(files)
	if err != nil {
		return err
	}

	if err := b.ensureRawTable(ctx, table, union); err != nil {
		return err
	}

	loadCols, err := b.currentColumns(ctx, RawSchema, table)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(loadCols))
	quoted := make([]string, len(loadCols))
	for i, c := range loadCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		quoted[i] = quoteIdent(c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdent(RawSchema), quoteIdent(table),
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	for _, info := range files {
		if err := b.loadFile(ctx, insertSQL, loadCols, info); err != nil {
			return fmt.Errorf("%s: %w", info.Path, err)
		}
	}

	return nil
}

func (b *Builder) loadFile(ctx context.Context, insertSQL string, loadCols []string, info FileInfo) error {
	header, data, err := fileColumns(info.Path)
	if err != nil || len(header) == 0 {
		return err
	}

	wrapped := models.EnsureWrapped(strings.ReplaceAll(info.UWIShort, "_", "/"))

	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		err := b.pool.SendBatch(ctx, batch).Close()
		batch = &pgx.Batch{}
		return err
	}

	for _, row := range data {
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				values[col] = row[i]
			}
		}

		if strings.TrimSpace(values["uwi_formatted"]) == "" {
			values["uwi_formatted"] = wrapped
		}

		args := make([]any, len(loadCols))
		for i, col := range loadCols {
			switch col {
			case "source_dashboard":
				args[i] = info.Dashboard
			case "source_sheet":
				args[i] = info.Sheet
			case "source_file":
				args[i] = info.Path
			default:
				args[i] = values[col]
			}
		}

		batch.Queue(insertSQL, args...)
		if batch.Len() >= batchRows {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}
