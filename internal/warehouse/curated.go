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

package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Curated tables pick their source columns at build time because raw
// headers drift across Tableau releases: every candidate that actually
// exists goes into a COALESCE chain, empties nulled out first.

// coalesceExpr builds COALESCE(NULLIF(alias."col",'')::cast, ...) over
// the candidate columns present in the raw table.
func coalesceExpr(alias string, have map[string]bool, candidates []string, cast string) string {
	var opts []string
	for _, c := range candidates {
		if have[c] {
			opts = append(opts, fmt.Sprintf(`NULLIF(%s.%s,'')%s`, alias, quoteIdent(c), cast))
		}
	}
	opts = append(opts, "NULL"+cast)

	return "COALESCE(" + strings.Join(opts, ", ") + ")"
}

func coalesceText(alias string, have map[string]bool, candidates ...string) string {
	return coalesceExpr(alias, have, candidates, "::text")
}

func coalesceDouble(alias string, have map[string]bool, candidates ...string) string {
	return coalesceExpr(alias, have, candidates, "::double precision")
}

func coalesceDate(alias string, have map[string]bool, candidates ...string) string {
	return coalesceExpr(alias, have, candidates, "::date")
}

func (b *Builder) columnSet(ctx context.Context, schema, table string) (map[string]bool, error) {
	cols, err := b.currentColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}

	return have, nil
}

// curatedFromRaw replaces one curated table with a SELECT over its raw
// source, skipping quietly when the raw table was never loaded.
func (b *Builder) curatedFromRaw(ctx context.Context, rawTable, curatedName, body string) error {
	exists, err := b.tableExists(ctx, RawSchema, rawTable)
	if err != nil {
		return err
	}
	if !exists {
		log.Info().Str("table", CuratedSchema+"."+curatedName).Msg("skipped, raw source missing")
		return nil
	}

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", quoteIdent(CuratedSchema), quoteIdent(curatedName))
	if _, err := b.pool.Exec(ctx, drop); err != nil {
		return err
	}

	create := fmt.Sprintf("CREATE TABLE %s.%s AS %s",
		quoteIdent(CuratedSchema), quoteIdent(curatedName), body)
	if _, err := b.pool.Exec(ctx, create); err != nil {
		return err
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s.%s (%s)",
		quoteIdent("idx_"+curatedName+"_uwi"), quoteIdent(CuratedSchema),
		quoteIdent(curatedName), quoteIdent("uwi_formatted"))
	if _, err := b.pool.Exec(ctx, idx); err != nil {
		return err
	}

	log.Info().Str("table", CuratedSchema+"."+curatedName).Msg("curated table built")

	return nil
}

// rebuildCurated derives the typed fact tables from whatever raw tables
// the load produced.
func (b *Builder) rebuildCurated(ctx context.Context) error {
	if err := b.buildCompletionInterval(ctx); err != nil {
		return err
	}
	if err := b.buildStatusHistory(ctx); err != nil {
		return err
	}
	return b.buildGeologicalTops(ctx)
}

func (b *Builder) buildCompletionInterval(ctx context.Context) error {
	const raw = "well_summary_report__completion_interval"

	exists, err := b.tableExists(ctx, RawSchema, raw)
	if err != nil || !exists {
		return err
	}

	have, err := b.columnSet(ctx, RawSchema, raw)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`
		SELECT
		  ci."uwi_formatted",
		  %s AS formation,
		  %s AS quality,
		  %s AS top_m,
		  %s AS base_m
		FROM %s.%s AS ci
		WHERE ci."uwi_formatted" IS NOT NULL`,
		coalesceText("ci", have, "formation", "prod_string_formation", "gci_formation"),
		coalesceText("ci", have, "gci_quality", "quality"),
		coalesceDouble("ci", have, "gross_completion_interval_top", "gci_top", "top", "gross_comp_interval_top"),
		coalesceDouble("ci", have, "gross_completion_interval_base", "gci_base", "base", "gross_comp_interval_base"),
		quoteIdent(RawSchema), quoteIdent(raw))

	return b.curatedFromRaw(ctx, raw, "fact_completion_interval", body)
}

func (b *Builder) buildStatusHistory(ctx context.Context) error {
	const raw = "well_summary_report__status_history"

	exists, err := b.tableExists(ctx, RawSchema, raw)
	if err != nil || !exists {
		return err
	}

	have, err := b.columnSet(ctx, RawSchema, raw)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`
		SELECT
		  sh."uwi_formatted",
		  %s AS status,
		  %s AS fluid,
		  %s AS status_date
		FROM %s.%s AS sh
		WHERE sh."uwi_formatted" IS NOT NULL`,
		coalesceText("sh", have, "status"),
		coalesceText("sh", have, "status_fluid", "fluid"),
		coalesceDate("sh", have, "status_date", "date"),
		quoteIdent(RawSchema), quoteIdent(raw))

	return b.curatedFromRaw(ctx, raw, "fact_status_history", body)
}

func (b *Builder) buildGeologicalTops(ctx context.Context) error {
	const raw = "well_summary_report__geological_tops_markers"

	exists, err := b.tableExists(ctx, RawSchema, raw)
	if err != nil || !exists {
		return err
	}

	have, err := b.columnSet(ctx, RawSchema, raw)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`
		SELECT
		  gt."uwi_formatted",
		  %s AS formation,
		  %s AS top_md_m,
		  %s AS description
		FROM %s.%s AS gt
		WHERE gt."uwi_formatted" IS NOT NULL`,
		coalesceText("gt", have, "formation", "formation_name"),
		coalesceDouble("gt", have, "formation_depth_m", "top_depth_m", "top_md_m"),
		coalesceText("gt", have, "description", "remark", "comments"),
		quoteIdent(RawSchema), quoteIdent(raw))

	return b.curatedFromRaw(ctx, raw, "fact_geological_tops", body)
}
