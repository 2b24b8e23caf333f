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
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
)

func TestSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Gross Completion Interval Top", "gross_completion_interval_top"},
		{"Top (m)", "top_m"},
		{"UWI_Formatted", "uwi_formatted"},
		{"  spaced  out  ", "spaced_out"},
		{"%%%", "col"},
		// NFKD splits the accent off and the combining mark folds to _
		{"Dépth", "de_pth"},
		{strings.Repeat("a", 80), strings.Repeat("a", 63)},
	}

	for _, tt := range tests {
		if got := Snake(tt.in); got != tt.want {
			t.Errorf("Snake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSheetFromFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"01-01-099-14W4__Completion_Interval.csv", "completion_interval"},
		{"01-01-099-14W4__Status_History_1.csv", "status_history_1"},
		{"oddball.csv", "oddball"},
	}

	for _, tt := range tests {
		if got := sheetFromFilename(tt.in); got != tt.want {
			t.Errorf("sheetFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// fakeDataTree stages a small Data layout with generated content.
func fakeDataTree(t *testing.T) string {
	t.Helper()
	gofakeit.Seed(11)

	root := t.TempDir()
	wells := []string{"01-01-099-14W4", "02-02-050-10W5"}

	for _, w := range wells {
		dir := filepath.Join(root, w, "Well_Summary_Report")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}

		var sb strings.Builder
		sb.WriteString("Formation,Top (m),UWI_Formatted\n")
		for range 3 {
			fmt.Fprintf(&sb, "%s,%0.1f,00/%s/0\n", gofakeit.City(), gofakeit.Float64Range(100, 2000), w)
		}

		file := filepath.Join(dir, w+"__Geological_Tops_Markers.csv")
		if err := os.WriteFile(file, []byte(sb.String()), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// scratch dirs must be invisible to discovery
	if err := os.MkdirAll(filepath.Join(root, "_tmp_worker_0"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "errors"), 0755); err != nil {
		t.Fatal(err)
	}
	junk := filepath.Join(root, "_tmp_worker_0", "leftover.csv")
	if err := os.WriteFile(junk, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	return root
}

func TestDiscoverFiles(t *testing.T) {
	root := fakeDataTree(t)

	datasets, err := DiscoverFiles(root)
	if err != nil {
		t.Fatal(err)
	}

	if len(datasets) != 1 {
		t.Fatalf("got %d datasets, want 1: %v", len(datasets), datasets)
	}

	key := DatasetKey{Dashboard: "well_summary_report", Sheet: "geological_tops_markers"}
	files, ok := datasets[key]
	if !ok {
		t.Fatalf("missing dataset %v", key)
	}

	if len(files) != 2 {
		t.Errorf("dataset has %d files, want 2", len(files))
	}

	if key.RawTable() != "well_summary_report__geological_tops_markers" {
		t.Errorf("raw table = %q", key.RawTable())
	}

	for _, f := range files {
		if strings.Contains(f.Path, "_tmp_worker_0") {
			t.Error("scratch dir leaked into discovery")
		}
	}
}

func TestWellDirs(t *testing.T) {
	root := fakeDataTree(t)

	wells, err := WellDirs(root)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"01-01-099-14W4", "02-02-050-10W5"}
	if !slices.Equal(wells, want) {
		t.Errorf("wells = %v, want %v", wells, want)
	}
}

func TestUnionColumns(t *testing.T) {
	root := fakeDataTree(t)

	// second file adds a column the first lacks
	extra := filepath.Join(root, "02-02-050-10W5", "Well_Summary_Report",
		"02-02-050-10W5__Geological_Tops_Markers_1.csv")
	if err := os.WriteFile(extra, []byte("Formation,Remark\nWabamun,deep\n"), 0644); err != nil {
		t.Fatal(err)
	}

	datasets, err := DiscoverFiles(root)
	if err != nil {
		t.Fatal(err)
	}

	key := DatasetKey{Dashboard: "well_summary_report", Sheet: "geological_tops_markers"}
	union, err := unionColumns(datasets[key])
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"uwi_formatted", "formation", "top_m"} {
		if !slices.Contains(union, want) {
			t.Errorf("union missing %q: %v", want, union)
		}
	}
}

func TestUnionColumnsFabricatesUWI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w__Sheet.csv")
	if err := os.WriteFile(path, []byte("Formation,Top\nWabamun,1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	union, err := unionColumns([]FileInfo{{Path: path}})
	if err != nil {
		t.Fatal(err)
	}

	if union[0] != "uwi_formatted" {
		t.Errorf("union = %v, want uwi_formatted first", union)
	}
}

func TestCoalesceExpr(t *testing.T) {
	have := map[string]bool{"status_date": true, "date": false}

	got := coalesceDate("sh", have, "status_date", "date")
	want := `COALESCE(NULLIF(sh."status_date",'')::date, NULL::date)`
	if got != want {
		t.Errorf("coalesceDate = %s, want %s", got, want)
	}

	empty := coalesceText("x", map[string]bool{}, "nothing")
	if empty != "COALESCE(NULL::text)" {
		t.Errorf("empty coalesce = %s", empty)
	}
}

// TestBuildIntegration runs the full load against a real PostgreSQL
// instance. Set AER_TEST_PG to a connection host to enable, e.g.
// AER_TEST_PG=localhost with AER_TEST_PG_USER/AER_TEST_PG_PASS set.
func TestBuildIntegration(t *testing.T) {
	host, ok := os.LookupEnv("AER_TEST_PG")
	if !ok {
		t.Skip("AER_TEST_PG not set")
	}

	cfg := Config{
		Host:     host,
		Port:     5432,
		User:     os.Getenv("AER_TEST_PG_USER"),
		Password: os.Getenv("AER_TEST_PG_PASS"),
		Database: "aer_crawler_test",
	}

	ctx := context.Background()
	if err := EnsureDatabase(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	b, err := NewBuilder(ctx, cfg, fakeDataTree(t))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Build(ctx); err != nil {
		t.Fatal(err)
	}

	var wells int
	if err := b.pool.QueryRow(ctx, `SELECT count(*) FROM dim.dim_well`).Scan(&wells); err != nil {
		t.Fatal(err)
	}
	if wells != 2 {
		t.Errorf("dim_well has %d rows, want 2", wells)
	}

	var rows int
	err = b.pool.QueryRow(ctx,
		`SELECT count(*) FROM raw.well_summary_report__geological_tops_markers`).Scan(&rows)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 6 {
		t.Errorf("raw rows = %d, want 6", rows)
	}
}
