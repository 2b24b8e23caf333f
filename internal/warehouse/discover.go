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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordRE    = regexp.MustCompile(`[^0-9A-Za-z_]+`)
	underscoreRE = regexp.MustCompile(`_+`)
)

// Snake reduces any header or folder name to a PostgreSQL-safe
// identifier: NFKD-folded, lowercased, non-word runs collapsed to a
// single underscore, capped at the 63-byte identifier limit.
func Snake(s string) string {
	s = norm.NFKD.String(s)
	s = nonWordRE.ReplaceAllString(s, "_")
	s = underscoreRE.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))

	if s == "" {
		s = "col"
	}
	if len(s) > 63 {
		s = s[:63]
	}

	return s
}

// sheetFromFilename extracts the sheet part of a staged file name,
// which is "<uwi>__<Sheet>.csv".
func sheetFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if _, sheet, ok := strings.Cut(base, "__"); ok {
		return Snake(sheet)
	}
	return Snake(base)
}

// FileInfo locates one staged CSV inside the Data layout.
type FileInfo struct {
	Path      string
	Dashboard string
	Sheet     string
	UWIShort  string
}

// DatasetKey identifies one raw table's worth of files.
type DatasetKey struct {
	Dashboard string
	Sheet     string
}

// RawTable returns the raw table name for the dataset,
// e.g. "well_summary_report__completion_interval".
func (k DatasetKey) RawTable() string {
	return k.Dashboard + "__" + k.Sheet
}

// DiscoverFiles walks the Data layout and groups every staged CSV by
// (dashboard, sheet). Layout: Data/<UWI_Short>/<Dashboard>/<file>.csv.
func DiscoverFiles(root string) (map[DatasetKey][]FileInfo, error) {
	datasets := make(map[DatasetKey][]FileInfo)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// worker scratch and snapshot dirs are not wells
			if strings.HasPrefix(d.Name(), "_") || d.Name() == "errors" {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.ToLower(filepath.Ext(path)) != ".csv" {
			return nil
		}

		dashDir := filepath.Dir(path)
		wellDir := filepath.Dir(dashDir)

		key := DatasetKey{
			Dashboard: Snake(filepath.Base(dashDir)),
			Sheet:     sheetFromFilename(path),
		}

		datasets[key] = append(datasets[key], FileInfo{
			Path:      path,
			Dashboard: key.Dashboard,
			Sheet:     key.Sheet,
			UWIShort:  filepath.Base(wellDir),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return datasets, nil
}

// WellDirs lists the per-well directories directly under the Data root,
// sorted by the walk order (lexical).
func WellDirs(root string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}

	var wells []string
	for _, e := range entries {
		name := filepath.Base(e)
		if strings.HasPrefix(name, "_") || name == "errors" {
			continue
		}

		if info, err := os.Stat(e); err == nil && info.IsDir() {
			wells = append(wells, name)
		}
	}

	return wells, nil
}
