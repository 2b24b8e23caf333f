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

// Package normalize rewrites downloaded crosstab CSVs into a predictable
// shape: UTF-8, comma-separated, with canonical UWI columns and provenance
// columns the warehouse loader keys on.
package normalize

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/rs/zerolog/log"
)

// Canonical column names injected or enforced during normalization.
const (
	ColUWIFormatted = "UWI_Formatted"
	ColUWINumeric   = "UWI_Numeric"
	ColUWIShort     = "UWI_Short"
	ColDashboard    = "Dashboard"
	ColSheet        = "Sheet"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter picks the candidate whose per-line column count is most
// stable across the first 50 non-empty lines.
func DetectDelimiter(text string) rune {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
		if len(lines) == 50 {
			break
		}
	}

	if len(lines) == 0 {
		return ','
	}

	best, bestVar, bestModal := ',', -1, 0
	for _, d := range delimiterCandidates {
		counts := make(map[int]int)
		cols := make([]int, len(lines))
		for i, ln := range lines {
			cols[i] = strings.Count(ln, string(d)) + 1
			counts[cols[i]]++
		}

		modal, modalFreq := 0, 0
		for c, freq := range counts {
			if freq > modalFreq || (freq == modalFreq && c > modal) {
				modal, modalFreq = c, freq
			}
		}

		variance := 0
		for _, c := range cols {
			variance += (c - modal) * (c - modal)
		}

		if bestVar < 0 || variance < bestVar || (variance == bestVar && modal > bestModal) {
			best, bestVar, bestModal = d, variance, modal
		}
	}

	return best
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)

// NormKey reduces a header to its comparison key: lowercase alphanumerics.
func NormKey(header string) string {
	return nonAlnumRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(header)), "")
}

// Header synonyms observed across the AER dashboards. Keys are NormKey
// outputs.
var formattedUWISyns = map[string]bool{
	"wellidentifier":         true,
	"formatteduwi":           true,
	"welluwiformatted":       true,
	"enterwellidentifieruwi": true,
	"prodstringuwiformatted": true,
	"uwiformatted":           true,
}

var numericUWISyns = map[string]bool{
	"welluwi": true,
	"uwi":     true,
}

// CanonicalizeHeader maps UWI-like headers to their canonical names.
// It returns the mapped header row and the index of the formatted-UWI
// column (-1 when absent).
func CanonicalizeHeader(header []string) (mapped []string, idxFormatted int) {
	mapped = make([]string, len(header))
	idxFormatted = -1

	for i, h := range header {
		key := NormKey(h)
		switch {
		case formattedUWISyns[key] || (strings.Contains(key, "uwi") && strings.Contains(key, "formatted")):
			mapped[i] = ColUWIFormatted
			idxFormatted = i

		case numericUWISyns[key] ||
			(strings.Contains(key, "uwi") && !strings.Contains(key, "formatted") && !strings.Contains(key, "identifier")):
			mapped[i] = ColUWINumeric

		default:
			mapped[i] = strings.TrimSpace(h)
		}
	}

	return mapped, idxFormatted
}

// ParseCSV decodes and parses raw CSV bytes with delimiter sniffing.
// Rows are not required to be rectangular.
func ParseCSV(raw []byte) ([][]string, error) {
	text, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = DetectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func contains(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}

// File rewrites one downloaded CSV in place: canonical UWI headers, the
// wrapped UWI filled into blank UWI_Formatted cells, UWI_Short and
// provenance columns appended, all-empty columns dropped, output written
// as UTF-8 with BOM and CRLF line endings. Non-CSV files are left alone.
func File(path string, well *models.Well, dashboard, sheet string) error {
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rows, err := ParseCSV(raw)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	header, idxFormatted := CanonicalizeHeader(rows[0])
	data := rows[1:]

	// pad short rows before any column surgery
	for i, r := range data {
		for len(r) < len(header) {
			r = append(r, "")
		}
		data[i] = r
	}

	if idxFormatted < 0 {
		header = append(header, ColUWIFormatted)
		for i := range data {
			data[i] = append(data[i], well.Wrapped)
		}
	} else {
		for _, r := range data {
			if strings.TrimSpace(r[idxFormatted]) == "" {
				r[idxFormatted] = well.Wrapped
			}
		}
	}

	if !contains(header, ColUWIShort) {
		header = append(header, ColUWIShort)
		for i := range data {
			data[i] = append(data[i], well.Short)
		}
	}

	if !contains(header, ColDashboard) {
		header = append(header, ColDashboard)
		for i := range data {
			data[i] = append(data[i], dashboard)
		}
	}

	if !contains(header, ColSheet) {
		header = append(header, ColSheet)
		for i := range data {
			data[i] = append(data[i], sheet)
		}
	}

	header, data = stripEmptyColumns(header, data)

	log.Debug().
		Str("file", filepath.Base(path)).
		Int("rows", len(data)).
		Int("cols", len(header)).
		Msg("normalized csv")

	return writeCSV(path, header, data)
}

// stripEmptyColumns drops columns with no non-empty data cell.
func stripEmptyColumns(header []string, data [][]string) ([]string, [][]string) {
	keep := make([]int, 0, len(header))
	for i := range header {
		for _, r := range data {
			if i < len(r) && strings.TrimSpace(r[i]) != "" {
				keep = append(keep, i)
				break
			}
		}
	}

	if len(keep) == len(header) {
		return header, data
	}

	outHeader := make([]string, len(keep))
	for j, i := range keep {
		outHeader[j] = header[i]
	}

	outData := make([][]string, len(data))
	for n, r := range data {
		row := make([]string, len(keep))
		for j, i := range keep {
			if i < len(r) {
				row[j] = r[i]
			}
		}
		outData[n] = row
	}

	return outHeader, outData
}

// writeCSV writes the normalized rows through a temp file then renames
// over the original. Rows are squared off to the header width.
func writeCSV(path string, header []string, data [][]string) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	// BOM keeps Excel happy with the UTF-8 output
	if _, err := f.Write([]byte{0xef, 0xbb, 0xbf}); err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true

	width := len(header)
	writeRow := func(r []string) error {
		switch {
		case len(r) < width:
			padded := make([]string, width)
			copy(padded, r)
			r = padded
		case len(r) > width:
			r = r[:width]
		}
		return w.Write(r)
	}

	if err := writeRow(header); err != nil {
		f.Close()
		return err
	}

	for _, r := range data {
		if err := writeRow(r); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
