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

package io

import (
	"slices"

	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/state"
)

// ReportRow is one well+dashboard line of a progress report.
type ReportRow struct {
	WellLabel      string       `csv:"well_label"      json:"well_label"`
	UWIWrapped     string       `csv:"uwi_wrapped"     json:"uwi_wrapped"`
	Dashboard      string       `csv:"dashboard"       json:"dashboard"`
	Status         string       `csv:"status"          json:"status"`
	SheetsComplete int          `csv:"sheets_complete" json:"sheets_complete"`
	SheetsTotal    int          `csv:"sheets_total"    json:"sheets_total"`
	LastUpdate     *models.Time `csv:"last_update"     json:"last_update"`
}

// BuildReport flattens per-well state objects into report rows, sorted
// by well then dashboard. Wells with no dashboard progress yet still get
// a row so they show up as pending.
func BuildReport(wells []*state.Well) []*ReportRow {
	var rows []*ReportRow

	for _, w := range wells {
		if len(w.Dashboards) == 0 {
			rows = append(rows, &ReportRow{
				WellLabel:  w.WellLabel,
				UWIWrapped: w.UWIWrapped,
				Status:     state.StatusIncomplete,
				LastUpdate: w.UpdatedAt,
			})
			continue
		}

		codes := make([]string, 0, len(w.Dashboards))
		for code := range w.Dashboards {
			codes = append(codes, code)
		}
		slices.Sort(codes)

		for _, code := range codes {
			d := w.Dashboards[code]

			complete := 0
			for _, sheet := range d.Files {
				if sheet.Status == state.StatusComplete {
					complete++
				}
			}

			rows = append(rows, &ReportRow{
				WellLabel:      w.WellLabel,
				UWIWrapped:     w.UWIWrapped,
				Dashboard:      code,
				Status:         d.Status,
				SheetsComplete: complete,
				SheetsTotal:    len(d.Files),
				LastUpdate:     d.LastUpdate,
			})
		}
	}

	slices.SortStableFunc(rows, func(a, b *ReportRow) int {
		if a.WellLabel != b.WellLabel {
			if a.WellLabel < b.WellLabel {
				return -1
			}
			return 1
		}
		if a.Dashboard < b.Dashboard {
			return -1
		}
		if a.Dashboard > b.Dashboard {
			return 1
		}
		return 0
	})

	return rows
}
