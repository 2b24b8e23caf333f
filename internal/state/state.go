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

// Package state tracks, per well, which dashboard sheets have already been
// exported and staged. State lives as one JSON object per well in the same
// object store the data goes to, so any machine can pick up where another
// left off. Writes are last-writer-wins; only the lock holder writes.
package state

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/rclone"
	"github.com/rs/zerolog/log"
)

// timeNow is stubbed in tests.
var timeNow = time.Now

// Sheet and dashboard status values.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

// Sheet records the staging status of a single exported sheet.
type Sheet struct {
	Status string `json:"status"`
	S3Key  string `json:"s3_key"`
}

// Dashboard records per-dashboard progress for one well.
type Dashboard struct {
	Status     string            `json:"status"`
	LastUpdate *models.Time      `json:"last_update"`
	Files      map[string]*Sheet `json:"files"`
}

func (d *Dashboard) recomputeStatus() {
	for _, sheet := range d.Files {
		if sheet.Status != StatusComplete {
			d.Status = StatusIncomplete
			return
		}
	}

	// a dashboard with no sheets counts as complete
	d.Status = StatusComplete
}

// Well is the full per-well state object.
type Well struct {
	WellLabel     string                `json:"well_label"`
	UWIWrapped    string                `json:"uwi_wrapped"`
	WellsTxtEntry string                `json:"wells_txt_entry,omitempty"`
	Dashboards    map[string]*Dashboard `json:"dashboards"`
	UpdatedAt     *models.Time          `json:"updated_at"`
}

func newWell(label string) *Well {
	return &Well{
		WellLabel:  label,
		Dashboards: make(map[string]*Dashboard),
		UpdatedAt:  models.NewTime(),
	}
}

func (w *Well) dashboard(code string) *Dashboard {
	if w.Dashboards == nil {
		w.Dashboards = make(map[string]*Dashboard)
	}

	d, ok := w.Dashboards[code]
	if !ok {
		d = &Dashboard{
			Status:     StatusIncomplete,
			LastUpdate: models.NewTime(),
			Files:      make(map[string]*Sheet),
		}
		w.Dashboards[code] = d
	}

	if d.Files == nil {
		d.Files = make(map[string]*Sheet)
	}

	if d.LastUpdate == nil {
		d.LastUpdate = models.NewTime()
	}

	return d
}

// Tracker reads and writes per-well state objects.
type Tracker struct {
	store rclone.Store
}

// NewTracker returns a [*Tracker] backed by the given store.
func NewTracker(store rclone.Store) *Tracker {
	return &Tracker{store: store}
}

// StateKey returns the state object key for a well label.
func StateKey(label string) string {
	return "state/wells/" + label + ".json"
}

// Load fetches a well's state. Missing or corrupt state degrades to a
// fresh object; it never fails the well.
func (t *Tracker) Load(label string) *Well {
	text, ok := t.store.ReadText(StateKey(label))
	if !ok || strings.TrimSpace(text) == "" {
		return newWell(label)
	}

	w := newWell(label)
	if err := json.Unmarshal([]byte(strings.TrimPrefix(text, "\ufeff")), w); err != nil {
		log.Warn().Err(err).Str("well", label).Msg("corrupt state object, starting fresh")
		return newWell(label)
	}

	w.WellLabel = label
	if w.Dashboards == nil {
		w.Dashboards = make(map[string]*Dashboard)
	}
	if w.UpdatedAt == nil {
		w.UpdatedAt = models.NewTime()
	}

	return w
}

// Save persists a well's state, stamping updated_at.
func (t *Tracker) Save(w *Well) error {
	w.UpdatedAt = models.NewTimeValid(timeNow())

	body, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}

	if err := t.store.PutText(StateKey(w.WellLabel), string(body)); err != nil {
		return err
	}

	log.Debug().Str("key", StateKey(w.WellLabel)).Msg("state saved")

	return nil
}

// EnsureWell makes sure a state object exists with the well's identity
// fields filled in.
func (t *Tracker) EnsureWell(well *models.Well) error {
	w := t.Load(well.Label)

	if w.UWIWrapped == "" {
		w.UWIWrapped = well.Wrapped
	}
	if w.WellsTxtEntry == "" {
		w.WellsTxtEntry = well.Entry
	}

	return t.Save(w)
}

// IncompleteSheets seeds an entry for every expected sheet and returns the
// ones that are not yet complete, preserving manifest order.
func (t *Tracker) IncompleteSheets(w *Well, dashCode string, allSheets []string) []string {
	d := w.dashboard(dashCode)

	for _, sheet := range allSheets {
		if _, ok := d.Files[sheet]; !ok {
			d.Files[sheet] = &Sheet{Status: StatusIncomplete}
		}
	}

	var incomplete []string
	for _, sheet := range allSheets {
		if d.Files[sheet].Status != StatusComplete {
			incomplete = append(incomplete, sheet)
		}
	}

	return incomplete
}

// MarkSheetComplete records one staged sheet and recomputes the dashboard
// status. It reloads before writing so concurrent progress on other
// dashboards is not clobbered more than necessary.
func (t *Tracker) MarkSheetComplete(label, dashCode, sheet, s3Key string) error {
	w := t.Load(label)
	d := w.dashboard(dashCode)

	f, ok := d.Files[sheet]
	if !ok {
		f = &Sheet{}
		d.Files[sheet] = f
	}

	f.Status = StatusComplete
	f.S3Key = s3Key
	d.LastUpdate = models.NewTimeValid(timeNow())
	d.recomputeStatus()

	return t.Save(w)
}

// MarkDashboardDone finalizes a dashboard's status from its sheet entries.
func (t *Tracker) MarkDashboardDone(label, dashCode string) error {
	w := t.Load(label)
	d := w.dashboard(dashCode)

	d.recomputeStatus()
	d.LastUpdate = models.NewTimeValid(timeNow())

	return t.Save(w)
}

// CanSkip reports whether every requested dashboard is already complete
// for the well.
func (t *Tracker) CanSkip(label string, dashCodes []string) bool {
	w := t.Load(label)
	if len(w.Dashboards) == 0 {
		return false
	}

	for _, code := range dashCodes {
		d, ok := w.Dashboards[code]
		if !ok || d.Status != StatusComplete {
			return false
		}
	}

	return true
}

// ManifestKey returns the sheets.txt key for a well and dashboard.
func ManifestKey(label, dashCode string) string {
	return "Data/" + label + "/" + dashCode + "/sheets.txt"
}

// LoadManifest fetches the expected sheet list for a well's dashboard.
// ok is false when no manifest has been published yet.
func (t *Tracker) LoadManifest(label, dashCode string) (sheets []string, ok bool) {
	text, ok := t.store.ReadText(ManifestKey(label, dashCode))
	if !ok {
		return nil, false
	}

	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sheets = append(sheets, line)
		}
	}

	return sheets, true
}

// SaveManifest publishes the sheet list, empty or not: an empty manifest
// is what lets wells with no exports terminate.
func (t *Tracker) SaveManifest(label, dashCode string, sheets []string) error {
	if err := t.store.PutText(ManifestKey(label, dashCode), strings.Join(sheets, "\n")); err != nil {
		return err
	}

	log.Debug().Str("key", ManifestKey(label, dashCode)).Msg("manifest saved")

	return nil
}
