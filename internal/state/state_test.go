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

package state

import (
	"slices"
	"strings"
	"testing"

	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/rclone"
)

// memStore is a minimal in-memory [rclone.Store] for state tests.
type memStore struct {
	objects map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]string)}
}

func (m *memStore) ReadText(key string) (string, bool) {
	text, ok := m.objects[key]
	return text, ok
}

func (m *memStore) PutText(key, text string) error {
	m.objects[key] = text
	return nil
}

func (m *memStore) List(prefix string) ([]rclone.Entry, error) { return nil, nil }
func (m *memStore) Delete(key string) error                    { delete(m.objects, key); return nil }
func (m *memStore) Touch(key string) error                     { return nil }

const (
	testLabel = "01-01-099-14W4"
	testDash  = "Well_Summary_Report"
)

func testSheets() []string {
	return []string{"Completion Interval", "Status History", "Geological Tops"}
}

func TestEnsureWellAndLoad(t *testing.T) {
	tracker := NewTracker(newMemStore())
	well := models.NewWell(testLabel)

	if err := tracker.EnsureWell(well); err != nil {
		t.Fatal(err)
	}

	w := tracker.Load(testLabel)
	if w.UWIWrapped != "00/01-01-099-14W4/0" {
		t.Errorf("uwi_wrapped = %q", w.UWIWrapped)
	}

	if w.WellsTxtEntry != testLabel {
		t.Errorf("wells_txt_entry = %q", w.WellsTxtEntry)
	}

	if _, ok := w.UpdatedAt.Get(); !ok {
		t.Error("updated_at not stamped")
	}
}

func TestCorruptStateDegradesToFresh(t *testing.T) {
	store := newMemStore()
	store.objects[StateKey(testLabel)] = "\ufeff{not json at all"

	w := NewTracker(store).Load(testLabel)
	if w.WellLabel != testLabel {
		t.Errorf("label = %q", w.WellLabel)
	}

	if len(w.Dashboards) != 0 {
		t.Error("fresh state should have no dashboards")
	}
}

func TestIncompleteSheetsSeedsEntries(t *testing.T) {
	tracker := NewTracker(newMemStore())
	w := tracker.Load(testLabel)

	incomplete := tracker.IncompleteSheets(w, testDash, testSheets())
	if !slices.Equal(incomplete, testSheets()) {
		t.Errorf("incomplete = %v", incomplete)
	}

	d := w.Dashboards[testDash]
	if len(d.Files) != 3 {
		t.Errorf("seeded %d sheet entries, want 3", len(d.Files))
	}
}

func TestMarkSheetComplete(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	w := tracker.Load(testLabel)
	tracker.IncompleteSheets(w, testDash, testSheets())
	if err := tracker.Save(w); err != nil {
		t.Fatal(err)
	}

	for i, sheet := range testSheets() {
		key := "Data/" + testLabel + "/" + testDash + "/" + sheet + ".csv"
		if err := tracker.MarkSheetComplete(testLabel, testDash, sheet, key); err != nil {
			t.Fatal(err)
		}

		w = tracker.Load(testLabel)
		d := w.Dashboards[testDash]

		last := i == len(testSheets())-1
		if last && d.Status != StatusComplete {
			t.Error("dashboard not complete after last sheet")
		}
		if !last && d.Status != StatusIncomplete {
			t.Errorf("dashboard complete after %d/%d sheets", i+1, len(testSheets()))
		}
	}

	w = tracker.Load(testLabel)
	remaining := tracker.IncompleteSheets(w, testDash, testSheets())
	if len(remaining) != 0 {
		t.Errorf("still incomplete: %v", remaining)
	}
}

func TestCanSkip(t *testing.T) {
	tracker := NewTracker(newMemStore())

	if tracker.CanSkip(testLabel, []string{testDash}) {
		t.Error("CanSkip true for a well with no state")
	}

	w := tracker.Load(testLabel)
	tracker.IncompleteSheets(w, testDash, []string{"Only Sheet"})
	if err := tracker.Save(w); err != nil {
		t.Fatal(err)
	}

	if tracker.CanSkip(testLabel, []string{testDash}) {
		t.Error("CanSkip true with incomplete sheets")
	}

	if err := tracker.MarkSheetComplete(testLabel, testDash, "Only Sheet", "k"); err != nil {
		t.Fatal(err)
	}

	if !tracker.CanSkip(testLabel, []string{testDash}) {
		t.Error("CanSkip false after completion")
	}

	if tracker.CanSkip(testLabel, []string{testDash, "Well_Gas_Analysis"}) {
		t.Error("CanSkip true for a dashboard never seen")
	}
}

func TestEmptyDashboardCountsComplete(t *testing.T) {
	tracker := NewTracker(newMemStore())

	w := tracker.Load(testLabel)
	tracker.IncompleteSheets(w, testDash, nil)
	if err := tracker.Save(w); err != nil {
		t.Fatal(err)
	}

	if err := tracker.MarkDashboardDone(testLabel, testDash); err != nil {
		t.Fatal(err)
	}

	if !tracker.CanSkip(testLabel, []string{testDash}) {
		t.Error("empty dashboard should be skippable once finalized")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	tracker := NewTracker(newMemStore())

	if _, ok := tracker.LoadManifest(testLabel, testDash); ok {
		t.Error("manifest reported present before save")
	}

	if err := tracker.SaveManifest(testLabel, testDash, testSheets()); err != nil {
		t.Fatal(err)
	}

	sheets, ok := tracker.LoadManifest(testLabel, testDash)
	if !ok {
		t.Fatal("manifest missing after save")
	}

	if !slices.Equal(sheets, testSheets()) {
		t.Errorf("manifest = %v", sheets)
	}
}

func TestEmptyManifestRoundTrip(t *testing.T) {
	tracker := NewTracker(newMemStore())

	if err := tracker.SaveManifest(testLabel, testDash, nil); err != nil {
		t.Fatal(err)
	}

	sheets, ok := tracker.LoadManifest(testLabel, testDash)
	if !ok {
		t.Fatal("empty manifest should still exist")
	}

	if len(sheets) != 0 {
		t.Errorf("expected no sheets, got %v", sheets)
	}
}

func TestStateJSONShape(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	if err := tracker.EnsureWell(models.NewWell(testLabel)); err != nil {
		t.Fatal(err)
	}

	raw := store.objects[StateKey(testLabel)]
	for _, field := range []string{`"well_label"`, `"uwi_wrapped"`, `"dashboards"`, `"updated_at"`} {
		if !strings.Contains(raw, field) {
			t.Errorf("state JSON missing %s: %s", field, raw)
		}
	}
}
