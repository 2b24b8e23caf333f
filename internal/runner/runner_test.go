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

package runner

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/prairiedata/aer-crawler/internal/actions"
	"github.com/prairiedata/aer-crawler/internal/config"
	"github.com/prairiedata/aer-crawler/internal/lock"
	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/rclone"
	"github.com/prairiedata/aer-crawler/internal/state"
)

// memStore is a minimal in-memory [rclone.Store] for runner tests.
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

func testWells(entries ...string) []*models.Well {
	wells := make([]*models.Well, len(entries))
	for i, e := range entries {
		wells[i] = models.NewWell(e)
	}
	return wells
}

func TestQueueOrder(t *testing.T) {
	q := newQueue(testWells("a", "b", "c"))

	for _, want := range []string{"a", "b", "c"} {
		j := q.next()
		if j == nil || j.well.Entry != want {
			t.Fatalf("next = %v, want %s", j, want)
		}
	}

	if q.next() != nil {
		t.Error("drained queue returned a job")
	}
}

func TestQueueRequeueBounded(t *testing.T) {
	q := newQueue(testWells("a"))
	j := q.next()

	if !q.requeue(j) {
		t.Fatal("first requeue refused")
	}
	if q.next() != j {
		t.Fatal("requeued job not returned")
	}

	if !q.requeue(j) {
		t.Fatal("second requeue refused")
	}
	q.next()

	if q.requeue(j) {
		t.Error("job requeued past max attempts")
	}
	if q.len() != 0 {
		t.Errorf("queue len = %d after giving up", q.len())
	}
}

func newTestRunner(t *testing.T, opts ...RunnerOpt) *Runner {
	t.Helper()

	opts = append([]RunnerOpt{DataDir(t.TempDir())}, opts...)
	r, err := New(config.Default(), rclone.New("test:bucket"), testWells("01-01-099-14W4"), opts...)
	if err != nil {
		t.Fatal(err)
	}

	return r
}

func TestNewResolvesDashboards(t *testing.T) {
	r := newTestRunner(t, Dashboards([]string{"Well_Gas_Analysis"}))

	if len(r.dashCodes) != 1 || r.dashCodes[0] != "Well_Gas_Analysis" {
		t.Errorf("dashCodes = %v", r.dashCodes)
	}

	all := newTestRunner(t, Dashboards([]string{"all"}))
	if len(all.dashCodes) != 3 {
		t.Errorf("all resolved to %v", all.dashCodes)
	}
}

func TestSheetFilter(t *testing.T) {
	r := newTestRunner(t, SheetFilter([]string{"Completion Interval"}))

	if !r.keepSheet("Well_Summary_Report", "completion-interval") {
		t.Error("loose match rejected")
	}
	if r.keepSheet("Well_Summary_Report", "Status History") {
		t.Error("unlisted sheet kept")
	}

	unfiltered := newTestRunner(t)
	if !unfiltered.keepSheet("Well_Summary_Report", "anything") {
		t.Error("empty filter should keep everything")
	}
}

func TestSheetFilterPerDashboard(t *testing.T) {
	r := newTestRunner(t, SheetFilter([]string{
		"Well_Summary_Report:Completion Interval|Status History;Well_Gas_Analysis:Gas Analysis",
	}))

	if !r.keepSheet("Well_Summary_Report", "Completion Interval") {
		t.Error("scoped sheet rejected")
	}
	if !r.keepSheet("Well_Summary_Report", "Status History") {
		t.Error("second scoped sheet rejected")
	}
	if r.keepSheet("Well_Summary_Report", "Gas Analysis") {
		t.Error("sheet scoped to another dashboard kept")
	}
	if !r.keepSheet("Well_Gas_Analysis", "Gas Analysis") {
		t.Error("other dashboard's scoped sheet rejected")
	}

	// a dashboard the filter never mentions keeps everything
	if !r.keepSheet("Reservoir_Evaluation", "anything") {
		t.Error("unmentioned dashboard filtered")
	}
}

func TestDialogReopenPerSheet(t *testing.T) {
	tests := []struct {
		exported int
		state    actions.CrosstabState
		want     bool
	}{
		{0, actions.CrosstabReady, false},
		{1, actions.CrosstabReady, true},
		{0, actions.CrosstabUnknown, true},
		{2, actions.CrosstabEmpty, true},
	}

	for _, tt := range tests {
		if got := needsDialogReopen(tt.exported, tt.state); got != tt.want {
			t.Errorf("needsDialogReopen(%d, %s) = %v, want %v", tt.exported, tt.state, got, tt.want)
		}
	}
}

// newMemRunner wires a runner to an in-memory store so state and
// manifest logic runs without a browser or an rclone binary.
func newMemRunner(t *testing.T) (*Runner, *memStore) {
	t.Helper()

	store := newMemStore()
	r := &Runner{
		cfg:     config.Default(),
		remote:  rclone.New("test:bucket"),
		tracker: state.NewTracker(store),
		locker:  lock.New(store, time.Hour, time.Minute),
		dataDir: t.TempDir(),
	}

	return r, store
}

func TestScrapeDashboardSkipsCompleteWithoutViz(t *testing.T) {
	r, _ := newMemRunner(t)

	well := models.NewWell("01-01-099-14W4")
	dash := "Well_Summary_Report"
	sheets := []string{"Completion Interval", "Status History"}

	if err := r.tracker.SaveManifest(well.Label, dash, sheets); err != nil {
		t.Fatal(err)
	}
	for _, s := range sheets {
		if err := r.tracker.MarkSheetComplete(well.Label, dash, s, "Data/x"); err != nil {
			t.Fatal(err)
		}
	}

	// a nil page would panic on any navigation attempt
	if err := r.scrapeDashboard(context.Background(), nil, t.TempDir(), well, dash); err != nil {
		t.Fatalf("complete dashboard errored: %v", err)
	}
}

func TestPendingSheetsForce(t *testing.T) {
	r, _ := newMemRunner(t)

	well := models.NewWell("01-01-099-14W4")
	dash := "Well_Summary_Report"
	sheets := []string{"Completion Interval", "Status History"}

	for _, s := range sheets {
		if err := r.tracker.MarkSheetComplete(well.Label, dash, s, "Data/x"); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := r.pendingSheets(well, dash, sheets)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none", pending)
	}

	r.force = true
	pending, err = r.pendingSheets(well, dash, sheets)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(pending, sheets) {
		t.Errorf("forced pending = %v, want %v", pending, sheets)
	}
}
