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

// Package runner orchestrates the scrape: it fans a list of wells out to
// browser workers, walks every dashboard and sheet for each well, and
// keeps the shared lock and state objects honest along the way.
package runner

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prairiedata/aer-crawler/internal/config"
	"github.com/prairiedata/aer-crawler/internal/lock"
	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/normalize"
	"github.com/prairiedata/aer-crawler/internal/rclone"
	"github.com/prairiedata/aer-crawler/internal/state"
)

// Runner manages and orchestrates the process of exporting dashboard
// crosstabs for a set of wells.
type Runner struct {
	cfg     *config.Config
	remote  *rclone.Remote
	tracker *state.Tracker
	locker  *lock.Locker

	jobs *queue

	dashCodes []string

	// sheetFilter maps a dashboard key to the sheets kept for it; the
	// "" key holds sheets that apply to every dashboard.
	sheetFilter map[string]map[string]bool

	workers         int
	headless        bool
	pushAfter       bool
	force           bool
	timeout         time.Duration
	downloadTimeout time.Duration
	refreshRetries  int

	dataDir  string
	errorDir string
}

// pushExcludes keeps worker scratch space and local noise out of the
// object store.
var pushExcludes = []string{"_tmp_worker_*/**", "**/.DS_Store", "*.tmp"}

// RunnerOpt represents a function that is used to configure an instance
// of [Runner].
type RunnerOpt func(r *Runner)

// Workers sets the number of concurrent browser workers.
func Workers(n int) RunnerOpt {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// Headless configures whether the workers launch their browsers in
// headless mode.
func Headless(b bool) RunnerOpt {
	return func(r *Runner) {
		r.headless = b
	}
}

// Timeout sets the time limit for each browser action.
func Timeout(t time.Duration) RunnerOpt {
	return func(r *Runner) {
		r.timeout = t
	}
}

// DownloadTimeout sets how long a worker waits for an export to land.
func DownloadTimeout(t time.Duration) RunnerOpt {
	return func(r *Runner) {
		r.downloadTimeout = t
	}
}

// Dashboards restricts the run to the named dashboard codes. The
// special value "all" selects every configured dashboard.
func Dashboards(codes []string) RunnerOpt {
	return func(r *Runner) {
		r.dashCodes = codes
	}
}

// SheetFilter restricts exports to the named sheets. Each spec is either
// a bare sheet name, applied to every dashboard, or a per-dashboard
// entry of the form "Dash:SheetA|SheetB"; specs may be joined with ";".
// Names are compared loosely, ignoring case and punctuation. An empty
// filter keeps everything.
func SheetFilter(specs []string) RunnerOpt {
	return func(r *Runner) {
		for _, spec := range specs {
			for _, entry := range strings.Split(spec, ";") {
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}

				dashKey := ""
				sheetsPart := entry
				if dash, sheets, found := strings.Cut(entry, ":"); found {
					dashKey = normalize.NormKey(dash)
					sheetsPart = sheets
				}

				for _, sheet := range strings.Split(sheetsPart, "|") {
					sheet = strings.TrimSpace(sheet)
					if sheet == "" {
						continue
					}

					if r.sheetFilter == nil {
						r.sheetFilter = make(map[string]map[string]bool)
					}
					if r.sheetFilter[dashKey] == nil {
						r.sheetFilter[dashKey] = make(map[string]bool)
					}
					r.sheetFilter[dashKey][normalize.NormKey(sheet)] = true
				}
			}
		}
	}
}

// Force makes the runner re-export every sheet even when the shared
// state already marks it complete.
func Force(b bool) RunnerOpt {
	return func(r *Runner) {
		r.force = b
	}
}

// DataDir sets the local staging directory for downloaded exports.
func DataDir(dir string) RunnerOpt {
	return func(r *Runner) {
		r.dataDir = dir
	}
}

// PushAfter configures the runner to rclone the staging directory to
// the remote once the run finishes.
func PushAfter(b bool) RunnerOpt {
	return func(r *Runner) {
		r.pushAfter = b
	}
}

// keepSheet applies the sheet filter to one manifest entry. Dashboards
// the filter never mentions keep all their sheets.
func (r *Runner) keepSheet(dash, sheet string) bool {
	if len(r.sheetFilter) == 0 {
		return true
	}

	dashSheets := r.sheetFilter[normalize.NormKey(dash)]
	global := r.sheetFilter[""]
	if dashSheets == nil && len(global) == 0 {
		return true
	}

	key := normalize.NormKey(sheet)
	return dashSheets[key] || global[key]
}

// New returns a newly instantiated and configured [Runner] for the
// given wells.
func New(cfg *config.Config, remote *rclone.Remote, wells []*models.Well, opts ...RunnerOpt) (*Runner, error) {
	r := &Runner{
		cfg:             cfg,
		remote:          remote,
		tracker:         state.NewTracker(remote),
		locker:          lock.New(remote, cfg.Lock.TTL, cfg.Lock.Heartbeat),
		workers:         1,
		timeout:         60 * time.Second,
		downloadTimeout: 3 * time.Minute,
		refreshRetries:  2,
		dataDir:         "./Data",
	}

	for _, optFn := range opts {
		optFn(r)
	}

	r.dashCodes = cfg.DashboardCodes(r.dashCodes)
	r.jobs = newQueue(wells)

	r.errorDir = filepath.Join(r.dataDir, "errors")
	if err := os.MkdirAll(r.errorDir, 0755); err != nil {
		return nil, err
	}

	return r, nil
}
