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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/prairiedata/aer-crawler/internal/actions"
	"github.com/prairiedata/aer-crawler/internal/download"
	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/prairiedata/aer-crawler/internal/normalize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrorWellLocked is returned when another machine holds a fresh lock on
// the well.
var ErrorWellLocked = errors.New("well locked by another worker")

type browserWrapper struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func newBrowserWrapper(headless bool) (*browserWrapper, error) {
	log.Debug().Msg("starting a new browser instance")

	wrapper := new(browserWrapper)
	if browserPath, ok := os.LookupEnv("BROWSER"); ok {
		wrapper.launcher = launcher.New().Bin(browserPath)
	} else {
		wrapper.launcher = launcher.New()
	}

	wrapper.launcher = wrapper.launcher.Headless(headless)

	controlURL, err := wrapper.launcher.Launch()
	if err != nil {
		return nil, err
	}
	wrapper.browser = rod.New().ControlURL(controlURL)

	return wrapper, wrapper.browser.Connect()
}

func (bw *browserWrapper) close() error {
	log.Debug().Msg("closing browser instance")

	if err := bw.browser.Close(); err != nil {
		return err
	}
	bw.launcher.Cleanup()

	return nil
}

// setDownloadDir points the browser's downloads at the worker's scratch
// directory so concurrent workers never race over files.
func (bw *browserWrapper) setDownloadDir(dir string) error {
	return proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: dir,
	}.Call(bw.browser)
}

// Run drains the well queue with the configured number of browser
// workers, then optionally pushes the staging directory to the remote.
// Per-well failures are retried and logged; only context cancellation
// aborts the run.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().
		Int("wells", r.jobs.len()).
		Int("workers", r.workers).
		Strs("dashboards", r.dashCodes).
		Msg("starting run")

	if err := r.locker.PurgeExpired(); err != nil {
		log.Warn().Err(err).Msg("purging expired locks")
	}

	g, ctx := errgroup.WithContext(ctx)
	for id := range r.workers {
		g.Go(func() error {
			return r.worker(ctx, id)
		})
	}

	err := g.Wait()

	if r.pushAfter {
		log.Info().Str("dir", r.dataDir).Msg("pushing staged data")
		if pushErr := r.remote.Push(r.dataDir, "Data", pushExcludes); pushErr != nil {
			err = errors.Join(err, pushErr)
		}
	}

	return err
}

// worker pulls wells off the queue until it is drained or the context
// dies. Each worker owns one browser and one scratch download dir.
func (r *Runner) worker(ctx context.Context, id int) error {
	dlDir := filepath.Join(r.dataDir, fmt.Sprintf("_tmp_worker_%d", id))
	if err := os.MkdirAll(dlDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(dlDir)

	bw, err := newBrowserWrapper(r.headless)
	if err != nil {
		return err
	}
	defer func() { bw.close() }()

	if err := bw.setDownloadDir(dlDir); err != nil {
		return err
	}

	wlog := log.With().Int("worker", id).Logger()

	// a failed well leaves the browser in an unknown state; start fresh
	restart := func() error {
		if err := bw.close(); err != nil {
			wlog.Warn().Err(err).Msg("closing browser for restart")
		}

		fresh, err := newBrowserWrapper(r.headless)
		if err != nil {
			return err
		}
		bw = fresh

		return bw.setDownloadDir(dlDir)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		j := r.jobs.next()
		if j == nil {
			wlog.Debug().Msg("queue drained")
			return nil
		}

		err := r.scrapeWell(ctx, bw, dlDir, j.well)
		switch {
		case err == nil, errors.Is(err, ErrorWellLocked):

		case errors.Is(err, context.Canceled):
			return err

		default:
			wlog.Error().Err(err).Str("well", j.well.Label).Msg("well failed")
			if r.jobs.requeue(j) {
				wlog.Info().Str("well", j.well.Label).Int("attempt", j.attempts).Msg("requeued")
			} else {
				wlog.Error().Str("well", j.well.Label).Msg("giving up on well")
			}

			if err := restart(); err != nil {
				return err
			}
		}
	}
}

// scrapeWell processes every requested dashboard for one well under its
// distributed lock.
func (r *Runner) scrapeWell(ctx context.Context, bw *browserWrapper, dlDir string, well *models.Well) (err error) {
	if !r.force && r.tracker.CanSkip(well.Label, r.dashCodes) {
		log.Info().Str("well", well.Label).Msg("already complete, skipping")
		return nil
	}

	acquired, err := r.locker.Acquire(well.Entry)
	if err != nil {
		return err
	}
	if !acquired {
		log.Info().Str("well", well.Label).Msg("locked elsewhere, skipping")
		return ErrorWellLocked
	}

	hb := r.locker.StartHeartbeat(well.Entry)
	defer func() {
		hb.Stop()
		if releaseErr := r.locker.Release(well.Entry); releaseErr != nil {
			log.Warn().Err(releaseErr).Str("well", well.Label).Msg("releasing lock")
		}
	}()

	if err := r.tracker.EnsureWell(well); err != nil {
		return err
	}

	page, err := bw.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return err
	}
	defer page.Close()

	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			actions.GrabErrorSnapshot(page, r.errorDir, well.Label)
		}
	}()

	// one broken dashboard must not cost the well its others
	for _, dash := range r.dashCodes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if dashErr := r.scrapeDashboard(ctx, page, dlDir, well, dash); dashErr != nil {
			log.Error().Err(dashErr).Str("well", well.Label).Str("dashboard", dash).
				Msg("dashboard failed")
			err = errors.Join(err, fmt.Errorf("%s: %w", dash, dashErr))
		}
	}

	if err == nil {
		log.Info().Str("well", well.Label).Msg("well done")
	}

	return err
}

// openDashboard navigates to the well's view of a dashboard, waits out
// the viz settle period, and opens the crosstab dialog.
func (r *Runner) openDashboard(page *rod.Page, well *models.Well, dash string) (*rod.Page, actions.CrosstabState, error) {
	url, err := r.cfg.DashboardURL(dash, well.Wrapped)
	if err != nil {
		return nil, actions.CrosstabUnknown, err
	}

	log.Debug().Str("well", well.Label).Str("dashboard", dash).Msg("loading viz")

	if err := page.Navigate(url); err != nil {
		return nil, actions.CrosstabUnknown, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, actions.CrosstabUnknown, err
	}

	time.Sleep(r.cfg.VizSettle)

	viz, err := actions.EnterVizContext(page, r.timeout)
	if err != nil {
		return nil, actions.CrosstabUnknown, err
	}

	dlgState, err := actions.OpenCrosstabDialog(viz, r.timeout)
	if err != nil {
		return nil, actions.CrosstabUnknown, err
	}

	return viz, dlgState, nil
}

// pendingSheets applies the sheet filter and returns the sheets still
// owed for a dashboard. With force set every kept sheet is owed again.
func (r *Runner) pendingSheets(well *models.Well, dash string, sheets []string) ([]string, error) {
	kept := make([]string, 0, len(sheets))
	for _, s := range sheets {
		if r.keepSheet(dash, s) {
			kept = append(kept, s)
		}
	}

	if r.force {
		return kept, nil
	}

	wellState := r.tracker.Load(well.Label)
	incomplete := r.tracker.IncompleteSheets(wellState, dash, kept)
	if err := r.tracker.Save(wellState); err != nil {
		return nil, err
	}

	return incomplete, nil
}

// needsDialogReopen reports whether the crosstab dialog has to be opened
// again before the next sheet. Clicking the dialog's export button
// dismisses it, so every sheet after the first needs the flyout dance.
func needsDialogReopen(exported int, state actions.CrosstabState) bool {
	return exported > 0 || state != actions.CrosstabReady
}

// scrapeDashboard exports every incomplete sheet of one dashboard for
// one well. Dashboards the manifest and state already prove complete are
// finalized without loading the viz at all.
func (r *Runner) scrapeDashboard(ctx context.Context, page *rod.Page, dlDir string, well *models.Well, dash string) error {
	var incomplete []string

	sheets, haveManifest := r.tracker.LoadManifest(well.Label, dash)
	if haveManifest {
		var err error
		if incomplete, err = r.pendingSheets(well, dash, sheets); err != nil {
			return err
		}

		if len(incomplete) == 0 {
			log.Info().Str("well", well.Label).Str("dashboard", dash).Msg("nothing to export")
			return r.finalizeDashboard(well, dash)
		}
	}

	viz, dlgState, err := r.openDashboard(page, well, dash)
	if err != nil {
		return err
	}
	defer func() { actions.CloseDialog(viz) }()

	if !haveManifest {
		if sheets, viz, dlgState, err = r.discoverSheets(page, viz, well, dash, dlgState); err != nil {
			return err
		}

		if err := r.tracker.SaveManifest(well.Label, dash, sheets); err != nil {
			return err
		}

		if incomplete, err = r.pendingSheets(well, dash, sheets); err != nil {
			return err
		}

		if len(incomplete) == 0 {
			log.Info().Str("well", well.Label).Str("dashboard", dash).Msg("nothing to export")
			return r.finalizeDashboard(well, dash)
		}
	}

	for i, sheet := range incomplete {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if needsDialogReopen(i, dlgState) {
			actions.CloseDialog(viz)
			actions.GuardSessionReset(viz)

			if dlgState, err = actions.OpenCrosstabDialog(viz, r.timeout); err != nil {
				return err
			}
		}

		if dlgState != actions.CrosstabReady {
			return fmt.Errorf("crosstab %s with %d sheets pending", dlgState, len(incomplete)-i)
		}

		if err := actions.EnsureCSVFormat(viz, r.timeout); err != nil {
			return err
		}

		if err := r.exportSheet(ctx, viz, dlDir, well, dash, sheet); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
	}

	return r.finalizeDashboard(well, dash)
}

// discoverSheets reads the sheet list off the open dialog. An empty
// dialog is retried with a fresh page load in case the viz had not
// finished rendering; a dashboard that is genuinely empty for this well
// yields an empty manifest, which is still persisted by the caller.
// It returns the viz handle of the last page load alongside the sheets.
func (r *Runner) discoverSheets(page *rod.Page, viz *rod.Page, well *models.Well, dash string, dlgState actions.CrosstabState) ([]string, *rod.Page, actions.CrosstabState, error) {
	for attempt := 0; ; attempt++ {
		if dlgState == actions.CrosstabReady {
			sheets, err := actions.ListSheets(viz, r.timeout)
			if err != nil {
				return nil, viz, dlgState, err
			}
			if len(sheets) > 0 {
				return sheets, viz, dlgState, nil
			}
		}

		if attempt >= r.refreshRetries {
			log.Info().Str("well", well.Label).Str("dashboard", dash).Msg("no sheets for this well")
			return nil, viz, dlgState, nil
		}

		log.Debug().Str("well", well.Label).Str("dashboard", dash).Int("attempt", attempt+1).
			Msg("empty dialog, reloading viz")
		actions.CloseDialog(viz)

		var err error
		if viz, dlgState, err = r.openDashboard(page, well, dash); err != nil {
			return nil, viz, dlgState, err
		}
	}
}

// finalizeDashboard marks the dashboard done and drops the completion
// marker other machines cheaply probe for.
func (r *Runner) finalizeDashboard(well *models.Well, dash string) error {
	if err := r.tracker.MarkDashboardDone(well.Label, dash); err != nil {
		return err
	}

	marker := "Data/" + well.Label + "/" + dash + "/.COMPLETE"
	if err := r.remote.PutText(marker, time.Now().UTC().Format(time.RFC3339)+"\n"); err != nil {
		log.Warn().Err(err).Str("key", marker).Msg("writing completion marker")
	}

	log.Info().Str("well", well.Label).Str("dashboard", dash).Msg("dashboard complete")

	return nil
}

// exportSheet selects one sheet, triggers the export, stages the
// download, normalizes it, and uploads it.
func (r *Runner) exportSheet(ctx context.Context, viz *rod.Page, dlDir string, well *models.Well, dash, sheet string) error {
	log.Info().Str("well", well.Label).Str("dashboard", dash).Str("sheet", sheet).Msg("exporting sheet")

	if actions.SelectedSheet(viz) != sheet {
		if err := actions.SelectSheet(viz, sheet, r.timeout); err != nil {
			return err
		}
	}

	watcher, err := download.NewWatcher(dlDir)
	if err != nil {
		return err
	}

	if err := actions.ClickExport(viz, r.timeout); err != nil {
		return err
	}

	src, err := watcher.Wait(ctx, r.downloadTimeout)
	if err != nil {
		return err
	}

	dest, err := download.Place(src, r.dataDir, well.Label, dash, sheet)
	if err != nil {
		return err
	}

	if err := normalize.File(dest, well, dash, sheet); err != nil {
		return err
	}

	key := "Data/" + well.Label + "/" + dash + "/" + filepath.Base(dest)
	uploaded, err := r.remote.CopyToIfNew(dest, key)
	if err != nil {
		return err
	}
	if !uploaded {
		log.Debug().Str("key", key).Msg("remote copy already present")
	}

	return r.tracker.MarkSheetComplete(well.Label, dash, sheet, key)
}
