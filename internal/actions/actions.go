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

// Package actions drives the Tableau viz toolbar and crosstab download
// dialog. Tableau renders the viz either in the top document or inside
// an iframe, so every action runs against the page handle returned by
// [EnterVizContext].
package actions

import (
	"errors"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

var (
	// ErrorDownloadIconNotFound is returned when the toolbar download
	// icon cannot be located in the top document or any iframe.
	ErrorDownloadIconNotFound = errors.New("download icon not found")

	// ErrorCrosstabNotReady is returned when the crosstab dialog never
	// settles into a ready or empty state.
	ErrorCrosstabNotReady = errors.New("crosstab dialog never became ready")
)

const (
	downloadIconSel = "[data-tb-test-id='tb-icons-DownloadBaseIcon']"
	exportButtonSel = "[data-tb-test-id='export-crosstab-export-Button']"

	dialogXPath       = "//*[@role='dialog']"
	crosstabItemXPath = "//*[@data-tb-test-id='download-flyout-TextMenuItem' and .//span[normalize-space()='Crosstab']]"
)

// CrosstabState is the observed state of the crosstab dialog.
type CrosstabState string

// The states the dialog settles into after opening.
const (
	CrosstabReady   CrosstabState = "ready"
	CrosstabEmpty   CrosstabState = "empty"
	CrosstabUnknown CrosstabState = "unknown"
)

// EnterVizContext locates the toolbar download icon and returns the page
// handle it lives in: the top page, or the iframe Tableau embedded the
// viz into.
func EnterVizContext(page *rod.Page, timeout time.Duration) (*rod.Page, error) {
	log.Debug().Msg("locating viz context")

	err := rod.Try(func() {
		page.Timeout(timeout).MustElement(downloadIconSel)
	})
	if err == nil {
		return page, nil
	}

	frames, err := page.Elements("iframe")
	if err != nil {
		return nil, err
	}

	for _, fr := range frames {
		viz, err := fr.Frame()
		if err != nil {
			continue
		}

		err = rod.Try(func() {
			viz.Timeout(timeout / 2).MustElement(downloadIconSel)
		})
		if err == nil {
			log.Debug().Msg("viz lives in an iframe")
			return viz, nil
		}
	}

	return nil, ErrorDownloadIconNotFound
}

// OpenDownloadFlyout clicks the toolbar download icon. The icon itself
// is an SVG, so the click goes to its enclosing button.
func OpenDownloadFlyout(viz *rod.Page, timeout time.Duration) error {
	log.Debug().Msg("opening download flyout")

	return rod.Try(func() {
		viz.Timeout(timeout).
			MustElement(downloadIconSel).
			MustEval(`() => this.closest('button').click()`)
	})
}

// OpenCrosstab clicks the Crosstab item in the download flyout.
func OpenCrosstab(viz *rod.Page, timeout time.Duration) error {
	log.Debug().Msg("opening crosstab dialog")

	return rod.Try(func() {
		viz.Timeout(timeout).
			MustElementX(crosstabItemXPath).
			MustEval(`() => this.click()`)
	})
}

// crosstabState inspects the open dialog once. Any lookup failure
// reports [CrosstabUnknown] so callers keep polling.
func crosstabState(viz *rod.Page) CrosstabState {
	state := CrosstabUnknown

	rod.Try(func() {
		dlg := viz.Timeout(2 * time.Second).MustElementX(dialogXPath)

		if has, _, _ := dlg.HasX(".//*[contains(normalize-space(),'No sheets to select')]"); has {
			state = CrosstabEmpty
			return
		}

		thumbs := dlg.MustElementsX(".//*[starts-with(@data-tb-test-id,'sheet-thumbnail-')]")
		if len(thumbs) == 0 {
			return
		}

		has, btn, err := dlg.Has(exportButtonSel)
		if err != nil || !has {
			return
		}

		if disabled, _ := btn.Attribute("disabled"); disabled == nil {
			state = CrosstabReady
		}
	})

	return state
}

// WaitCrosstab polls the dialog until it is ready to export or reports
// no sheets. The sheet thumbnails render lazily, so an open dialog can
// sit in the unknown state for a while on slow sessions.
func WaitCrosstab(viz *rod.Page, timeout time.Duration) (CrosstabState, error) {
	deadline := time.Now().Add(timeout)

	for {
		if state := crosstabState(viz); state != CrosstabUnknown {
			log.Debug().Str("state", string(state)).Msg("crosstab settled")
			return state, nil
		}

		if time.Now().After(deadline) {
			return CrosstabUnknown, ErrorCrosstabNotReady
		}

		time.Sleep(250 * time.Millisecond)
	}
}

// OpenCrosstabDialog runs the whole flyout dance and waits for the
// dialog to settle, dismissing any session-reset prompt between steps.
func OpenCrosstabDialog(viz *rod.Page, timeout time.Duration) (CrosstabState, error) {
	GuardSessionReset(viz)

	if err := OpenDownloadFlyout(viz, timeout); err != nil {
		return CrosstabUnknown, err
	}

	GuardSessionReset(viz)

	if err := OpenCrosstab(viz, timeout); err != nil {
		return CrosstabUnknown, err
	}

	GuardSessionReset(viz)

	settle := timeout
	if settle < 2*time.Minute {
		settle = 2 * time.Minute
	}

	return WaitCrosstab(viz, settle)
}

// GuardSessionReset dismisses Tableau's "Session Ended by Server" prompt
// by clicking No, keeping the current view instead of resetting it.
// It reports whether a prompt was handled.
func GuardSessionReset(viz *rod.Page) bool {
	handled := false

	rod.Try(func() {
		dlg := viz.Timeout(2 * time.Second).MustElementX(
			"//*[(@role='dialog' or contains(@class,'dialog')) and " +
				"(.//text()[contains(., 'Session Ended by Server')] or " +
				".//text()[contains(., 'reset the view')])]",
		)

		for _, xp := range []string{
			".//button[normalize-space()='No']",
			".//button[@data-tb-test-id='no' or @aria-label='No']",
			".//button[contains(., 'No')]",
		} {
			if has, btn, _ := dlg.HasX(xp); has {
				btn.MustEval(`() => this.click()`)
				handled = true
				return
			}
		}

		// any non-Yes button keeps the session alive
		for _, btn := range dlg.MustElementsX(".//button") {
			if btn.MustText() != "Yes" {
				btn.MustEval(`() => this.click()`)
				handled = true
				return
			}
		}
	})

	if handled {
		log.Warn().Msg("dismissed session reset prompt")
	}

	return handled
}
