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

package actions

import (
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/rs/zerolog/log"
)

var (
	// ErrorSheetNotFound is returned when a named sheet thumbnail is not
	// present in the open dialog.
	ErrorSheetNotFound = errors.New("sheet not found in dialog")

	// ErrorExportButtonNotFound is returned when no export control can
	// be located in the open dialog.
	ErrorExportButtonNotFound = errors.New("dialog export button not found")
)

// EnsureCSVFormat selects the CSV radio option in the crosstab dialog.
// The label markup varies across Tableau versions, so it walks a set of
// fallbacks before giving up; a dialog without the option at all exports
// CSV by default.
func EnsureCSVFormat(viz *rod.Page, timeout time.Duration) error {
	log.Debug().Msg("selecting csv format")

	err := rod.Try(func() {
		dlg := viz.Timeout(timeout).MustElementX(dialogXPath)

		for _, xp := range []string{
			".//label[@data-tb-test-id='crosstab-options-dialog-radio-csv-Label']",
			".//label[normalize-space()='CSV']",
			".//*[normalize-space()='CSV']",
		} {
			if has, el, _ := dlg.HasX(xp); has {
				el.MustEval(`() => this.click()`)
				return
			}
		}

		has, el, _ := dlg.HasX(
			".//input[@data-tb-test-id='crosstab-options-dialog-radio-csv-RadioButton'" +
				" or (@type='radio' and translate(@value,'csv','CSV')='CSV')]",
		)
		if has {
			el.MustEval(`() => this.click()`)
		}
	})

	if err != nil {
		log.Warn().Err(err).Msg("csv radio not found, relying on dialog default")
	}

	return nil
}

//go:embed scripts/sheets.js
var sheetsScript string

// ListSheets returns the titles of every sheet thumbnail in the open
// dialog, in display order.
func ListSheets(viz *rod.Page, timeout time.Duration) ([]string, error) {
	log.Debug().Msg("listing dialog sheets")

	err := rod.Try(func() {
		viz.Timeout(timeout).MustElementX(dialogXPath)
	})
	if err != nil {
		return nil, err
	}

	result, err := viz.Timeout(30 * time.Second).Eval(sheetsScript)
	if err != nil {
		return nil, err
	}

	var sheets []string
	err = result.Value.Unmarshal(&sheets)
	return sheets, err
}

// SelectedSheet returns the title of the currently selected thumbnail,
// or "" when nothing is selected.
func SelectedSheet(viz *rod.Page) string {
	var name string

	rod.Try(func() {
		dlg := viz.Timeout(2 * time.Second).MustElementX(dialogXPath)

		has, el, _ := dlg.HasX(".//*[@role='option' and @aria-selected='true']")
		if !has {
			return
		}

		if title, _ := el.Attribute("title"); title != nil {
			name = strings.TrimSpace(*title)
		}
		if name == "" {
			name = strings.TrimSpace(el.MustText())
		}
	})

	return name
}

// SelectSheet clicks the thumbnail with the given title.
func SelectSheet(viz *rod.Page, sheet string, timeout time.Duration) error {
	log.Debug().Str("sheet", sheet).Msg("selecting sheet")

	found := false
	err := rod.Try(func() {
		dlg := viz.Timeout(timeout).MustElementX(dialogXPath)

		lit := xpathLiteral(sheet)
		for _, xp := range []string{
			".//*[@role='option' and @title=" + lit + "]",
			".//span[contains(@class,'thumbnail-title') and normalize-space()=" + lit + "]/ancestor::*[@role='option']",
		} {
			if has, el, _ := dlg.HasX(xp); has {
				el.MustEval(`() => this.click()`)
				found = true
				return
			}
		}
	})

	if err != nil {
		return err
	}
	if !found {
		return ErrorSheetNotFound
	}
	return nil
}

// ClickExport presses the dialog's download button, starting the export.
func ClickExport(viz *rod.Page, timeout time.Duration) error {
	log.Debug().Msg("clicking export")

	found := false
	err := rod.Try(func() {
		dlg := viz.Timeout(timeout).MustElementX(dialogXPath)

		if has, btn, _ := dlg.Has(exportButtonSel); has {
			btn.MustEval(`() => this.click()`)
			found = true
			return
		}

		for _, xp := range []string{
			".//button[normalize-space()='Download']",
			".//button[@type='submit']",
		} {
			if has, btn, _ := dlg.HasX(xp); has {
				btn.MustEval(`() => this.click()`)
				found = true
				return
			}
		}
	})

	if err != nil {
		return err
	}
	if !found {
		return ErrorExportButtonNotFound
	}
	return nil
}

// CloseDialog dismisses the crosstab dialog, falling back to Escape when
// no close button responds.
func CloseDialog(viz *rod.Page) {
	closed := false

	rod.Try(func() {
		for _, xp := range []string{
			"//*[@role='dialog']//button[@aria-label='Close']",
			"//*[@role='dialog']//button[normalize-space()='Close']",
			"//button[@aria-label='Close']",
		} {
			if has, btn, _ := viz.Timeout(2 * time.Second).HasX(xp); has {
				btn.MustEval(`() => this.click()`)
				closed = true
				return
			}
		}
	})

	if !closed {
		rod.Try(func() {
			viz.Keyboard.MustType(input.Escape)
		})
	}
}

// xpathLiteral quotes s for embedding in an XPath expression. Titles
// with both quote kinds need the concat() form.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}

	return "concat(" + strings.Join(quoted, ",") + ")"
}
