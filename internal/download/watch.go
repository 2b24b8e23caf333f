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

// Package download watches a browser download directory for completed
// crosstab exports and files them into the staging layout.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrorNoDownload is returned when no new export lands before the
// deadline.
var ErrorNoDownload = errors.New("timed out waiting for download")

// xlsxMagic is the ZIP local-file header; Tableau sometimes hands out
// workbooks with a .csv name.
var xlsxMagic = []byte{'P', 'K', 0x03, 0x04}

var partialSuffixes = []string{".crdownload", ".tmp", ".part", ".download"}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

func isExport(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Watcher tracks a download directory across one export click. The
// baseline snapshot taken at construction lets it tell new files from
// leftovers of earlier sheets.
type Watcher struct {
	dir      string
	poll     time.Duration
	baseline map[string]struct{}
}

// NewWatcher snapshots dir and returns a watcher for the next export.
func NewWatcher(dir string) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		poll:     500 * time.Millisecond,
		baseline: make(map[string]struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot download dir: %w", err)
	}

	for _, e := range entries {
		w.baseline[e.Name()] = struct{}{}
	}

	return w, nil
}

// Wait blocks until a new export file is complete in the watched
// directory, then returns its path. A file counts as complete once its
// size holds steady across two polls and no partial-download marker
// remains beside it.
func (w *Watcher) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	var candidate string
	var lastSize, stablePolls int64

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(w.poll):
		}

		if time.Now().After(deadline) {
			// a leftover complete file beats giving up outright
			if fallback := w.newestComplete(); fallback != "" {
				log.Warn().Str("file", filepath.Base(fallback)).
					Msg("deadline hit, taking newest complete file")
				return fallback, nil
			}
			return "", ErrorNoDownload
		}

		if candidate == "" {
			candidate = w.findNew()
			lastSize, stablePolls = -1, 0
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			// renamed or removed mid-flight, rescan
			candidate = ""
			continue
		}

		if info.Size() == lastSize && info.Size() > 0 {
			stablePolls++
		} else {
			stablePolls = 0
		}
		lastSize = info.Size()

		if stablePolls >= 2 && !w.partialPending() {
			return candidate, nil
		}
	}
}

// findNew returns the first non-baseline export file, or "".
func (w *Watcher) findNew() string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return ""
	}

	for _, e := range entries {
		name := e.Name()
		if _, seen := w.baseline[name]; seen || e.IsDir() {
			continue
		}
		if isExport(name) && !isPartial(name) {
			return filepath.Join(w.dir, name)
		}
	}

	return ""
}

// partialPending reports whether any in-progress download marker exists.
func (w *Watcher) partialPending() bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return false
	}

	for _, e := range entries {
		if isPartial(e.Name()) {
			return true
		}
	}

	return false
}

// newestComplete returns the most recently modified non-baseline export,
// or "" when there is none.
func (w *Watcher) newestComplete() string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		name := e.Name()
		if _, seen := w.baseline[name]; seen || e.IsDir() {
			continue
		}
		if !isExport(name) || isPartial(name) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = filepath.Join(w.dir, name), info.ModTime()
		}
	}

	return newest
}

// SniffExt inspects file content and returns the extension the file
// should carry, correcting workbooks served under a .csv name.
func SniffExt(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return filepath.Ext(path)
	}
	defer f.Close()

	head := make([]byte, 4)
	if n, _ := f.Read(head); n == 4 && bytes.Equal(head, xlsxMagic) {
		return ".xlsx"
	}

	return ".csv"
}

// Place moves a completed download into the staging layout at
// <dataDir>/<label>/<dashboard>/<label>__<sheet><ext>, suffixing _N on
// name collisions. It returns the destination path.
func Place(src, dataDir, label, dashboard, sheet string) (string, error) {
	dir := filepath.Join(dataDir, label, dashboard)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	ext := SniffExt(src)
	base := label + "__" + models.SanitizeName(sheet)

	dest := filepath.Join(dir, base+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}

	if err := os.Rename(src, dest); err != nil {
		// cross-device moves fall back to copy and remove
		if err := copyFile(src, dest); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			return "", err
		}
	}

	log.Debug().Str("file", filepath.Base(dest)).Msg("download staged")

	return dest, nil
}

func copyFile(src, dest string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, raw, 0644)
}
