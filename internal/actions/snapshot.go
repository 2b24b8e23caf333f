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
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/prairiedata/aer-crawler/internal/models"
	"github.com/rs/zerolog/log"
)

// GrabErrorSnapshot writes a screenshot and the page HTML into dir for
// post-mortem debugging of a failed well. Snapshot failures are logged,
// never propagated; the snapshot must not mask the original error.
func GrabErrorSnapshot(page *rod.Page, dir, label string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn().Err(err).Msg("snapshot dir")
		return
	}

	stamp := time.Now().Format("20060102T150405")
	base := filepath.Join(dir, models.SanitizeName(label)+"_"+stamp)

	if shot, err := page.Timeout(15 * time.Second).Screenshot(false, nil); err != nil {
		log.Warn().Err(err).Msg("error screenshot")
	} else if err := os.WriteFile(base+".png", shot, 0644); err != nil {
		log.Warn().Err(err).Msg("write screenshot")
	}

	if html, err := page.Timeout(15 * time.Second).HTML(); err != nil {
		log.Warn().Err(err).Msg("error page html")
	} else if err := os.WriteFile(base+".html", []byte(html), 0644); err != nil {
		log.Warn().Err(err).Msg("write page html")
	}

	log.Info().Str("snapshot", base).Msg("error snapshot written")
}
