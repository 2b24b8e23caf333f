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

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultDashboards(t *testing.T) {
	cfg := Default()

	for _, code := range []string{"Well_Summary_Report", "Well_Gas_Analysis", "Reservoir_Evaluation"} {
		if _, ok := cfg.Dashboards[code]; !ok {
			t.Errorf("missing built-in dashboard %q", code)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := []byte(`
remote: "test:bucket"
lock:
  ttl: 30m
  heartbeat: 1m
viz_settle: 5s
`)

	path := filepath.Join(t.TempDir(), "crawler.yaml")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Remote != "test:bucket" {
		t.Errorf("remote = %q, want %q", cfg.Remote, "test:bucket")
	}

	if cfg.Lock.TTL != 30*time.Minute {
		t.Errorf("lock ttl = %v, want 30m", cfg.Lock.TTL)
	}

	if cfg.VizSettle != 5*time.Second {
		t.Errorf("viz settle = %v, want 5s", cfg.VizSettle)
	}

	// dashboards not mentioned in the file keep the defaults
	if len(cfg.Dashboards) != 3 {
		t.Errorf("expected 3 default dashboards, got %d", len(cfg.Dashboards))
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AER_REMOTE", "env:override")
	t.Setenv("AER_LOCK_TTL_SEC", "120")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Remote != "env:override" {
		t.Errorf("remote = %q, want env override", cfg.Remote)
	}

	if cfg.Lock.TTL != 2*time.Minute {
		t.Errorf("lock ttl = %v, want 2m", cfg.Lock.TTL)
	}
}

func TestDefaultFlagsNotDuplicated(t *testing.T) {
	for code, dash := range Default().Dashboards {
		if strings.Count(dash.Flags, "%3Adisplay_count=no") != 1 {
			t.Errorf("%s: display_count flag count != 1 in %q", code, dash.Flags)
		}
	}
}

func TestDashboardCodes(t *testing.T) {
	cfg := Default()

	// "all" follows the configured order, deterministically
	want := []string{"Well_Summary_Report", "Well_Gas_Analysis", "Reservoir_Evaluation"}
	if got := cfg.DashboardCodes([]string{"all"}); !slices.Equal(got, want) {
		t.Errorf("all: got %v, want %v", got, want)
	}

	got := cfg.DashboardCodes([]string{"Well_Gas_Analysis", "bogus"})
	if !slices.Equal(got, []string{"Well_Gas_Analysis"}) {
		t.Errorf("subset: got %v", got)
	}

	// nothing valid falls back to everything
	if got := cfg.DashboardCodes([]string{"bogus"}); len(got) != 3 {
		t.Errorf("fallback: got %d codes", len(got))
	}

	// codes missing from the order list sort after it
	cfg.Dashboards["Another"] = Dashboard{URL: "https://example.test/viz"}
	if got := cfg.DashboardCodes(nil); !slices.Equal(got, append(want, "Another")) {
		t.Errorf("extra code: got %v", got)
	}
}

func TestDashboardURL(t *testing.T) {
	cfg := Default()

	u, err := cfg.DashboardURL("Well_Summary_Report", "00/01-01-099-14W4/0")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(u, "Enter%20Well%20Identifier%20%28UWI%29=00%2F01-01-099-14W4%2F0") {
		t.Errorf("UWI parameter not encoded as expected: %s", u)
	}

	if !strings.HasSuffix(u, "#3") {
		t.Errorf("summary report fragment missing: %s", u)
	}

	if _, err := cfg.DashboardURL("nope", "00/x/0"); err == nil {
		t.Error("expected error for unknown dashboard")
	}
}
