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
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// uwiParam is the Tableau parameter the AER dashboards filter on.
const uwiParam = "Enter Well Identifier (UWI)"

// Dashboard describes one Tableau dashboard: its base view URL, the embed
// flags appended to every request and an optional URL fragment.
type Dashboard struct {
	URL      string `yaml:"url"`
	Flags    string `yaml:"flags"`
	Fragment string `yaml:"fragment"`
}

// Lock configures the distributed per-well locks.
type Lock struct {
	TTL       time.Duration `yaml:"ttl"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Config is the top-level configuration for the crawler.
type Config struct {
	// Remote is the rclone remote and bucket, e.g. "aer:aer-scrape-prod".
	Remote string `yaml:"remote"`

	Lock Lock `yaml:"lock"`

	// VizSettle is how long a freshly loaded viz is left alone before the
	// crosstab dialog is opened. Tableau keeps rendering well after the
	// DOM is stable.
	VizSettle time.Duration `yaml:"viz_settle"`

	Dashboards map[string]Dashboard `yaml:"dashboards"`

	// Order fixes the sequence dashboards are scraped in. Codes missing
	// from it sort after the listed ones.
	Order []string `yaml:"order"`
}

// Default returns the built-in configuration: the three AER production
// dashboards with their embed flags.
func Default() *Config {
	return &Config{
		Remote: "aer:aer-scrape-prod",
		Lock: Lock{
			TTL:       time.Hour,
			Heartbeat: 2 * time.Minute,
		},
		VizSettle: 30 * time.Second,
		Order: []string{
			"Well_Summary_Report",
			"Well_Gas_Analysis",
			"Reservoir_Evaluation",
		},
		Dashboards: map[string]Dashboard{
			"Well_Summary_Report": {
				URL:      "https://www2.aer.ca/t/Production/views/PRD_0100_Well_Summary_Report/WellSummaryReport",
				Flags:    "&%3Aembed=y&%3AshowShareOptions=true&%3Adisplay_count=no&%3AshowVizHome=no&%3Atoolbar=yes",
				Fragment: "#3",
			},
			"Well_Gas_Analysis": {
				URL:   "https://www2.aer.ca/t/Production/views/0125_Well_Gas_Analysis_Data_EXT/WellGasAnalysis",
				Flags: "&%3AiframeSizedToWindow=true&%3Aembed=y&%3AshowAppBanner=false&%3Adisplay_count=no&%3AshowVizHome=no&%3Atoolbar=yes",
			},
			"Reservoir_Evaluation": {
				URL:   "https://www2.aer.ca/t/Production/views/0150_IMB_Well_Reservoir_Eval_EXT/ResourceEvaluation",
				Flags: "&%3AiframeSizedToWindow=true&%3Aembed=y&%3AshowAppBanner=false&%3Adisplay_count=no&%3AshowVizHome=no&%3Atoolbar=yes",
			},
		},
	}
}

// Load reads a YAML configuration file over the defaults and then applies
// environment overrides. An empty path returns the defaults (plus env).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if remote, ok := os.LookupEnv("AER_REMOTE"); ok {
		c.Remote = remote
	}

	if ttl, ok := lookupEnvSeconds("AER_LOCK_TTL_SEC"); ok {
		c.Lock.TTL = ttl
	}

	if hb, ok := lookupEnvSeconds("AER_LOCK_HEARTBEAT_SEC"); ok {
		c.Lock.Heartbeat = hb
	}
}

func lookupEnvSeconds(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}

	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return time.Duration(secs) * time.Second, true
}

// orderedCodes returns every configured dashboard code, the ones named
// in Order first and the rest sorted after them.
func (c *Config) orderedCodes() []string {
	all := make([]string, 0, len(c.Dashboards))
	seen := make(map[string]bool, len(c.Dashboards))

	for _, code := range c.Order {
		if _, ok := c.Dashboards[code]; ok && !seen[code] {
			all = append(all, code)
			seen[code] = true
		}
	}

	rest := make([]string, 0, len(c.Dashboards))
	for code := range c.Dashboards {
		if !seen[code] {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)

	return append(all, rest...)
}

// DashboardCodes returns the configured dashboard codes filtered by spec:
// "all" (or empty) selects everything, otherwise a comma-separated subset.
// Unknown codes are dropped; an empty result falls back to all.
func (c *Config) DashboardCodes(spec []string) []string {
	all := c.orderedCodes()

	if len(spec) == 0 {
		return all
	}

	var codes []string
	for _, want := range spec {
		if want == "all" {
			return all
		}

		if _, ok := c.Dashboards[want]; ok {
			codes = append(codes, want)
		}
	}

	if len(codes) == 0 {
		return all
	}

	return codes
}

// DashboardURL builds the per-well viz URL for a dashboard: the base view
// URL with the UWI parameter, the embed flags and the fragment.
func (c *Config) DashboardURL(code, wrappedUWI string) (string, error) {
	dash, ok := c.Dashboards[code]
	if !ok {
		return "", fmt.Errorf("unknown dashboard: %q", code)
	}

	key := escapeParam(uwiParam)
	val := escapeParam(wrappedUWI)

	return fmt.Sprintf("%s?%s=%s%s%s", dash.URL, key, val, dash.Flags, dash.Fragment), nil
}

// escapeParam percent-encodes everything unreserved, including spaces and
// slashes. Tableau rejects '+' encoded spaces in parameter names.
func escapeParam(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
