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

package models

import (
	"regexp"
	"strings"
)

// wrappedRE matches the wrapped UWI form: prefix/body/suffix,
// e.g. "00/01-01-099-14W4/0".
var wrappedRE = regexp.MustCompile(`^([A-Z0-9]{1,2})/(.+)/(\d)$`)

var unsafeNameRE = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeName replaces every run of characters that is unsafe in file
// names and object keys with a single underscore.
func SanitizeName(s string) string {
	return unsafeNameRE.ReplaceAllString(strings.TrimSpace(s), "_")
}

// WellLabel derives the per-well folder (and state key) from a raw
// wells-file entry.
func WellLabel(rawUWI string) string {
	return SanitizeName(strings.ReplaceAll(strings.TrimSpace(rawUWI), "/", "_"))
}

// EnsureWrapped returns the wrapped (prefix/body/suffix) form of a UWI.
// Entries that already match the wrapped form are returned unchanged;
// short entries are wrapped as "00/<uwi>/0".
func EnsureWrapped(uwi string) string {
	u := strings.TrimSpace(uwi)
	if wrappedRE.MatchString(u) {
		return u
	}
	return "00/" + u + "/0"
}

// ShortUWI returns the body of a wrapped UWI. Inputs that are not in the
// wrapped form are returned trimmed but otherwise unchanged.
func ShortUWI(uwi string) string {
	u := strings.TrimSpace(uwi)
	m := wrappedRE.FindStringSubmatch(u)
	if m == nil {
		return u
	}
	return m[2]
}

// Well identifies a single well in every form the pipeline needs: the raw
// wells-file entry, the sanitized folder label, and the wrapped and short
// UWI representations.
type Well struct {
	Entry   string `json:"entry"   csv:"entry"`
	Label   string `json:"label"   csv:"label"`
	Wrapped string `json:"wrapped" csv:"wrapped"`
	Short   string `json:"short"   csv:"short"`
}

// NewWell derives a [*Well] from a raw wells-file entry.
func NewWell(entry string) *Well {
	entry = strings.TrimSpace(entry)
	wrapped := EnsureWrapped(entry)

	return &Well{
		Entry:   entry,
		Label:   WellLabel(entry),
		Wrapped: wrapped,
		Short:   ShortUWI(wrapped),
	}
}
