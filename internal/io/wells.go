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

package io

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prairiedata/aer-crawler/internal/models"
)

// ErrorNoWells is returned when a wells file holds no usable entries.
var ErrorNoWells = errors.New("no well entries found")

// LoadWells reads a plain-text wells file: one UWI per line, blank lines
// and #-comments ignored, duplicates dropped in order.
func LoadWells(path string) ([]*models.Well, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	var wells []*models.Well

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if seen[line] {
			continue
		}
		seen[line] = true

		wells = append(wells, models.NewWell(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(wells) == 0 {
		return nil, ErrorNoWells
	}

	return wells, nil
}

// SplitWells chunks wells into n parts as evenly as possible, earlier
// parts taking the remainder. Parts never come back empty: n is capped
// at the number of wells.
func SplitWells(wells []*models.Well, n int) [][]*models.Well {
	if n < 1 {
		n = 1
	}
	if n > len(wells) {
		n = len(wells)
	}
	if n == 0 {
		return nil
	}

	size, rem := len(wells)/n, len(wells)%n

	parts := make([][]*models.Well, 0, n)
	for start := 0; start < len(wells); {
		end := start + size
		if rem > 0 {
			end++
			rem--
		}
		parts = append(parts, wells[start:end])
		start = end
	}

	return parts
}

// WriteWellParts writes each part as wells_NN.txt under dir, zero-padded
// to keep shell globs ordered. It returns the written file paths.
func WriteWellParts(dir string, parts [][]*models.Well) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	width := len(fmt.Sprint(len(parts)))
	if width < 2 {
		width = 2
	}

	paths := make([]string, 0, len(parts))
	for i, part := range parts {
		entries := make([]string, len(part))
		for j, w := range part {
			entries[j] = w.Entry
		}

		path := filepath.Join(dir, fmt.Sprintf("wells_%0*d.txt", width, i+1))
		if err := os.WriteFile(path, []byte(strings.Join(entries, "\n")+"\n"), 0644); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}
