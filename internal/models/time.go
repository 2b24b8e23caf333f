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
	"strings"
	"time"
)

// TimeFormat is the timestamp layout used in per-well state objects.
const TimeFormat string = time.RFC3339

// Time is a sugared representation of a Go [time.Time] value with
// additional methods to check if it's a zero value. Unmarshaling is
// lenient: timestamps that fail to parse leave the value unset instead of
// failing the whole state object.
type Time struct {
	valid bool
	time  time.Time
}

// NewTime creates and returns a new instance of [*Time].
func NewTime() *Time {
	return &Time{}
}

// NewTimeValid creates and returns a new (valid) instance of [*Time].
func NewTimeValid(time time.Time) *Time {
	return &Time{valid: true, time: time}
}

// Valid returns true if the underlying time is not a zero value.
func (t *Time) Valid() bool {
	return t.valid
}

// Get returns the underlying [time.Time] value.
func (t *Time) Get() (time.Time, bool) {
	return t.time, t.valid
}

// Set sets the underlying [time.Time] value with the provided arg.
func (t *Time) Set(_t time.Time) {
	t.valid = true
	t.time = _t
}

// Reset resets the underlying [time.Time] to a zero value.
func (t *Time) Reset() {
	t.valid = false
	t.time = time.Time{}
}

func (t *Time) marshal() string {
	if !t.valid {
		return ""
	}

	return t.time.UTC().Format(TimeFormat)
}

func (t *Time) unmarshal(record string) {
	record = strings.TrimSpace(record)
	if record == "" {
		t.Reset()
		return
	}

	parsed, err := time.Parse(TimeFormat, record)
	if err != nil {
		t.Reset()
		return
	}

	*t = Time{valid: true, time: parsed}
}

func (t *Time) MarshalCSV() (string, error) {
	return t.marshal(), nil
}

func (t *Time) UnmarshalCSV(record string) error {
	t.unmarshal(record)
	return nil
}

func (t *Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.marshal() + `"`), nil
}

func (t *Time) UnmarshalJSON(field []byte) error {
	t.unmarshal(strings.Trim(string(field), `"`))
	return nil
}
