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

package rclone

import (
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestEntryParsing(t *testing.T) {
	raw := `[
		{"Path":"locks/00%2F01-01-099-14W4%2F0.lock","Name":"00%2F01-01-099-14W4%2F0.lock","Size":84,"ModTime":"2025-03-14T09:26:53.000000000Z","IsDir":false},
		{"Path":"state","Name":"state","Size":-1,"ModTime":"2025-03-14T09:00:00Z","IsDir":true}
	]`

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].IsDir || !entries[1].IsDir {
		t.Error("IsDir flags parsed incorrectly")
	}

	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	if !entries[0].ModTime.Equal(want) {
		t.Errorf("ModTime = %v, want %v", entries[0].ModTime, want)
	}
}

// The tests below need a real rclone binary and a throwaway remote; they
// are skipped unless AER_TEST_REMOTE is set (e.g. "local:/tmp/aer-test").

func testRemote(t *testing.T) *Remote {
	if err := exec.Command("which", "rclone").Run(); err != nil {
		t.Skip("rclone executable not found. skipping test.")
	}

	remote, ok := os.LookupEnv("AER_TEST_REMOTE")
	if !ok {
		t.Skip("AER_TEST_REMOTE not set. skipping test.")
	}

	return New(remote, Timeout(30*time.Second))
}

func TestTextRoundTrip(t *testing.T) {
	r := testRemote(t)
	key := "test/roundtrip.txt"
	defer r.Delete(key)

	if err := r.PutText(key, "hello\nworld"); err != nil {
		t.Fatal(err)
	}

	text, ok := r.ReadText(key)
	if !ok {
		t.Fatal("object not readable after PutText")
	}

	if text != "hello\nworld" {
		t.Errorf("read back %q", text)
	}

	if !r.Exists(key) {
		t.Error("Exists returned false for a written object")
	}

	if err := r.Delete(key); err != nil {
		t.Fatal(err)
	}

	if r.Exists(key) {
		t.Error("object still exists after Delete")
	}
}

func TestCopyToIfNew(t *testing.T) {
	r := testRemote(t)
	key := "test/copyto.txt"
	defer r.Delete(key)

	local := t.TempDir() + "/file.txt"
	if err := os.WriteFile(local, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	uploaded, err := r.CopyToIfNew(local, key)
	if err != nil {
		t.Fatal(err)
	}
	if !uploaded {
		t.Error("first upload reported as skipped")
	}

	uploaded, err = r.CopyToIfNew(local, key)
	if err != nil {
		t.Fatal(err)
	}
	if uploaded {
		t.Error("second upload should have been skipped")
	}
}
