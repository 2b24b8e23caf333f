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

// Package rclone shells out to the rclone binary for all object-storage
// access. Nothing here is transactional; callers that need coordination
// build it on top (see the lock package).
package rclone

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-cmd/cmd"
	"github.com/rs/zerolog/log"
)

// ErrorTimedOut is returned when an rclone invocation exceeds its deadline.
var ErrorTimedOut = errors.New("rclone command timed out")

// ErrorCommandFailed is returned when rclone exits non-zero.
type ErrorCommandFailed struct {
	Args   []string
	Exit   int
	Stderr string
}

func (e ErrorCommandFailed) Error() string {
	return fmt.Sprintf(
		"rclone %s failed (exit %d): %s",
		strings.Join(e.Args, " "), e.Exit, e.Stderr,
	)
}

// Entry is a single object returned by `rclone lsjson`.
type Entry struct {
	Path    string    `json:"Path"`
	Name    string    `json:"Name"`
	Size    int64     `json:"Size"`
	IsDir   bool      `json:"IsDir"`
	ModTime time.Time `json:"ModTime"`
}

// Store is the subset of remote operations the lock and state layers use.
// It exists so those layers can be tested against an in-memory fake.
type Store interface {
	// ReadText returns the object's contents, or ok=false when the object
	// is missing or unreadable.
	ReadText(key string) (text string, ok bool)

	// PutText writes (or overwrites) a small text object.
	PutText(key, text string) error

	// List returns the entries directly under a prefix.
	List(prefix string) ([]Entry, error)

	// Delete removes a single object. Deleting a missing object is not an
	// error.
	Delete(key string) error

	// Touch bumps the object's modification time.
	Touch(key string) error
}

// Remote wraps one rclone remote ("remote:bucket"). It implements [Store].
type Remote struct {
	remote  string
	bin     string
	timeout time.Duration
}

// RemoteOpt configures a [*Remote].
type RemoteOpt func(r *Remote)

// Binary overrides the rclone binary used for every operation.
func Binary(bin string) RemoteOpt {
	return func(r *Remote) {
		r.bin = bin
	}
}

// Timeout sets the deadline for short (non-bulk) operations.
func Timeout(t time.Duration) RemoteOpt {
	return func(r *Remote) {
		r.timeout = t
	}
}

// New returns a [*Remote] for the given rclone remote, e.g.
// "aer:aer-scrape-prod".
func New(remote string, opts ...RemoteOpt) *Remote {
	r := &Remote{
		remote:  remote,
		bin:     "rclone",
		timeout: time.Minute,
	}

	for _, optFn := range opts {
		optFn(r)
	}

	return r
}

func (r *Remote) uri(key string) string {
	return r.remote + "/" + strings.TrimPrefix(key, "/")
}

// run executes rclone with the given arguments and waits for completion or
// the deadline, whichever comes first.
func (r *Remote) run(timeout time.Duration, args ...string) (cmd.Status, error) {
	log.Debug().Strs("args", args).Msg("running rclone")

	process := cmd.NewCmd(r.bin, args...)

	select {
	case status := <-process.Start():
		if status.Error != nil {
			return status, status.Error
		}
		return status, nil

	case <-time.After(timeout):
		_ = process.Stop()
		return cmd.Status{}, ErrorTimedOut
	}
}

func (r *Remote) failure(args []string, status cmd.Status) error {
	return ErrorCommandFailed{
		Args:   args,
		Exit:   status.Exit,
		Stderr: strings.Join(status.Stderr, "\n"),
	}
}

// LsJSON lists a key or prefix via `rclone lsjson`. Missing paths yield an
// empty slice, mirroring how the scraper treats "not there yet".
func (r *Remote) LsJSON(key string) ([]Entry, error) {
	args := []string{"lsjson", r.uri(key)}

	status, err := r.run(r.timeout, args...)
	if err != nil {
		return nil, err
	}

	if status.Exit != 0 {
		return nil, nil
	}

	var entries []Entry
	raw := strings.Join(status.Stdout, "\n")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse lsjson output: %w", err)
	}

	return entries, nil
}

// List implements [Store].
func (r *Remote) List(prefix string) ([]Entry, error) {
	return r.LsJSON(prefix)
}

// ReadText implements [Store].
func (r *Remote) ReadText(key string) (string, bool) {
	status, err := r.run(r.timeout, "cat", r.uri(key))
	if err != nil || status.Exit != 0 {
		return "", false
	}

	return strings.Join(status.Stdout, "\n"), true
}

// PutText implements [Store]. The text is staged through a temp file so
// rclone can upload it with copyto; rcat needs stdin streaming that buys
// nothing for objects this small.
func (r *Remote) PutText(key, text string) error {
	tmp, err := os.CreateTemp("", "aer-crawler-put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	args := []string{"copyto", "--s3-no-check-bucket", tmp.Name(), r.uri(key)}
	status, err := r.run(r.timeout, args...)
	if err != nil {
		return err
	}

	if status.Exit != 0 {
		return r.failure(args, status)
	}

	return nil
}

// Exists reports whether an object exists by listing its parent prefix.
func (r *Remote) Exists(key string) bool {
	parent := path.Dir(key)
	name := path.Base(key)

	entries, err := r.LsJSON(parent)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if !entry.IsDir && entry.Path == name {
			return true
		}
	}

	return false
}

// CopyToIfNew uploads a local file unless the destination object already
// exists. Returns true when the file was uploaded.
func (r *Remote) CopyToIfNew(local, key string) (bool, error) {
	if r.Exists(key) {
		return false, nil
	}

	args := []string{"copyto", "--ignore-existing", filepath.Clean(local), r.uri(key)}
	status, err := r.run(r.timeout, args...)
	if err != nil {
		return false, err
	}

	if status.Exit != 0 {
		return false, r.failure(args, status)
	}

	return true, nil
}

// Delete implements [Store].
func (r *Remote) Delete(key string) error {
	// deletefile on a missing object exits non-zero; that is fine.
	_, err := r.run(r.timeout, "deletefile", r.uri(key))
	if errors.Is(err, ErrorTimedOut) {
		return err
	}

	return nil
}

// Touch implements [Store].
func (r *Remote) Touch(key string) error {
	status, err := r.run(r.timeout, "touch", r.uri(key))
	if err != nil {
		return err
	}

	if status.Exit != 0 {
		return r.failure([]string{"touch", key}, status)
	}

	return nil
}

// Lsf returns every file under a prefix, recursively, as relative paths.
func (r *Remote) Lsf(prefix string) ([]string, error) {
	status, err := r.run(r.timeout, "lsf", r.uri(prefix), "--recursive", "--fast-list")
	if err != nil {
		return nil, err
	}

	if status.Exit != 0 {
		return nil, nil
	}

	var files []string
	for _, line := range status.Stdout {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, "/") {
			continue
		}
		files = append(files, line)
	}

	return files, nil
}

// pushTimeout bounds a bulk copy; mirrors the rclone --timeout below.
const pushTimeout = 30 * time.Minute

// Push bulk-uploads a local directory to a remote prefix, skipping objects
// that already exist. Exclude patterns use rclone's filter syntax.
func (r *Remote) Push(localDir, prefix string, excludes []string) error {
	args := []string{
		"copy", filepath.Clean(localDir), r.uri(prefix),
		"--ignore-existing",
		"--transfers", "16",
		"--checkers", "32",
		"--contimeout", "15s",
		"--timeout", "30m",
		"--retries", "3",
		"--low-level-retries", "5",
		"--s3-no-check-bucket",
		"--no-traverse",
	}

	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}

	status, err := r.run(pushTimeout, args...)
	if err != nil {
		return err
	}

	if status.Exit != 0 {
		return r.failure(args, status)
	}

	return nil
}
