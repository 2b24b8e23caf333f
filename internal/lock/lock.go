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

// Package lock implements advisory per-well locks on top of an object
// store. A lock is a small JSON object whose freshness is judged by its
// modification time: holders keep it alive with a heartbeat, and anyone
// may break a lock older than the TTL. There is no compare-and-swap
// underneath; two machines racing the same well within one round trip can
// both "win". The per-sheet state keeps that harmless (duplicate work, not
// duplicate data).
package lock

import (
	"encoding/json"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prairiedata/aer-crawler/internal/rclone"
	"github.com/rs/zerolog/log"
)

const lockPrefix = "locks"

// Locker acquires and maintains per-well locks on a [rclone.Store].
type Locker struct {
	store     rclone.Store
	ttl       time.Duration
	heartbeat time.Duration
}

// New returns a [*Locker] with the given TTL and heartbeat interval.
func New(store rclone.Store, ttl, heartbeat time.Duration) *Locker {
	return &Locker{store: store, ttl: ttl, heartbeat: heartbeat}
}

// Key returns the lock object key for a raw wells-file entry.
func Key(uwiEntry string) string {
	enc := url.QueryEscape(strings.TrimSpace(uwiEntry))
	enc = strings.ReplaceAll(enc, "+", "%20")
	return lockPrefix + "/" + enc + ".lock"
}

type payload struct {
	Host      string `json:"host"`
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
}

// Acquire attempts to take the lock for a well. It returns false when a
// fresh lock is held elsewhere; stale locks are broken first.
func (l *Locker) Acquire(uwiEntry string) (bool, error) {
	if err := l.PurgeExpired(); err != nil {
		log.Warn().Err(err).Msg("failed to purge expired locks")
	}

	key := Key(uwiEntry)

	entries, err := l.store.List(key)
	if err != nil {
		return false, err
	}

	if len(entries) > 0 {
		age := time.Since(entries[0].ModTime)
		if age < l.ttl {
			log.Debug().
				Str("uwi", uwiEntry).
				Dur("age", age).
				Msg("lock held elsewhere")
			return false, nil
		}

		log.Warn().Str("uwi", uwiEntry).Dur("age", age).Msg("breaking stale lock")
		if err := l.store.Delete(key); err != nil {
			return false, err
		}
	}

	host, _ := os.Hostname()
	body, err := json.MarshalIndent(payload{
		Host:      host,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return false, err
	}

	if err := l.store.PutText(key, string(body)); err != nil {
		return false, err
	}

	return true, nil
}

// Release drops the lock for a well.
func (l *Locker) Release(uwiEntry string) error {
	return l.store.Delete(Key(uwiEntry))
}

// PurgeExpired removes every lock object older than the TTL.
func (l *Locker) PurgeExpired() error {
	entries, err := l.store.List(lockPrefix)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir {
			continue
		}

		if time.Since(entry.ModTime) > l.ttl {
			log.Debug().Str("lock", entry.Path).Msg("purging expired lock")
			if err := l.store.Delete(lockPrefix + "/" + entry.Path); err != nil {
				return err
			}
		}
	}

	return nil
}

// Heartbeat keeps one lock fresh until stopped.
type Heartbeat struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// StartHeartbeat spawns a goroutine that touches the lock object at the
// configured interval until [Heartbeat.Stop] is called.
func (l *Locker) StartHeartbeat(uwiEntry string) *Heartbeat {
	hb := &Heartbeat{stop: make(chan struct{})}
	key := Key(uwiEntry)

	hb.wg.Add(1)
	go func() {
		defer hb.wg.Done()

		ticker := time.NewTicker(l.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-hb.stop:
				return

			case <-ticker.C:
				if err := l.store.Touch(key); err != nil {
					log.Warn().Err(err).Str("lock", key).Msg("lock heartbeat failed")
				}
			}
		}
	}()

	return hb
}

// Stop terminates the heartbeat and waits for the goroutine to exit.
func (hb *Heartbeat) Stop() {
	hb.once.Do(func() { close(hb.stop) })
	hb.wg.Wait()
}
