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

package lock

import (
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prairiedata/aer-crawler/internal/rclone"
)

// memStore is an in-memory [rclone.Store] that tracks mod times.
type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	mtimes  map[string]time.Time
	touches int
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string]string),
		mtimes:  make(map[string]time.Time),
	}
}

func (m *memStore) ReadText(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.objects[key]
	return text, ok
}

func (m *memStore) PutText(key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = text
	m.mtimes[key] = time.Now()
	return nil
}

func (m *memStore) List(prefix string) ([]rclone.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []rclone.Entry
	for key := range m.objects {
		if key == prefix {
			entries = append(entries, rclone.Entry{
				Path:    path.Base(key),
				Name:    path.Base(key),
				ModTime: m.mtimes[key],
			})
			continue
		}

		if strings.HasPrefix(key, prefix+"/") {
			entries = append(entries, rclone.Entry{
				Path:    strings.TrimPrefix(key, prefix+"/"),
				Name:    path.Base(key),
				ModTime: m.mtimes[key],
			})
		}
	}

	return entries, nil
}

func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	delete(m.mtimes, key)
	return nil
}

func (m *memStore) Touch(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; ok {
		m.mtimes[key] = time.Now()
		m.touches++
	}
	return nil
}

func (m *memStore) backdate(key string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mtimes[key] = time.Now().Add(-by)
}

const testUWI = "00/01-01-099-14W4/0"

func TestAcquireRelease(t *testing.T) {
	store := newMemStore()
	locker := New(store, time.Hour, time.Minute)

	ok, err := locker.Acquire(testUWI)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("first acquire failed")
	}

	// a fresh lock blocks everyone, including ourselves
	ok, err = locker.Acquire(testUWI)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second acquire succeeded while lock is fresh")
	}

	if err := locker.Release(testUWI); err != nil {
		t.Fatal(err)
	}

	ok, err = locker.Acquire(testUWI)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("acquire after release failed")
	}
}

func TestStaleLockBroken(t *testing.T) {
	store := newMemStore()
	locker := New(store, time.Hour, time.Minute)

	if ok, _ := locker.Acquire(testUWI); !ok {
		t.Fatal("setup acquire failed")
	}

	store.backdate(Key(testUWI), 2*time.Hour)

	ok, err := locker.Acquire(testUWI)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("stale lock was not broken")
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newMemStore()
	locker := New(store, time.Hour, time.Minute)

	locker.Acquire("well-a")
	locker.Acquire("well-b")
	store.backdate(Key("well-a"), 3*time.Hour)

	if err := locker.PurgeExpired(); err != nil {
		t.Fatal(err)
	}

	if _, held := store.ReadText(Key("well-a")); held {
		t.Error("expired lock survived purge")
	}

	if _, held := store.ReadText(Key("well-b")); !held {
		t.Error("fresh lock was purged")
	}
}

func TestHeartbeatTouches(t *testing.T) {
	store := newMemStore()
	locker := New(store, time.Hour, 10*time.Millisecond)

	if ok, _ := locker.Acquire(testUWI); !ok {
		t.Fatal("setup acquire failed")
	}

	hb := locker.StartHeartbeat(testUWI)
	time.Sleep(60 * time.Millisecond)
	hb.Stop()

	store.mu.Lock()
	touches := store.touches
	store.mu.Unlock()

	if touches == 0 {
		t.Error("heartbeat never touched the lock")
	}

	// Stop is idempotent and must not hang
	hb.Stop()
}

func TestKeyEncoding(t *testing.T) {
	key := Key(testUWI)

	if key != "locks/00%2F01-01-099-14W4%2F0.lock" {
		t.Errorf("unexpected lock key: %q", key)
	}

	if Key(" spaced uwi ") != "locks/spaced%20uwi.lock" {
		t.Errorf("unexpected lock key for spaced entry: %q", Key(" spaced uwi "))
	}
}
