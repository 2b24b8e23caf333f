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

package runner

import (
	"container/list"
	"sync"

	"github.com/prairiedata/aer-crawler/internal/models"
)

// maxAttempts bounds how often a failing well is requeued before it is
// abandoned for the run.
const maxAttempts = 3

type job struct {
	well     *models.Well
	attempts int
}

// queue is a mutex-guarded FIFO of wells shared by the workers. Failed
// wells go to the back so one bad well cannot starve the rest.
type queue struct {
	mu   sync.Mutex
	list *list.List
}

func newQueue(wells []*models.Well) *queue {
	q := &queue{list: list.New()}
	for _, w := range wells {
		q.list.PushBack(&job{well: w})
	}
	return q
}

// next pops the front job, or nil when the queue is drained.
func (q *queue) next() *job {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.list.Front()
	if front == nil {
		return nil
	}

	q.list.Remove(front)
	j, _ := front.Value.(*job)
	return j
}

// requeue returns a failed job to the back of the queue. It reports
// false once the job has used up its attempts.
func (q *queue) requeue(j *job) bool {
	j.attempts++
	if j.attempts >= maxAttempts {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.PushBack(j)

	return true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}
