// SPDX-License-Identifier: Apache-2.0

package bdi

import "sync"

// Queue is the FIFO buffer of pending mutations owned by one bridge. It is
// safe for concurrent producers; the bridge cycle is its only consumer.
type Queue struct {
	mu    sync.Mutex
	items []Mutation
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends mutations in order.
func (q *Queue) Enqueue(ms ...Mutation) {
	if len(ms) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ms...)
}

// Len returns the number of queued mutations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Mutation{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the head.
func (q *Queue) Pop() (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Mutation{}, false
	}
	m := q.items[0]
	q.items[0] = Mutation{}
	q.items = q.items[1:]
	return m, true
}
