// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit journals the mutations a bridge applies to its engine.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// Entry records one mutation handed to the engine.
type Entry struct {
	Agent     string    `json:"agent"`
	RunID     string    `json:"run_id,omitempty"`
	Seq       int64     `json:"seq"`
	Trigger   string    `json:"trigger"`
	Goal      string    `json:"goal"`
	Term      string    `json:"term"`
	Origin    string    `json:"origin,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// Store persists journal entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter limits List results. Zero fields match everything.
type Filter struct {
	Agent   string
	Trigger string
	Goal    string
	Status  string
	Since   time.Time
	Limit   int
}

func (f Filter) match(e Entry) bool {
	switch {
	case f.Agent != "" && e.Agent != f.Agent:
		return false
	case f.Trigger != "" && e.Trigger != f.Trigger:
		return false
	case f.Goal != "" && e.Goal != f.Goal:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case !f.Since.IsZero() && e.AppliedAt.Before(f.Since):
		return false
	}
	return true
}

// MemoryStore keeps entries in memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.AppliedAt = normalizeTime(entry.AppliedAt)
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries in record order.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.match(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}
