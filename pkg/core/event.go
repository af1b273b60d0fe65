// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a semantic event emitted by bridges or runtimes.
type EventType string

const (
	EventMessageReceived EventType = "bdi.message.received"
	EventMessageSent     EventType = "bdi.message.sent"
	EventMutationApplied EventType = "bdi.mutation.applied"
	EventProtocolError   EventType = "bdi.protocol.error"
	EventMessageDenied   EventType = "bdi.message.denied"
	EventProgramLoaded   EventType = "bdi.program.loaded"
	EventProgramFailed   EventType = "bdi.program.failed"
	EventBridgePaused    EventType = "bdi.bridge.paused"
	EventBridgeResumed   EventType = "bdi.bridge.resumed"
	EventAgentStopped    EventType = "runtime.agent.stopped"
)

// Event captures a semantic event.
type Event struct {
	Type      EventType
	Agent     string
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds an event stamped with the current time and the run id
// carried by ctx, if any.
func NewEvent(ctx context.Context, eventType EventType, agent string, payload map[string]any) Event {
	runID, _ := RunID(ctx)
	return Event{
		Type:      eventType,
		Agent:     agent,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LogEmitter writes events to a slog logger at debug level.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements EventEmitter.
func (l LogEmitter) Emit(ctx context.Context, event Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{slog.String("agent", event.Agent)}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}
	for k, v := range event.Payload {
		attrs = append(attrs, slog.Any(k, v))
	}
	logger.DebugContext(ctx, string(event.Type), attrs...)
}

// MultiEmitter fans an event out to several emitters.
type MultiEmitter []EventEmitter

// Emit implements EventEmitter.
func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}

// RecordingEmitter keeps every emitted event in memory.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventEmitter.
func (r *RecordingEmitter) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the recorded events, optionally filtered by type.
func (r *RecordingEmitter) Events(types ...EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(types) == 0 {
		return append([]Event(nil), r.events...)
	}
	var out []Event
	for _, ev := range r.events {
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
