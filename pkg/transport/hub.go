// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// DefaultInboxSize bounds each agent inbox of a Hub.
const DefaultInboxSize = 100

// Hub routes messages between agents living in the same process.
type Hub struct {
	mu        sync.RWMutex
	inboxes   map[string]chan Message
	inboxSize int
	closed    chan struct{}
	closeOnce sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithInboxSize sets the capacity of each inbox.
func WithInboxSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.inboxSize = size
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		inboxes:   make(map[string]chan Message),
		inboxSize: DefaultInboxSize,
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates the inbox for name and returns its mailbox.
func (h *Hub) Register(name string) (*Endpoint, error) {
	if name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "agent name is required", nil)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.inboxes[name]; exists {
		return nil, errors.Newf(errors.CodeInvalidInput, "agent %q already registered", name)
	}
	inbox := make(chan Message, h.inboxSize)
	h.inboxes[name] = inbox
	return &Endpoint{hub: h, name: name, inbox: inbox}, nil
}

// Unregister removes the inbox for name. Pending messages are discarded.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inboxes, name)
}

// Has reports whether name is registered.
func (h *Hub) Has(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.inboxes[name]
	return ok
}

// Names lists registered agents.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.inboxes))
	for name := range h.inboxes {
		out = append(out, name)
	}
	return out
}

// Close stops accepting deliveries.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Deliver routes msg to every recipient. It blocks while a recipient inbox
// is full, until ctx is done.
func (h *Hub) Deliver(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New(errors.CodeInvalidInput, "message has no recipients", nil)
	}
	for _, to := range msg.To {
		h.mu.RLock()
		inbox, ok := h.inboxes[to]
		h.mu.RUnlock()
		if !ok {
			return errors.Newf(errors.CodeNotFound, "agent %q not found", to).WithContext("message_id", msg.ID)
		}
		select {
		case inbox <- msg.Clone():
		case <-ctx.Done():
			return errors.New(errors.CodeTransport, "send canceled by caller", ctx.Err())
		case <-h.closed:
			return errors.New(errors.CodeTransport, "hub is closed", nil)
		}
	}
	return nil
}

// Endpoint is the Mailbox of one agent registered in a Hub.
type Endpoint struct {
	hub   *Hub
	name  string
	inbox chan Message
}

// Name returns the agent name the endpoint is bound to.
func (e *Endpoint) Name() string { return e.name }

// Send implements Mailbox. An empty sender is filled with the endpoint name.
func (e *Endpoint) Send(ctx context.Context, msg Message) error {
	if msg.Sender == "" {
		msg.Sender = e.name
	}
	return e.hub.Deliver(ctx, msg)
}

// Receive implements Mailbox.
func (e *Endpoint) Receive(ctx context.Context, timeout time.Duration) (Message, bool, error) {
	return receive(ctx, e.inbox, timeout)
}

// Pending returns the number of queued inbound messages.
func (e *Endpoint) Pending() int {
	return len(e.inbox)
}

func receive(ctx context.Context, inbox <-chan Message, timeout time.Duration) (Message, bool, error) {
	if timeout == 0 {
		select {
		case msg := <-inbox:
			return msg, true, nil
		default:
			return Message{}, false, nil
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case msg := <-inbox:
		return msg, true, nil
	case <-expired:
		return Message{}, false, nil
	case <-ctx.Done():
		return Message{}, false, ctx.Err()
	}
}
