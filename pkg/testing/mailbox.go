// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// ScriptedMailbox is a transport.Mailbox whose inbound messages are queued
// by the test. Sent messages are captured.
type ScriptedMailbox struct {
	mu       sync.Mutex
	inbound  []transport.Message
	sent     []transport.Message
	timeouts []time.Duration
	sendErr  error
	sentCh   chan struct{}
	onRecv   func(ctx context.Context)
}

var _ transport.Mailbox = (*ScriptedMailbox)(nil)

// NewScriptedMailbox returns a mailbox that will deliver msgs in order.
func NewScriptedMailbox(msgs ...transport.Message) *ScriptedMailbox {
	return &ScriptedMailbox{
		inbound: append([]transport.Message(nil), msgs...),
		sentCh:  make(chan struct{}, 1),
	}
}

// Push queues more inbound messages.
func (m *ScriptedMailbox) Push(msgs ...transport.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, msgs...)
}

// FailSends makes every later Send return err.
func (m *ScriptedMailbox) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// OnReceive runs fn at the start of every Receive, outside the mailbox lock.
func (m *ScriptedMailbox) OnReceive(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRecv = fn
}

// Send implements transport.Mailbox.
func (m *ScriptedMailbox) Send(_ context.Context, msg transport.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg.Clone())
	err := m.sendErr
	m.mu.Unlock()
	select {
	case m.sentCh <- struct{}{}:
	default:
	}
	return err
}

// Receive implements transport.Mailbox. It never blocks.
func (m *ScriptedMailbox) Receive(ctx context.Context, timeout time.Duration) (transport.Message, bool, error) {
	m.mu.Lock()
	hook := m.onRecv
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = append(m.timeouts, timeout)
	if len(m.inbound) == 0 {
		return transport.Message{}, false, nil
	}
	msg := m.inbound[0]
	m.inbound = m.inbound[1:]
	return msg, true, nil
}

// Pending returns the number of undelivered inbound messages.
func (m *ScriptedMailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inbound)
}

// Sent returns every captured outbound message.
func (m *ScriptedMailbox) Sent() []transport.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Message(nil), m.sent...)
}

// Timeouts returns the timeout passed to each Receive call.
func (m *ScriptedMailbox) Timeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timeouts...)
}

// WaitSent blocks until at least n messages were sent or ctx is done.
func (m *ScriptedMailbox) WaitSent(ctx context.Context, n int) ([]transport.Message, error) {
	for {
		if sent := m.Sent(); len(sent) >= n {
			return sent, nil
		}
		select {
		case <-m.sentCh:
		case <-ctx.Done():
			return m.Sent(), ctx.Err()
		}
	}
}
