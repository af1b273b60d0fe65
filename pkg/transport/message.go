// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the messages agents exchange and the Mailbox
// contract the bridge consumes from the messaging substrate.
package transport

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Metadata keys carried by bridge messages.
const (
	MetaPerformative = "performative"
	MetaForce        = "ilf_type"
)

// PerformativeBDI tags messages produced by the outbound action hook.
const PerformativeBDI = "BDI"

// Message is a speech act between agents. Body holds a textual term.
type Message struct {
	ID       string
	Sender   string
	To       []string
	Body     string
	Thread   string
	Metadata map[string]string
}

// NewMessage builds a message with a fresh ID.
func NewMessage(sender string, to []string, body string) Message {
	return Message{
		ID:       uuid.NewString(),
		Sender:   sender,
		To:       append([]string(nil), to...),
		Body:     body,
		Metadata: make(map[string]string),
	}
}

// Force returns the illocutionary force declared in the metadata.
func (m Message) Force() string {
	return m.Metadata[MetaForce]
}

// WithForce returns a copy tagged with the BDI performative and force.
func (m Message) WithForce(force string) Message {
	out := m.Clone()
	out.Metadata[MetaPerformative] = PerformativeBDI
	out.Metadata[MetaForce] = force
	return out
}

// Clone returns a copy that shares no slices or maps with m.
func (m Message) Clone() Message {
	out := m
	out.To = append([]string(nil), m.To...)
	out.Metadata = make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// Mailbox is the messaging collaborator of one agent.
type Mailbox interface {
	// Send submits msg for delivery to every recipient in msg.To.
	Send(ctx context.Context, msg Message) error
	// Receive returns the next inbound message. A zero timeout never
	// blocks; a negative timeout waits until ctx is done.
	Receive(ctx context.Context, timeout time.Duration) (Message, bool, error)
}
