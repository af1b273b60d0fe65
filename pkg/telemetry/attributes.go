// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry configures logging and OpenTelemetry for bridges and
// the runtime, and names the attributes they record.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on bridge spans and metrics.
const (
	AttrAgentName     = "kairos_bdi.agent"
	AttrRunID         = "kairos_bdi.run_id"
	AttrBridgeEnabled = "kairos_bdi.bridge.enabled"

	AttrMessageID     = "kairos_bdi.message.id"
	AttrMessageSender = "kairos_bdi.message.sender"
	AttrMessageForce  = "kairos_bdi.message.force"
	AttrSendResult    = "kairos_bdi.send.result"
	AttrPeer          = "kairos_bdi.peer"
	AttrPeerAddr      = "kairos_bdi.peer.addr"

	AttrMutationTrigger = "kairos_bdi.mutation.trigger"
	AttrMutationGoal    = "kairos_bdi.mutation.goal"
	AttrMutationTerm    = "kairos_bdi.mutation.term"
	AttrQueueDepth      = "kairos_bdi.queue.depth"
	AttrIdleStep        = "kairos_bdi.step.idle"

	AttrProgramPath = "kairos_bdi.program.path"
)

// maxTermAttrLen truncates rendered terms kept on spans.
const maxTermAttrLen = 256

// CycleAttributes returns the attributes of a Bridge.Cycle span.
func CycleAttributes(agent, runID string, enabled bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, agent),
		attribute.Bool(AttrBridgeEnabled, enabled),
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	return attrs
}

// MessageAttributes describes an inbound or outbound message.
func MessageAttributes(id, sender, force string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrMessageForce, force)}
	if id != "" {
		attrs = append(attrs, attribute.String(AttrMessageID, id))
	}
	if sender != "" {
		attrs = append(attrs, attribute.String(AttrMessageSender, sender))
	}
	return attrs
}

// MutationAttributes describes one applied mutation. The rendered term is
// truncated.
func MutationAttributes(trigger, goal, rendered string) []attribute.KeyValue {
	if len(rendered) > maxTermAttrLen {
		rendered = rendered[:maxTermAttrLen] + "..."
	}
	return []attribute.KeyValue{
		attribute.String(AttrMutationTrigger, trigger),
		attribute.String(AttrMutationGoal, goal),
		attribute.String(AttrMutationTerm, rendered),
	}
}

// QueueAttributes records the queue depth seen at drain start. A zero depth
// means the cycle took an idle step.
func QueueAttributes(depth int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrQueueDepth, depth),
		attribute.Bool(AttrIdleStep, depth == 0),
	}
}
