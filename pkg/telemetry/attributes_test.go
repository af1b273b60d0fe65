// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestCycleAttributes(t *testing.T) {
	assertAttributes(t, CycleAttributes("alice", "run-1", true), map[string]any{
		AttrAgentName:     "alice",
		AttrRunID:         "run-1",
		AttrBridgeEnabled: true,
	})

	attrs := CycleAttributes("alice", "", false)
	if len(attrs) != 2 {
		t.Errorf("expected run id to be omitted, got %v", attrs)
	}
}

func TestMessageAttributes(t *testing.T) {
	assertAttributes(t, MessageAttributes("m-1", "bob", "tell"), map[string]any{
		AttrMessageID:     "m-1",
		AttrMessageSender: "bob",
		AttrMessageForce:  "tell",
	})
	if got := len(MessageAttributes("", "", "achieve")); got != 1 {
		t.Errorf("expected only the force attribute, got %d", got)
	}
}

func TestMutationAttributesTruncatesTerm(t *testing.T) {
	long := "f(" + strings.Repeat("a", 400) + ")"
	attrs := MutationAttributes("add", "belief", long)
	assertAttributes(t, attrs, map[string]any{
		AttrMutationTrigger: "add",
		AttrMutationGoal:    "belief",
	})
	for _, attr := range attrs {
		if string(attr.Key) == AttrMutationTerm && len(attr.Value.AsString()) != maxTermAttrLen+3 {
			t.Errorf("expected truncated term, got %d chars", len(attr.Value.AsString()))
		}
	}
}

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
