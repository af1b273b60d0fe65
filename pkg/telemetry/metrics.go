// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// MeterName is the instrumentation scope of bridge metrics.
const MeterName = "kairos-bdi/bridge"

// BridgeMetrics holds the instruments recorded by bridges and the runtime.
// A nil *BridgeMetrics records nothing.
type BridgeMetrics struct {
	cycles         metric.Int64Counter
	messages       metric.Int64Counter
	mutations      metric.Int64Counter
	idleSteps      metric.Int64Counter
	protocolErrors metric.Int64Counter
	denied         metric.Int64Counter
	sends          metric.Int64Counter
	errorCounter   metric.Int64Counter
	queueDepth     metric.Int64Gauge
	cycleDuration  metric.Float64Histogram
}

// NewBridgeMetrics creates the instruments on the global meter provider.
func NewBridgeMetrics() (*BridgeMetrics, error) {
	return NewBridgeMetricsWithMeter(otel.Meter(MeterName))
}

// NewBridgeMetricsWithMeter creates the instruments on meter.
func NewBridgeMetricsWithMeter(meter metric.Meter) (*BridgeMetrics, error) {
	m := &BridgeMetrics{}
	var err error
	if m.cycles, err = meter.Int64Counter("kairos_bdi.cycles",
		metric.WithDescription("Bridge cycles run by agent and state")); err != nil {
		return nil, err
	}
	if m.messages, err = meter.Int64Counter("kairos_bdi.messages.received",
		metric.WithDescription("Inbound messages by illocutionary force")); err != nil {
		return nil, err
	}
	if m.mutations, err = meter.Int64Counter("kairos_bdi.mutations.applied",
		metric.WithDescription("Mutations applied to the engine by trigger and goal type")); err != nil {
		return nil, err
	}
	if m.idleSteps, err = meter.Int64Counter("kairos_bdi.steps.idle",
		metric.WithDescription("Engine steps run with an empty mutation queue")); err != nil {
		return nil, err
	}
	if m.protocolErrors, err = meter.Int64Counter("kairos_bdi.protocol_errors",
		metric.WithDescription("Inbound messages with an unknown illocutionary force")); err != nil {
		return nil, err
	}
	if m.denied, err = meter.Int64Counter("kairos_bdi.messages.denied",
		metric.WithDescription("Inbound messages rejected by the admission policy")); err != nil {
		return nil, err
	}
	if m.sends, err = meter.Int64Counter("kairos_bdi.messages.sent",
		metric.WithDescription("Outbound messages by force and result")); err != nil {
		return nil, err
	}
	if m.errorCounter, err = meter.Int64Counter("kairos_bdi.errors",
		metric.WithDescription("Errors by code and component")); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64Gauge("kairos_bdi.queue.depth",
		metric.WithDescription("Mutation queue length at the start of a drain")); err != nil {
		return nil, err
	}
	if m.cycleDuration, err = meter.Float64Histogram("kairos_bdi.cycle.duration",
		metric.WithDescription("Bridge cycle duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCycle counts one cycle and its duration in milliseconds.
func (m *BridgeMetrics) RecordCycle(ctx context.Context, agent string, enabled bool, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrAgentName, agent), attribute.Bool(AttrBridgeEnabled, enabled))
	m.cycles.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, durationMs, attrs)
}

// RecordMessage counts one inbound message.
func (m *BridgeMetrics) RecordMessage(ctx context.Context, agent, force string) {
	if m == nil {
		return
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrMessageForce, force),
	))
}

// RecordMutation counts one applied mutation.
func (m *BridgeMetrics) RecordMutation(ctx context.Context, agent, trigger, goal string) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrMutationTrigger, trigger),
		attribute.String(AttrMutationGoal, goal),
	))
}

// RecordIdleStep counts one idle engine step.
func (m *BridgeMetrics) RecordIdleStep(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.idleSteps.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

// RecordProtocolError counts one rejected force.
func (m *BridgeMetrics) RecordProtocolError(ctx context.Context, agent, force string) {
	if m == nil {
		return
	}
	m.protocolErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrMessageForce, force),
	))
}

// RecordDenied counts one message dropped by the admission policy.
func (m *BridgeMetrics) RecordDenied(ctx context.Context, agent, force string) {
	if m == nil {
		return
	}
	m.denied.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrMessageForce, force),
	))
}

// RecordSend counts one outbound message attempt.
func (m *BridgeMetrics) RecordSend(ctx context.Context, agent, force string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sends.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrMessageForce, force),
		attribute.String(AttrSendResult, result),
	))
}

// RecordQueueDepth records the queue length observed by a drain.
func (m *BridgeMetrics) RecordQueueDepth(ctx context.Context, agent string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Record(ctx, int64(depth), metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

// RecordError counts err by code for component.
func (m *BridgeMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	be := errors.AsBridgeError(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(be.Code)),
		attribute.String("component", component),
		attribute.String("recoverable", be.RecoverableString()),
	))
}
