// SPDX-License-Identifier: Apache-2.0
// kairos-bdi Observability Dashboards
// This file documents dashboard templates for an OTEL UI or Grafana fed by
// the OTLP exporter (telemetry.exporter: otlp).
//
// DASHBOARD: Agent Throughput
//   Shows how busy each hosted agent is.
//
//   Queries:
//   - kairos_bdi.cycles{kairos_bdi.agent, kairos_bdi.bridge.enabled} (rate 1m)
//     Metric: Cycles per second by agent
//     Display: Line chart, one series per agent
//     Note: enabled=false cycles are idle sleeps of paused or program-less agents
//
//   - kairos_bdi.cycle.duration{kairos_bdi.agent} (p50, p95, p99)
//     Metric: Cycle latency in ms
//     Display: Heatmap
//
//   - kairos_bdi.steps.idle{kairos_bdi.agent} / kairos_bdi.cycles{enabled="true"}
//     Metric: Share of cycles with an empty mutation queue
//     Display: Single stat per agent
//
// DASHBOARD: Speech Acts
//   Inbound and outbound messages by illocutionary force.
//
//   Queries:
//   - kairos_bdi.messages.received{kairos_bdi.message.force} (rate 5m)
//     Display: Stacked area chart (tell, untell, achieve, custom forces)
//
//   - kairos_bdi.messages.sent{kairos_bdi.send.result} (rate 5m)
//     Display: Stacked bars, ok vs error
//
//   - kairos_bdi.protocol_errors{kairos_bdi.message.force}
//     Metric: Messages carrying an unknown force
//     Display: Table by agent and force
//
//   - kairos_bdi.messages.denied{kairos_bdi.agent, kairos_bdi.message.force}
//     Metric: Messages dropped by the admission policy
//     Display: Table by agent and force
//
// DASHBOARD: Mutations
//   How knowledge changes inside each agent.
//
//   Queries:
//   - kairos_bdi.mutations.applied{kairos_bdi.mutation.trigger, kairos_bdi.mutation.goal}
//     Display: Stacked area chart (add/remove x belief/achieve)
//
//   - kairos_bdi.queue.depth{kairos_bdi.agent}
//     Metric: Queue length at the start of each drain
//     Display: Line chart; a steadily growing depth means the agent cannot keep up
//
// DASHBOARD: Errors
//   Queries:
//   - kairos_bdi.errors{error.code, component, recoverable} (rate 5m)
//     Display: Heatmap of code x component
//     Insight: ENGINE_ERROR stops only the owning agent; TRANSPORT_ERROR on
//     receive usually means the hub was closed
//
// ALERT RULES (Prometheus/AlertManager format):
//
// Alert 1: Agent Stalled
//   Name: BDIAgentStalled
//   Condition: rate(kairos_bdi.cycles{enabled="true"}[5m]) == 0
//   Duration: 5m
//   Severity: critical
//   Message: "Agent {{ $labels.agent }} stopped cycling"
//   Action: Check runtime.agent.stopped logs and GET /agents/{id}
//
// Alert 2: Queue Backlog
//   Name: BDIQueueBacklog
//   Condition: kairos_bdi.queue.depth > 1000
//   Duration: 2m
//   Severity: warning
//   Message: "Mutation backlog {{ $value }} on {{ $labels.agent }}"
//   Action: Lower inbound rate or raise runtime.max_cycles_per_second
//
// Alert 3: Failing Sends
//   Name: BDISendFailures
//   Condition: rate(kairos_bdi.messages.sent{result="error"}[5m]) > 1
//   Duration: 2m
//   Severity: warning
//   Message: "{{ $value }} failed sends/sec from {{ $labels.agent }}"
//   Action: Check peers and transport.breaker_* settings
//
// Alert 4: Protocol Errors
//   Name: BDIProtocolErrors
//   Condition: rate(kairos_bdi.protocol_errors[5m]) > 0
//   Duration: 5m
//   Severity: warning
//   Message: "Agents receive unknown forces"
//   Action: Check the sender programs for typos in .send forces
//
package internal

// This file is documentation only.
// See pkg/telemetry/metrics.go for the instruments.
