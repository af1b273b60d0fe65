// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads bdiagent configuration. Layers apply in order:
// defaults, the YAML file, an optional profile file next to it
// (config.<profile>.yaml), KAIROS_BDI_* environment variables and finally
// explicit key=value overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KAIROS_BDI_"

type Config struct {
	Log       LogConfig             `koanf:"log"`
	Telemetry TelemetryConfig       `koanf:"telemetry"`
	Runtime   RuntimeConfig         `koanf:"runtime"`
	Transport TransportConfig       `koanf:"transport"`
	Peers     map[string]PeerConfig `koanf:"peers"`
	Admin     AdminConfig           `koanf:"admin"`
	Audit     AuditConfig           `koanf:"audit"`
	Policy    PolicyConfig          `koanf:"policy"`
	MCP       MCPConfig             `koanf:"mcp"`
	Agents    []AgentConfig         `koanf:"agents"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json, discard
}

type TelemetryConfig struct {
	Exporter              string `koanf:"exporter"` // none, stdout, otlp
	ServiceName           string `koanf:"service_name"`
	OTLPEndpoint          string `koanf:"otlp_endpoint"`
	OTLPInsecure          bool   `koanf:"otlp_insecure"`
	MetricIntervalSeconds int    `koanf:"metric_interval_seconds"`
}

type RuntimeConfig struct {
	// MaxCyclesPerSecond caps each agent loop; 0 means unlimited.
	MaxCyclesPerSecond     float64 `koanf:"max_cycles_per_second"`
	IdleDelayMs            int     `koanf:"idle_delay_ms"`
	SendRetries            int     `koanf:"send_retries"`
	ShutdownTimeoutSeconds int     `koanf:"shutdown_timeout_seconds"`
}

type TransportConfig struct {
	Mode                   string `koanf:"mode"` // local, grpc
	GRPCAddr               string `koanf:"grpc_addr"`
	InboxSize              int    `koanf:"inbox_size"`
	DeliverTimeoutMs       int    `koanf:"deliver_timeout_ms"`
	BreakerFailures        int    `koanf:"breaker_failures"`
	BreakerCooldownSeconds int    `koanf:"breaker_cooldown_seconds"`
}

// PeerConfig is a remote agent reachable over gRPC.
type PeerConfig struct {
	GRPCAddr string            `koanf:"grpc_addr"`
	Labels   map[string]string `koanf:"labels"`
}

type AdminConfig struct {
	// Addr is the HTTP listen address; empty disables the admin API.
	Addr string `koanf:"addr"`
}

type AuditConfig struct {
	Driver string `koanf:"driver"` // none, memory, sqlite
	DSN    string `koanf:"dsn"`
}

// PolicyConfig lists the admission rules of inbound messages. The first
// matching rule decides; Default applies when none matches.
type PolicyConfig struct {
	Default string             `koanf:"default"` // allow, deny
	Rules   []PolicyRuleConfig `koanf:"rules"`
}

// PolicyRuleConfig matches messages by agent, force and sender globs.
type PolicyRuleConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"` // allow, deny
	Agent  string `koanf:"agent"`
	Force  string `koanf:"force"`
	Sender string `koanf:"sender"`
	Reason string `koanf:"reason"`
}

// MCPConfig filters the operator tools by name or glob.
type MCPConfig struct {
	Allow []string `koanf:"allow"`
	Deny  []string `koanf:"deny"`
}

// AgentConfig declares one agent hosted by the process.
type AgentConfig struct {
	Name        string `koanf:"name"`
	Program     string `koanf:"program"`
	IdleDelayMs int    `koanf:"idle_delay_ms"`
	Watch       bool   `koanf:"watch"`
}

// Source says where to load configuration from.
type Source struct {
	Path      string
	Profile   string
	Overrides []string
}

var defaults = map[string]any{
	"log.level":                          "info",
	"log.format":                         "text",
	"telemetry.exporter":                 "none",
	"telemetry.service_name":             "bdiagent",
	"telemetry.otlp_endpoint":            "localhost:4317",
	"telemetry.otlp_insecure":            true,
	"telemetry.metric_interval_seconds":  15,
	"runtime.max_cycles_per_second":      100,
	"runtime.idle_delay_ms":              100,
	"runtime.send_retries":               3,
	"runtime.shutdown_timeout_seconds":   5,
	"transport.mode":                     "local",
	"transport.grpc_addr":                ":7420",
	"transport.inbox_size":               64,
	"transport.deliver_timeout_ms":       2000,
	"transport.breaker_failures":         5,
	"transport.breaker_cooldown_seconds": 30,
	"audit.driver":                       "none",
	"audit.dsn":                          "file:bdi_audit.db",
	"policy.default":                     "allow",
}

// Load reads path (may be empty), the environment and defaults.
func Load(path string) (*Config, error) {
	return LoadSource(Source{Path: path})
}

// LoadWithProfile layers config.<profile>.yaml over path when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadSource(Source{Path: path, Profile: profile})
}

// LoadSource loads and validates configuration.
func LoadSource(src Source) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "set default "+key, err)
		}
	}

	if src.Path != "" {
		if err := k.Load(file.Provider(src.Path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "load config file", err).WithContext("path", src.Path)
		}
	}
	if profilePath := profileConfigPath(src.Path, src.Profile); profilePath != "" {
		if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "load profile file", err).WithContext("path", profilePath)
		}
	}

	// KAIROS_BDI_TELEMETRY_OTLP_ENDPOINT -> telemetry.otlp_endpoint
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "load environment", err)
	}

	for _, raw := range src.Overrides {
		key, value, err := ParseOverride(raw)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, value); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "apply override "+key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps the first segment after the prefix to the section and keeps
// the rest as one key.
func envKey(s string) string {
	name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(name, "_")
	if !ok {
		return section
	}
	return section + "." + rest
}

// ParseOverride splits key=value. Values that are valid JSON are decoded,
// so numbers, booleans, lists and objects keep their type.
func ParseOverride(raw string) (string, any, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, errors.Newf(errors.CodeConfiguration, "override %q must be key=value", raw)
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		return key, decoded, nil
	}
	return key, value, nil
}

func profileConfigPath(base, profile string) string {
	profile = strings.TrimSpace(profile)
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Validate checks enumerations and agent declarations.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json", "discard":
	default:
		return invalid("log.format", c.Log.Format)
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return invalid("telemetry.exporter", c.Telemetry.Exporter)
	}
	switch c.Transport.Mode {
	case "local", "grpc":
	default:
		return invalid("transport.mode", c.Transport.Mode)
	}
	switch c.Audit.Driver {
	case "none", "memory", "sqlite":
	default:
		return invalid("audit.driver", c.Audit.Driver)
	}
	switch strings.ToLower(c.Policy.Default) {
	case "allow", "deny":
	default:
		return invalid("policy.default", c.Policy.Default)
	}
	for i, rule := range c.Policy.Rules {
		switch strings.ToLower(rule.Effect) {
		case "allow", "deny":
		default:
			return invalid(fmt.Sprintf("policy.rules[%d].effect", i), rule.Effect)
		}
	}
	if c.Runtime.MaxCyclesPerSecond < 0 {
		return invalid("runtime.max_cycles_per_second", fmt.Sprint(c.Runtime.MaxCyclesPerSecond))
	}
	seen := make(map[string]struct{}, len(c.Agents))
	for i, agent := range c.Agents {
		if strings.TrimSpace(agent.Name) == "" {
			return errors.Newf(errors.CodeConfiguration, "agents[%d]: name is required", i)
		}
		if _, dup := seen[agent.Name]; dup {
			return errors.Newf(errors.CodeConfiguration, "agents[%d]: duplicate name %q", i, agent.Name)
		}
		seen[agent.Name] = struct{}{}
	}
	for name, peer := range c.Peers {
		if strings.TrimSpace(peer.GRPCAddr) == "" {
			return errors.Newf(errors.CodeConfiguration, "peers.%s: grpc_addr is required", name)
		}
	}
	return nil
}

func invalid(key, value string) error {
	return errors.Newf(errors.CodeConfiguration, "invalid %s %q", key, value)
}

// IdleDelay returns the agent idle delay, falling back to the runtime one.
func (c *Config) IdleDelay(agent AgentConfig) time.Duration {
	ms := agent.IdleDelayMs
	if ms <= 0 {
		ms = c.Runtime.IdleDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Agent returns the declaration of name.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, agent := range c.Agents {
		if agent.Name == name {
			return agent, true
		}
	}
	return AgentConfig{}, false
}

// DeliverTimeout is the per-call deadline of remote deliveries.
func (t TransportConfig) DeliverTimeout() time.Duration {
	return time.Duration(t.DeliverTimeoutMs) * time.Millisecond
}

// BreakerCooldown is how long an open circuit stays open.
func (t TransportConfig) BreakerCooldown() time.Duration {
	return time.Duration(t.BreakerCooldownSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (r RuntimeConfig) ShutdownTimeout() time.Duration {
	return time.Duration(r.ShutdownTimeoutSeconds) * time.Second
}

// MetricInterval is the metric export period.
func (t TelemetryConfig) MetricInterval() time.Duration {
	return time.Duration(t.MetricIntervalSeconds) * time.Second
}
