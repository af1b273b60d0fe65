// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/kairos-bdi/pkg/discovery"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
	"github.com/jllopis/kairos-bdi/pkg/telemetry"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// Client delivers messages to agents hosted by other processes.
type Client struct {
	resolver *discovery.Resolver
	breakers *resilience.Breakers
	timeout  time.Duration
	dialOpts []grpc.DialOption
	logger   *slog.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
	closed bool
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets a per-delivery timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithDialOptions replaces the default insecure dial options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) {
		if len(opts) > 0 {
			c.dialOpts = opts
		}
	}
}

// WithBreakers shares a per-peer circuit breaker set.
func WithBreakers(breakers *resilience.Breakers) ClientOption {
	return func(c *Client) {
		if breakers != nil {
			c.breakers = breakers
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client resolving peers through resolver.
func NewClient(resolver *discovery.Resolver, opts ...ClientOption) (*Client, error) {
	if resolver == nil {
		return nil, errors.New(errors.CodeConfiguration, "remote client needs a resolver", nil)
	}
	c := &Client{
		resolver: resolver,
		breakers: resilience.NewBreakers(resilience.CircuitBreakerConfig{}),
		timeout:  2 * time.Second,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		logger:   slog.Default(),
		tracer:   otel.Tracer("kairos-bdi/transport"),
		conns:    make(map[string]*grpc.ClientConn),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Deliver sends one RPC per recipient. It stops at the first failure.
func (c *Client) Deliver(ctx context.Context, msg transport.Message) error {
	if len(msg.To) == 0 {
		return errors.New(errors.CodeInvalidInput, "message has no recipients", nil)
	}
	for _, to := range msg.To {
		single := msg.Clone()
		single.To = []string{to}
		if err := c.deliverOne(ctx, to, single); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deliverOne(ctx context.Context, to string, msg transport.Message) error {
	endpoint, err := c.resolver.Lookup(ctx, to)
	if err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, "Mailbox.Deliver", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrMessageID, msg.ID),
		attribute.String(telemetry.AttrPeer, endpoint.Name),
		attribute.String(telemetry.AttrPeerAddr, endpoint.GRPCAddr),
	)

	in, err := ToStruct(msg)
	if err != nil {
		return err
	}
	conn, err := c.conn(endpoint.GRPCAddr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	err = c.breakers.For(endpoint.Name).Call(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fromStatus(invokeDeliver(injectTraceContext(callCtx), conn, in), endpoint.Name)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		c.logger.WarnContext(ctx, "transport.remote.send_failed",
			"message_id", msg.ID, "peer", endpoint.Name, "addr", endpoint.GRPCAddr, "error", err)
	}
	return err
}

func (c *Client) conn(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New(errors.CodeTransport, "remote client is closed", nil).WithRecoverable(false)
	}
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, c.dialOpts...)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "dial peer", err).WithContext("addr", addr)
	}
	c.conns[addr] = conn
	return conn, nil
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var first error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = errors.New(errors.CodeTransport, "close connection", err).WithContext("addr", addr)
		}
		delete(c.conns, addr)
	}
	return first
}
