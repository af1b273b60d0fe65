// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jllopis/kairos-bdi/pkg/telemetry"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// Deliverer hands a message to the agents it names. *transport.Hub and
// *Router implement it.
type Deliverer interface {
	Deliver(ctx context.Context, msg transport.Message) error
}

// Server accepts remote deliveries and routes them to local agents.
type Server struct {
	local  Deliverer
	logger *slog.Logger
	tracer trace.Tracer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server delivering into local.
func NewServer(local Deliverer, opts ...ServerOption) *Server {
	s := &Server{
		local:  local,
		logger: slog.Default(),
		tracer: otel.Tracer("kairos-bdi/transport"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver implements MailboxServer.
func (s *Server) Deliver(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	ctx = extractTraceContext(ctx)
	ctx, span := s.tracer.Start(ctx, "Mailbox.Deliver", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	msg, err := FromStruct(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, toStatus(err)
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrMessageID, msg.ID),
		attribute.String(telemetry.AttrMessageSender, msg.Sender),
	)

	if err := s.local.Deliver(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.WarnContext(ctx, "transport.remote.deliver_failed",
			"message_id", msg.ID, "sender", msg.Sender, "to", msg.To, "error", err)
		return nil, toStatus(err)
	}
	s.logger.DebugContext(ctx, "transport.remote.delivered", "message_id", msg.ID, "sender", msg.Sender, "to", msg.To)
	return &emptypb.Empty{}, nil
}
