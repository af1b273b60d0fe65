// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote carries bridge messages between processes over gRPC.
//
// The wire contract is a single unary method, kairos.bdi.v1.Mailbox/Deliver,
// taking a google.protobuf.Struct and returning google.protobuf.Empty, so no
// generated stubs are needed.
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "kairos.bdi.v1.Mailbox"
	DeliverMethod = "/" + ServiceName + "/Deliver"
)

// MailboxServer is the server side of the Mailbox service.
type MailboxServer interface {
	Deliver(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterMailboxServer registers srv on reg.
func RegisterMailboxServer(reg grpc.ServiceRegistrar, srv MailboxServer) {
	reg.RegisterService(&mailboxServiceDesc, srv)
}

var mailboxServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MailboxServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kairos/bdi/v1/mailbox.proto",
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MailboxServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MailboxServer).Deliver(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func invokeDeliver(ctx context.Context, conn grpc.ClientConnInterface, in *structpb.Struct, opts ...grpc.CallOption) error {
	out := new(emptypb.Empty)
	return conn.Invoke(ctx, DeliverMethod, in, out, opts...)
}
