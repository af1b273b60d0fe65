// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jllopis/kairos-bdi/pkg/discovery"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

const bufSize = 1024 * 1024

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// serve starts a Mailbox server for local on a bufconn listener and returns
// a client whose resolver maps each peer name to it.
func serve(t *testing.T, local Deliverer, peers []string, opts ...ClientOption) *Client {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()
	RegisterMailboxServer(srv, NewServer(local))
	go func() { _ = srv.Serve(lis) }()

	entries := make([]discovery.AgentEndpoint, 0, len(peers))
	for _, name := range peers {
		entries = append(entries, discovery.AgentEndpoint{Name: name, GRPCAddr: "passthrough:///bufnet"})
	}
	resolver, err := discovery.NewResolver(&discovery.StaticProvider{Entries: entries})
	require.NoError(t, err)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	opts = append([]ClientOption{WithDialOptions(
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)}, opts...)
	client, err := NewClient(resolver, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
		_ = lis.Close()
	})
	return client
}

type delivererFunc func(ctx context.Context, msg transport.Message) error

func (f delivererFunc) Deliver(ctx context.Context, msg transport.Message) error { return f(ctx, msg) }

func TestCodecRoundTrip(t *testing.T) {
	msg := transport.NewMessage("alice", []string{"bob", "carol"}, "likes(coffee)").WithForce("tell")
	msg.Thread = "t-1"

	s, err := ToStruct(msg)
	require.NoError(t, err)
	got, err := FromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestFromStructValidates(t *testing.T) {
	_, err := FromStruct(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	for _, msg := range []transport.Message{
		transport.NewMessage("", []string{"bob"}, "x"),
		transport.NewMessage("alice", nil, "x"),
		transport.NewMessage("alice", []string{"bob"}, ""),
	} {
		s, err := ToStruct(msg)
		require.NoError(t, err)
		_, err = FromStruct(s)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), "message %+v", msg)
	}
}

func TestRouterDeliversLocallyAndRemotely(t *testing.T) {
	farHub := transport.NewHub()
	bob, err := farHub.Register("bob")
	require.NoError(t, err)
	client := serve(t, farHub, []string{"bob"})

	router := NewRouter(transport.NewHub(), client)
	alice, err := router.Mailbox("alice")
	require.NoError(t, err)
	carol, err := router.Mailbox("carol")
	require.NoError(t, err)

	msg := transport.NewMessage("", []string{"bob", "carol"}, "hi(1)").WithForce("tell")
	require.NoError(t, alice.Send(context.Background(), msg))

	got, ok, err := carol.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, []string{"carol"}, got.To)

	got, ok, err = bob.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, []string{"bob"}, got.To)
	assert.Equal(t, "tell", got.Force())
	assert.Equal(t, "hi(1)", got.Body)
}

func TestRouterWithoutRemoteRejectsUnknownAgents(t *testing.T) {
	router := NewRouter(transport.NewHub(), nil)
	alice, err := router.Mailbox("alice")
	require.NoError(t, err)

	err = alice.Send(context.Background(), transport.NewMessage("", []string{"ghost"}, "x"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRemoteNotFoundIsNotRetried(t *testing.T) {
	client := serve(t, transport.NewHub(), []string{"dave"})

	err := client.Deliver(context.Background(), transport.NewMessage("alice", []string{"dave"}, "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.AsBridgeError(err).Recoverable)

	err = client.Deliver(context.Background(), transport.NewMessage("alice", []string{"erin"}, "x"))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "unresolvable peer")
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	failing := delivererFunc(func(context.Context, transport.Message) error {
		calls.Add(1)
		return errors.New(errors.CodeTransport, "inbox full", nil)
	})
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	client := serve(t, failing, []string{"bob"}, WithBreakers(breakers))

	for i := 0; i < 2; i++ {
		err := client.Deliver(context.Background(), transport.NewMessage("alice", []string{"bob"}, "x"))
		require.True(t, errors.Is(err, errors.ErrTransport))
		assert.True(t, errors.AsBridgeError(err).Recoverable, "unavailable is retryable")
	}
	err := client.Deliver(context.Background(), transport.NewMessage("alice", []string{"bob"}, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.StateOpen, breakers.For("bob").State())
}

func TestTraceContextIsPropagated(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	seen := make(chan trace.SpanContext, 1)
	client := serve(t, delivererFunc(func(ctx context.Context, _ transport.Message) error {
		seen <- trace.SpanContextFromContext(ctx)
		return nil
	}), []string{"bob"})

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), parent)
	require.NoError(t, client.Deliver(ctx, transport.NewMessage("alice", []string{"bob"}, "x")))

	got := <-seen
	assert.Equal(t, parent.TraceID(), got.TraceID())
}

func TestClosedClientFails(t *testing.T) {
	client := serve(t, transport.NewHub(), []string{"bob"})
	require.NoError(t, client.Close())

	err := client.Deliver(context.Background(), transport.NewMessage("alice", []string{"bob"}, "x"))
	assert.True(t, errors.Is(err, errors.ErrTransport))
}
