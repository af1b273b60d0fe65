// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/jllopis/kairos-bdi/pkg/admin"
	"github.com/jllopis/kairos-bdi/pkg/audit"
	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/config"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/discovery"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/governance"
	"github.com/jllopis/kairos-bdi/pkg/interpreter"
	"github.com/jllopis/kairos-bdi/pkg/mcp"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
	"github.com/jllopis/kairos-bdi/pkg/runtime"
	"github.com/jllopis/kairos-bdi/pkg/telemetry"
	"github.com/jllopis/kairos-bdi/pkg/transport"
	"github.com/jllopis/kairos-bdi/pkg/transport/remote"
)

// host owns every agent of the process and the servers in front of them.
type host struct {
	cfg     *config.Config
	logger  *slog.Logger
	emitter core.EventEmitter
	metrics *telemetry.BridgeMetrics
	policy  governance.PolicyEngine

	hub     *transport.Hub
	client  *remote.Client
	router  *remote.Router
	journal audit.Store
	closers []func() error

	runtime  *runtime.Runtime
	health   *core.HealthRegistry
	watcher  *config.SourceWatcher
	reloader *runtime.Reloader

	grpcLis  net.Listener
	adminLis net.Listener
}

// newHost builds and sets up the agents named in only, or every declared
// agent when only is empty.
func newHost(ctx context.Context, cfg *config.Config, logger *slog.Logger, only []string) (*host, error) {
	agents, err := selectAgents(cfg.Agents, only)
	if err != nil {
		return nil, err
	}

	h := &host{
		cfg:     cfg,
		logger:  logger,
		emitter: core.LogEmitter{Logger: logger},
		policy:  governance.RuleSetFromConfig(cfg.Policy),
		hub:     transport.NewHub(transport.WithInboxSize(cfg.Transport.InboxSize)),
		health:  core.NewHealthRegistry(),
	}
	h.runtime = runtime.New(
		runtime.WithLogger(logger),
		runtime.WithEventEmitter(h.emitter),
		runtime.WithMaxCyclesPerSecond(cfg.Runtime.MaxCyclesPerSecond),
		runtime.WithShutdownTimeout(cfg.Runtime.ShutdownTimeout()),
	)

	if h.metrics, err = telemetry.NewBridgeMetrics(); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "create bridge metrics", err)
	}
	if err := h.openJournal(ctx); err != nil {
		return nil, err
	}
	if cfg.Transport.Mode == "grpc" {
		if err := h.dialPeers(); err != nil {
			h.close()
			return nil, err
		}
	}
	h.router = remote.NewRouter(h.hub, h.client)

	for _, agent := range agents {
		if err := h.spawn(ctx, agent); err != nil {
			h.close()
			return nil, err
		}
	}
	h.runtime.RegisterHealth(h.health)
	return h, nil
}

func selectAgents(declared []config.AgentConfig, only []string) ([]config.AgentConfig, error) {
	if len(only) == 0 {
		return declared, nil
	}
	out := make([]config.AgentConfig, 0, len(only))
	for _, name := range only {
		i := slices.IndexFunc(declared, func(a config.AgentConfig) bool { return a.Name == name })
		if i < 0 {
			return nil, errors.Newf(errors.CodeNotFound, "agent %q is not declared", name)
		}
		out = append(out, declared[i])
	}
	return out, nil
}

func (h *host) openJournal(ctx context.Context) error {
	switch h.cfg.Audit.Driver {
	case "memory":
		h.journal = audit.NewMemoryStore()
	case "sqlite":
		store, err := audit.OpenSQLite(ctx, h.cfg.Audit.DSN)
		if err != nil {
			return errors.New(errors.CodeConfiguration, "open audit journal", err).WithContext("dsn", h.cfg.Audit.DSN)
		}
		h.journal = store
		h.closers = append(h.closers, store.Close)
	}
	return nil
}

func (h *host) dialPeers() error {
	resolver, err := discovery.NewResolver(discovery.NewConfigProvider(h.cfg))
	if err != nil {
		return err
	}
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: h.cfg.Transport.BreakerFailures,
		SuccessThreshold: 1,
		Cooldown:         h.cfg.Transport.BreakerCooldown(),
	})
	h.client, err = remote.NewClient(resolver,
		remote.WithTimeout(h.cfg.Transport.DeliverTimeout()),
		remote.WithBreakers(breakers),
		remote.WithClientLogger(h.logger),
	)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, h.client.Close)
	return nil
}

func (h *host) spawn(ctx context.Context, agent config.AgentConfig) error {
	box, err := h.router.Mailbox(agent.Name)
	if err != nil {
		return err
	}
	opts := []bdi.Option{
		bdi.WithLogger(h.logger),
		bdi.WithIdleDelay(h.cfg.IdleDelay(agent)),
		bdi.WithEventEmitter(h.emitter),
		bdi.WithMetrics(h.metrics),
		bdi.WithPolicy(h.policy),
		bdi.WithSendRetry(sendRetry(h.cfg.Runtime.SendRetries)),
	}
	if agent.Program != "" {
		opts = append(opts, bdi.WithProgram(agent.Program))
	}
	if h.journal != nil {
		opts = append(opts, bdi.WithAudit(h.journal))
	}

	b, err := bdi.New(agent.Name, box, interpreter.New(interpreter.WithLogger(h.logger)), opts...)
	if err != nil {
		return err
	}
	if err := b.Setup(ctx); err != nil {
		return wrapProgramError(err, agent.Program)
	}
	if !b.Enabled() {
		h.logger.Warn("host.agent.disabled", "agent", agent.Name, "program", agent.Program)
	}
	if err := h.runtime.Spawn(b); err != nil {
		return err
	}
	if agent.Watch {
		return h.track(ctx, b, agent)
	}
	return nil
}

func (h *host) track(ctx context.Context, b *bdi.Bridge, agent config.AgentConfig) error {
	if agent.Program == "" {
		h.logger.Warn("host.agent.watch_skipped", "agent", agent.Name, "reason", "no program")
		return nil
	}
	if h.watcher == nil {
		w, err := config.NewSourceWatcher(config.WithWatchLogger(h.logger))
		if err != nil {
			return err
		}
		h.watcher = w
		h.reloader = runtime.NewReloader(w, h.logger)
	}
	if b.ProgramPath() == "" {
		// The program was missing at setup; watch the declared path so the
		// agent starts once it appears.
		return h.watcher.Watch(agent.Program, func(path string) {
			if err := b.SetProgramSource(ctx, path); err != nil {
				h.logger.WarnContext(ctx, "runtime.reload.failed", "agent", b.Name(), "path", path, "error", err)
			}
		})
	}
	return h.reloader.Track(ctx, b)
}

func sendRetry(attempts int) resilience.RetryConfig {
	if attempts <= 1 {
		return resilience.NoRetry()
	}
	return resilience.DefaultRetryConfig().WithMaxAttempts(attempts)
}

// listen binds the gRPC and admin addresses so bind errors surface before
// any agent starts.
func (h *host) listen() error {
	var lc net.ListenConfig
	if h.cfg.Transport.Mode == "grpc" {
		lis, err := lc.Listen(context.Background(), "tcp", h.cfg.Transport.GRPCAddr)
		if err != nil {
			return errors.New(errors.CodeTransport, "listen grpc", err).WithContext("addr", h.cfg.Transport.GRPCAddr)
		}
		h.grpcLis = lis
	}
	if h.cfg.Admin.Addr != "" {
		lis, err := lc.Listen(context.Background(), "tcp", h.cfg.Admin.Addr)
		if err != nil {
			h.closeListeners()
			return errors.New(errors.CodeTransport, "listen admin", err).WithContext("addr", h.cfg.Admin.Addr)
		}
		h.adminLis = lis
	}
	return nil
}

// serve runs the agents and the bound servers until ctx is done or every
// agent has stopped with an error.
func (h *host) serve(ctx context.Context) error {
	if h.watcher != nil {
		h.watcher.Start(ctx)
		defer h.watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	if err := h.runtime.Start(ctx); err != nil {
		return err
	}
	g.Go(h.runtime.Wait)

	if h.grpcLis != nil {
		srv := grpc.NewServer()
		remote.RegisterMailboxServer(srv, remote.NewServer(h.hub, remote.WithServerLogger(h.logger)))
		h.logger.Info("host.grpc.listening", "addr", h.grpcLis.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(h.grpcLis); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
				return errors.New(errors.CodeTransport, "grpc server", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			srv.GracefulStop()
			return nil
		})
	}

	if h.adminLis != nil {
		srv := &http.Server{Handler: h.adminHandler(), ReadHeaderTimeout: 5 * time.Second}
		h.logger.Info("host.admin.listening", "addr", h.adminLis.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(h.adminLis); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return errors.New(errors.CodeTransport, "admin server", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.Runtime.ShutdownTimeout())
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (h *host) adminHandler() http.Handler {
	opts := []admin.Option{
		admin.WithHealth(h.health),
		admin.WithLogger(h.logger),
		admin.WithMCP(h.mcpServer().HTTPHandler()),
	}
	if h.journal != nil {
		opts = append(opts, admin.WithAudit(h.journal))
	}
	return admin.NewHandler(h.runtime, opts...)
}

func (h *host) mcpServer() *mcp.Server {
	filter := governance.ToolFilterFromConfig(h.cfg.MCP.Allow, h.cfg.MCP.Deny)
	return mcp.NewServer("bdiagent", version, h.runtime, h.logger, mcp.WithToolFilter(filter))
}

func (h *host) closeListeners() {
	for _, lis := range []net.Listener{h.grpcLis, h.adminLis} {
		if lis != nil {
			_ = lis.Close()
		}
	}
}

// close releases the watcher, the hub, the remote client and the journal.
func (h *host) close() {
	if h.watcher != nil {
		h.watcher.Stop()
	}
	h.hub.Close()
	for _, closeFn := range slices.Backward(h.closers) {
		if err := closeFn(); err != nil {
			h.logger.Warn("host.close_failed", "error", err)
		}
	}
	h.closers = nil
}
