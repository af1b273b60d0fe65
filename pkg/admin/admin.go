// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin serves the operator HTTP API: health, introspection and
// pause/resume/reload controls over hosted agents.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jllopis/kairos-bdi/pkg/audit"
	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/runtime"
)

// Agents is the view of hosted agents the API operates on.
// *runtime.Runtime implements it.
type Agents interface {
	Statuses() []runtime.AgentStatus
	Status(name string) (runtime.AgentStatus, bool)
	Bridge(name string) (*bdi.Bridge, bool)
}

type api struct {
	agents Agents
	health *core.HealthRegistry
	audit  audit.Store
	mcp    http.Handler
	logger *slog.Logger
}

// Option configures the API.
type Option func(*api)

// WithHealth serves /healthz from reg.
func WithHealth(reg *core.HealthRegistry) Option {
	return func(a *api) { a.health = reg }
}

// WithAudit serves the mutation journal.
func WithAudit(store audit.Store) Option {
	return func(a *api) { a.audit = store }
}

// WithMCP mounts an MCP streamable HTTP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(a *api) { a.mcp = h }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *api) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewHandler builds the router.
func NewHandler(agents Agents, opts ...Option) http.Handler {
	a := &api{agents: agents, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthz)
	if a.mcp != nil {
		r.Handle("/mcp", a.mcp)
	}

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", a.listAgents)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getAgent)
			r.Post("/pause", a.withBridge(a.pause))
			r.Post("/resume", a.withBridge(a.resume))
			r.Post("/reload", a.withBridge(a.reload))
			r.Get("/beliefs", a.withBridge(a.listBeliefs))
			r.Post("/beliefs", a.withBridge(a.addBelief))
			r.Delete("/beliefs", a.withBridge(a.removeBelief))
			r.Get("/beliefs/{functor}", a.withBridge(a.findBelief))
			r.Get("/beliefs/{functor}/values", a.withBridge(a.beliefValues))
			r.Post("/goals", a.withBridge(a.addGoal))
			r.Get("/journal", a.journal)
		})
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses of the mounted MCP handler working.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.InfoContext(r.Context(), "admin.http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
