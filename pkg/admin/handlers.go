// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jllopis/kairos-bdi/pkg/audit"
	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

type literalRequest struct {
	Literal string `json:"literal"`
	Source  string `json:"source,omitempty"`
}

type healthResponse struct {
	Status     core.HealthStatus   `json:"status"`
	Components []core.HealthResult `json:"components"`
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: core.HealthHealthy, Components: []core.HealthResult{}})
		return
	}
	results, overall := a.health.CheckAll(r.Context())
	code := http.StatusOK
	if overall == core.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: overall, Components: results})
}

func (a *api) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.agents.Statuses())
}

func (a *api) getAgent(w http.ResponseWriter, r *http.Request) {
	status, ok := a.agents.Status(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type bridgeHandler func(w http.ResponseWriter, r *http.Request, b *bdi.Bridge)

func (a *api) withBridge(h bridgeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := a.agents.Bridge(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		h(w, r, b)
	}
}

func (a *api) writeStatus(w http.ResponseWriter, code int, b *bdi.Bridge) {
	status, _ := a.agents.Status(b.Name())
	writeJSON(w, code, status)
}

func (a *api) pause(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	b.Pause(r.Context())
	a.writeStatus(w, http.StatusOK, b)
}

func (a *api) resume(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	if err := b.Resume(r.Context()); err != nil {
		writeBridgeError(w, err)
		return
	}
	a.writeStatus(w, http.StatusOK, b)
}

func (a *api) reload(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	if err := b.LoadProgram(r.Context()); err != nil {
		writeBridgeError(w, err)
		return
	}
	a.writeStatus(w, http.StatusOK, b)
}

func (a *api) listBeliefs(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	beliefs := b.AllBeliefs(includeSource(r))
	if beliefs == nil {
		beliefs = []string{}
	}
	writeJSON(w, http.StatusOK, beliefs)
}

func (a *api) findBelief(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	functor := chi.URLParam(r, "functor")
	belief, ok := b.FindBelief(functor, includeSource(r))
	if !ok {
		writeError(w, http.StatusNotFound, "belief not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"belief": belief})
}

func (a *api) beliefValues(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	values, ok := b.ValuesOf(chi.URLParam(r, "functor"))
	if !ok {
		writeError(w, http.StatusNotFound, "belief not found")
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (a *api) addBelief(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	req, functor, args, ok := decodeLiteral(w, r)
	if !ok {
		return
	}
	b.AddBelief(functor, args, nil, req.Source)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": b.Queue().Len()})
}

func (a *api) removeBelief(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	_, functor, args, ok := decodeLiteral(w, r)
	if !ok {
		return
	}
	b.RemoveBelief(functor, args)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": b.Queue().Len()})
}

func (a *api) addGoal(w http.ResponseWriter, r *http.Request, b *bdi.Bridge) {
	req, functor, args, ok := decodeLiteral(w, r)
	if !ok {
		return
	}
	origin := req.Source
	if origin == "" {
		origin = term.PerceptOrigin
	}
	b.AddAchievementGoal(functor, args, nil, origin)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": b.Queue().Len()})
}

func (a *api) journal(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotFound, "audit journal disabled")
		return
	}
	filter := audit.Filter{
		Agent:  chi.URLParam(r, "id"),
		Status: r.URL.Query().Get("status"),
		Limit:  100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	entries, err := a.audit.List(r.Context(), filter)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func decodeLiteral(w http.ResponseWriter, r *http.Request) (literalRequest, string, []term.Value, bool) {
	var req literalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, "", nil, false
	}
	if req.Literal == "" {
		writeError(w, http.StatusBadRequest, "literal is required")
		return req, "", nil, false
	}
	functor, args, err := term.ParseStrict(req.Literal)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, "", nil, false
	}
	return req, functor, args, true
}

func includeSource(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("source"))
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeBridgeError(w http.ResponseWriter, err error) {
	be := errors.AsBridgeError(err)
	status := http.StatusInternalServerError
	switch be.Code {
	case errors.CodeInvalidInput, errors.CodeParse:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeConfiguration:
		status = http.StatusConflict
	case errors.CodeTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]any{"error": be.Message, "code": be.Code})
}
