// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

func (s *Server) registerTools() {
	agentArg := mcp.WithString("agent", mcp.Required(), mcp.Description("Agent name"))
	functorArg := mcp.WithString("functor", mcp.Required(), mcp.Description("Belief functor"))
	literalArg := mcp.WithString("literal", mcp.Required(), mcp.Description("Literal such as likes(coffee)"))
	originArg := mcp.WithString("source", mcp.Description("Origin annotation, percept when empty"))
	withOrigin := mcp.WithBoolean("include_source", mcp.Description("Keep source annotations"))

	s.addTool(mcp.NewTool("list_agents",
		mcp.WithDescription("List hosted agents and their state")), s.listAgents)
	s.addTool(mcp.NewTool("list_beliefs",
		mcp.WithDescription("List every belief of an agent"), agentArg, withOrigin), s.withBridge(s.listBeliefs))
	s.addTool(mcp.NewTool("find_belief",
		mcp.WithDescription("Find the first belief with a functor"), agentArg, functorArg, withOrigin), s.withBridge(s.findBelief))
	s.addTool(mcp.NewTool("belief_values",
		mcp.WithDescription("Arguments of the first belief with a functor"), agentArg, functorArg), s.withBridge(s.beliefValues))
	s.addTool(mcp.NewTool("pause_agent",
		mcp.WithDescription("Stop reasoning; inbound messages stay queued"), agentArg), s.withBridge(s.pause))
	s.addTool(mcp.NewTool("resume_agent",
		mcp.WithDescription("Resume reasoning"), agentArg), s.withBridge(s.resume))
	s.addTool(mcp.NewTool("add_belief",
		mcp.WithDescription("Queue a belief addition"), agentArg, literalArg, originArg), s.withBridge(s.addBelief))
	s.addTool(mcp.NewTool("achieve",
		mcp.WithDescription("Queue an achievement goal"), agentArg, literalArg, originArg), s.withBridge(s.achieve))
}

// addTool registers t unless the tool filter hides it.
func (s *Server) addTool(t mcp.Tool, h server.ToolHandlerFunc) {
	if decision := s.filter.IsAllowed(t.Name); !decision.Allowed {
		s.logger.Debug("mcp.tool.hidden", "tool", t.Name, "reason", decision.Reason)
		return
	}
	s.mcpServer.AddTool(t, h)
}

type bridgeHandler func(ctx context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// withBridge resolves the agent argument. Unknown agents are tool errors,
// not protocol errors.
func (s *Server) withBridge(h bridgeHandler) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("agent")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		b, ok := s.agents.Bridge(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("agent %q not found", name)), nil
		}
		return h(ctx, b, req)
	}
}

func (s *Server) listAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.agents.Statuses())
}

func (s *Server) listBeliefs(_ context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	beliefs := b.AllBeliefs(req.GetBool("include_source", false))
	if beliefs == nil {
		beliefs = []string{}
	}
	return jsonResult(beliefs)
}

func (s *Server) findBelief(_ context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	functor, err := req.RequireString("functor")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	belief, ok := b.FindBelief(functor, req.GetBool("include_source", false))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no belief with functor %q", functor)), nil
	}
	return mcp.NewToolResultText(belief), nil
}

func (s *Server) beliefValues(_ context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	functor, err := req.RequireString("functor")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	values, ok := b.ValuesOf(functor)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no belief with functor %q", functor)), nil
	}
	return jsonResult(values)
}

func (s *Server) pause(ctx context.Context, b *bdi.Bridge, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b.Pause(ctx)
	s.logger.InfoContext(ctx, "mcp.agent.paused", "agent", b.Name())
	return mcp.NewToolResultText("paused"), nil
}

func (s *Server) resume(ctx context.Context, b *bdi.Bridge, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := b.Resume(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(ctx, "mcp.agent.resumed", "agent", b.Name())
	return mcp.NewToolResultText("resumed"), nil
}

func (s *Server) addBelief(_ context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	functor, args, errResult := literal(req)
	if errResult != nil {
		return errResult, nil
	}
	b.AddBelief(functor, args, nil, req.GetString("source", ""))
	return mcp.NewToolResultText("queued"), nil
}

func (s *Server) achieve(_ context.Context, b *bdi.Bridge, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	functor, args, errResult := literal(req)
	if errResult != nil {
		return errResult, nil
	}
	origin := req.GetString("source", "")
	if origin == "" {
		origin = term.PerceptOrigin
	}
	b.AddAchievementGoal(functor, args, nil, origin)
	return mcp.NewToolResultText("queued"), nil
}

func literal(req mcp.CallToolRequest) (string, []term.Value, *mcp.CallToolResult) {
	raw, err := req.RequireString("literal")
	if err != nil {
		return "", nil, mcp.NewToolResultError(err.Error())
	}
	functor, args, err := term.ParseStrict(raw)
	if err != nil {
		return "", nil, mcp.NewToolResultError(err.Error())
	}
	return functor, args, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
