// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
)

const defaultTimeout = 10 * time.Second

// ClientOption customizes the operator client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry sets the retry policy of every request.
func WithRetry(rc resilience.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = rc
	}
}

// Client drives a bdiagent MCP server, for scripts and tests.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
}

// NewClient wraps an initialized mcp-go client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry:     resilience.DefaultRetryConfig().WithMaxAttempts(2),
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Dial connects to a streamable HTTP endpoint and initializes the session.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	httpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, errors.New(errors.CodeTransport, "create mcp client", err).WithContext("url", url)
	}
	if err := httpClient.Start(ctx); err != nil {
		return nil, errors.New(errors.CodeTransport, "start mcp client", err).WithContext("url", url)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "bdiagent-client", Version: "0.1.0"}
	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if _, err := httpClient.Initialize(initCtx, init); err != nil {
		_ = httpClient.Close()
		return nil, errors.New(errors.CodeTransport, "initialize mcp session", err).WithContext("url", url)
	}
	return NewClient(httpClient, opts...), nil
}

// ListTools retrieves the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		tools = res.Tools
		return nil
	})
	return tools, err
}

// CallTool executes a tool. Tool-level failures come back as a result with
// IsError set, not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.mcpClient.CallTool(reqCtx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// Text concatenates the text content of a tool result.
func Text(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			out += text.Text
		}
	}
	return out
}

// Close closes the session.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}
