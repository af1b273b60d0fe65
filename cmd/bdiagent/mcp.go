// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/spf13/cobra"
)

// newMCPCmd runs the agents like run but serves operator tools over stdio
// instead of the network surfaces. Logs go to stderr.
func newMCPCmd(opts *rootOptions) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the configured agents and serve MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			shutdown, err := initTelemetry(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer flushTelemetry(opts, shutdown)

			h, err := newHost(ctx, opts.cfg, opts.logger, only)
			if err != nil {
				return err
			}
			defer h.close()

			done := make(chan error, 1)
			go func() { done <- h.serve(ctx) }()

			serveErr := h.mcpServer().ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			interrupted := ctx.Err() != nil
			cancel()
			runErr := <-done
			if serveErr != nil && !interrupted {
				return serveErr
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&only, "agent", nil, "run only the named agents (repeatable)")
	return cmd
}
