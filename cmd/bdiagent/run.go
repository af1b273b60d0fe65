// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured agents until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
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
			if err := h.listen(); err != nil {
				return err
			}
			opts.logger.Info("host.started", "agents", h.runtime.Names(), "transport", opts.cfg.Transport.Mode)
			err = h.serve(ctx)
			opts.logger.Info("host.stopped")
			return err
		},
	}
	cmd.Flags().StringSliceVar(&only, "agent", nil, "run only the named agents (repeatable)")
	return cmd
}

func flushTelemetry(opts *rootOptions, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.cfg.Runtime.ShutdownTimeout())
	defer cancel()
	if err := shutdown(ctx); err != nil {
		opts.logger.Warn("telemetry.shutdown_failed", "error", err)
	}
}
