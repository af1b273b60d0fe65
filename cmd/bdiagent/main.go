// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command bdiagent hosts speech-act driven BDI agents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, opts := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err, opts.jsonErrors)
		stop()
		os.Exit(1)
	}
}
