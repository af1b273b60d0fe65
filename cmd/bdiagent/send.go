// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/discovery"
	"github.com/jllopis/kairos-bdi/pkg/term"
	"github.com/jllopis/kairos-bdi/pkg/transport"
	"github.com/jllopis/kairos-bdi/pkg/transport/remote"
)

type sendOptions struct {
	to    []string
	force string
	from  string
	addr  string
}

// newSendCmd delivers one message to agents hosted by another process.
func newSendCmd(opts *rootOptions) *cobra.Command {
	so := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send LITERAL",
		Short: "Send one speech-act message to remote agents",
		Example: `  bdiagent send --to alice --force tell 'weather(sunny)'
  bdiagent send --to alice --force achieve --addr localhost:7420 'greet(bob)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := so.message(args[0])
			if err != nil {
				return err
			}
			resolver, err := so.resolver(opts)
			if err != nil {
				return err
			}
			client, err := remote.NewClient(resolver,
				remote.WithTimeout(opts.cfg.Transport.DeliverTimeout()),
				remote.WithClientLogger(opts.logger),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Deliver(cmd.Context(), msg); err != nil {
				return wrapSendError(err, so.addr)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&so.to, "to", nil, "recipient agent names (repeatable)")
	flags.StringVar(&so.force, "force", bdi.ForceNameTell, "illocutionary force: tell, untell, achieve or a custom force")
	flags.StringVar(&so.from, "from", "operator", "sender name recorded as the belief origin")
	flags.StringVar(&so.addr, "addr", "", "deliver to this gRPC address instead of the configured peers")
	return cmd
}

func (so *sendOptions) message(body string) (transport.Message, error) {
	if len(so.to) == 0 {
		return transport.Message{}, invalidArgument("--to", "at least one recipient is required")
	}
	if so.force == "" {
		return transport.Message{}, invalidArgument("--force", "force is required")
	}
	if so.from == "" {
		return transport.Message{}, invalidArgument("--from", "sender is required")
	}
	switch so.force {
	case bdi.ForceNameTell, bdi.ForceNameUntell, bdi.ForceNameAchieve:
		if _, _, err := term.ParseStrict(body); err != nil {
			return transport.Message{}, invalidArgument("LITERAL", err.Error())
		}
	}
	return transport.NewMessage(so.from, so.to, body).WithForce(so.force), nil
}

func (so *sendOptions) resolver(opts *rootOptions) (*discovery.Resolver, error) {
	if so.addr == "" {
		return discovery.NewResolver(discovery.NewConfigProvider(opts.cfg))
	}
	static := &discovery.StaticProvider{}
	for _, name := range so.to {
		static.Entries = append(static.Entries, discovery.AgentEndpoint{Name: name, GRPCAddr: so.addr})
	}
	return discovery.NewResolver(static)
}
