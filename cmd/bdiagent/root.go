// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jllopis/kairos-bdi/pkg/config"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/telemetry"
)

// rootOptions holds the persistent flags and what PersistentPreRunE loads
// from them.
type rootOptions struct {
	configPath string
	profile    string
	overrides  []string
	envFile    string
	jsonErrors bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bdiagent",
		Short:         "Host BDI agents that talk through tell, untell and achieve",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("KAIROS_BDI_CONFIG"), "config file (YAML)")
	flags.StringVar(&opts.profile, "profile", "", "profile overlay, loads config.<profile>.yaml next to --config")
	flags.StringArrayVar(&opts.overrides, "set", nil, "override a config key, e.g. --set runtime.idle_delay_ms=50")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.BoolVar(&opts.jsonErrors, "json", false, "print errors as JSON")

	root.AddCommand(
		newRunCmd(opts),
		newMCPCmd(opts),
		newSendCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return root, opts
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if err := o.loadEnvFile(cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	cfg, err := config.LoadSource(config.Source{
		Path:      o.configPath,
		Profile:   o.profile,
		Overrides: o.overrides,
	})
	if err != nil {
		return wrapConfigError(err, o.configPath)
	}
	o.cfg = cfg
	o.logger = telemetry.ConfigureSlog(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return nil
}

// loadEnvFile loads the dotenv file. The default file is optional; one named
// explicitly must exist. Variables already set win.
func (o *rootOptions) loadEnvFile(explicit bool) error {
	if o.envFile == "" {
		return nil
	}
	if _, err := os.Stat(o.envFile); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.CodeConfiguration, "read env file", err).WithContext("path", o.envFile)
	}
	if err := godotenv.Load(o.envFile); err != nil {
		return errors.New(errors.CodeConfiguration, "parse env file", err).WithContext("path", o.envFile)
	}
	return nil
}

// initTelemetry starts the configured exporters for long running commands.
func initTelemetry(ctx context.Context, cfg *config.Config) (telemetry.ShutdownFunc, error) {
	shutdown, err := telemetry.InitWithConfig(ctx, cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		MetricInterval: cfg.Telemetry.MetricInterval(),
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "init telemetry", err)
	}
	return shutdown, nil
}
