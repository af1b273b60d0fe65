// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/interpreter"
)

// newCheckCmd validates program files. With no arguments it checks every
// program declared in the configuration.
func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [PROGRAM...]",
		Short: "Validate agent programs without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				for _, agent := range opts.cfg.Agents {
					if agent.Program != "" {
						paths = append(paths, agent.Program)
					}
				}
			}
			if len(paths) == 0 {
				return invalidArgument("PROGRAM", "no program given and none declared in the configuration")
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range paths {
				prog, err := interpreter.LoadFile(path)
				if err == nil {
					err = prog.Validate()
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%d beliefs, %d goals, %d plans)\n", path, len(prog.Beliefs), len(prog.Goals), len(prog.Plans))
			}
			if failed > 0 {
				return errors.Newf(errors.CodeConfiguration, "%d of %d programs failed validation", failed, len(paths))
			}
			return nil
		},
	}
}
