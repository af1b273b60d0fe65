// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"log/slog"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/config"
	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// Reloader rebuilds a bridge's engine agent whenever its program file
// changes.
type Reloader struct {
	watcher *config.SourceWatcher
	logger  *slog.Logger
}

func NewReloader(watcher *config.SourceWatcher, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{watcher: watcher, logger: logger}
}

// Track watches the current program of b. The path is remembered so a
// reload that finds the file missing can recover once it reappears.
func (r *Reloader) Track(ctx context.Context, b *bdi.Bridge) error {
	path := b.ProgramPath()
	if path == "" {
		return errors.New(errors.CodeInvalidInput, "bridge has no program to watch", nil).WithContext("agent", b.Name())
	}
	return r.watcher.Watch(path, func(string) {
		if err := b.SetProgramSource(ctx, path); err != nil {
			r.logger.WarnContext(ctx, "runtime.reload.failed", "agent", b.Name(), "path", path, "error", err)
			return
		}
		r.logger.InfoContext(ctx, "runtime.reload.applied", "agent", b.Name(), "path", path, "enabled", b.Enabled())
	})
}
