package manager

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/datalog/config"
)

// WatchConfig re-reads the config file at path whenever it changes and applies it. The directory
// is watched rather than the file so editors that replace the file on save are followed. A file
// that fails to read or validate is logged and ignored. Reloads are applied with ctx, and watching
// stops when ctx is done or the manager is closed.
func (m *Manager) WatchConfig(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return multierr.Combine(errors.Wrapf(err, "watching %s", abs), watcher.Close())
	}

	m.workers.Add(func(workerCtx context.Context) {
		defer func() {
			if err := watcher.Close(); err != nil {
				m.logger.Warnw("closing config watcher", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-workerCtx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warnw("config watcher error", "error", err)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				m.reload(ctx, abs)
			}
		}
	})
	m.logger.Infow("watching config", "path", abs)
	return nil
}

func (m *Manager) reload(ctx context.Context, path string) {
	cfg, err := config.Read(path)
	if err != nil {
		m.logger.Warnw("ignoring config change", "path", path, "error", err)
		return
	}
	if err := m.Apply(ctx, cfg); err != nil {
		m.logger.Errorw("applying config change", "path", path, "error", err)
		return
	}
	m.logger.Infow("config reloaded", "path", path)
}
