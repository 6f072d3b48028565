package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file whenever it changes and hands every
// valid result to onChange. It watches the parent directory so editors
// that replace the file on save are followed. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("Watching configuration", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			reload(abs, logger, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}

func reload(path string, logger *slog.Logger, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		logger.Warn("Failed to reload configuration", "path", path, "error", err)
		return
	}
	if err := Validate(cfg); err != nil {
		logger.Warn("Ignoring invalid configuration", "path", path, "error", err)
		return
	}
	logger.Info("Configuration reloaded", "path", path)
	onChange(cfg)
}
