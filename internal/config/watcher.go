package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives a freshly loaded and validated Config.
type ReloadFunc func(*Config) error

// Watcher reloads the configuration file when it changes on disk. Invalid
// files are logged and ignored; the running configuration stays in place.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for the file at path.
func NewWatcher(path string, onReload ReloadFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: 500 * time.Millisecond,
		onReload: onReload,
		logger:   logger.With(slog.String("component", "config_watcher")),
	}
}

// Reload loads, validates and applies the file once.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return fmt.Errorf("config: reload: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: reload: %w", err)
	}
	return w.onReload(cfg)
}

// Run watches the file's directory until ctx is cancelled. The directory is
// watched rather than the file so atomic rename-on-save editors still trigger.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer fw.Close()

	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(target), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("config reload rejected", slog.String("error", err.Error()))
				continue
			}
			w.logger.Info("config reloaded", slog.String("path", w.path))
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
