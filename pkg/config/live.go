package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xconn/xconn-go/pkg/connection"
	"github.com/xconn/xconn-go/pkg/resolver"
)

// reloadDelay coalesces the burst of events editors produce on save.
var reloadDelay = 100 * time.Millisecond

// Live holds the current settings and reloads them when the file changes.
// It supplies per-attempt configuration to connection runners.
// It is safe for concurrent use.
type Live struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	cfg      *Config
	res      resolver.Resolver
	onReload []func(*Config)

	watcher *fsnotify.Watcher
	pending *time.Timer
}

// NewLive loads the settings file at path.
func NewLive(path string, logger *slog.Logger) (*Live, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(cfg.ResolverConfig())
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	return &Live{
		path:   filepath.Clean(path),
		logger: logger.With("component", "config"),
		cfg:    cfg,
		res:    res,
	}, nil
}

// Config returns the current settings. Callers must not modify it.
func (l *Live) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// AttemptConfig returns the configuration for the next attempt.
func (l *Live) AttemptConfig() connection.AttemptConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return connection.AttemptConfig{
		Resolver:      l.res,
		ProtocolDebug: l.cfg.ProtocolDebug,
	}
}

// SetResolver switches the DNS resolution strategy until the next reload.
func (l *Live) SetResolver(strategy resolver.Strategy) error {
	l.mu.RLock()
	next := *l.cfg
	l.mu.RUnlock()

	next.DNS.Resolver = string(strategy)
	if err := next.Validate(); err != nil {
		return err
	}
	res, err := resolver.New(next.ResolverConfig())
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.cfg = &next
	l.res = res
	l.mu.Unlock()

	l.logger.Info("resolver changed", "strategy", strategy)
	return nil
}

// OnReload registers a callback invoked after each successful reload.
func (l *Live) OnReload(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, fn)
}

// Reload reads the settings file again. On error the current settings
// stay in effect.
func (l *Live) Reload() error {
	cfg, err := Load(l.path)
	if err != nil {
		return err
	}
	res, err := resolver.New(cfg.ResolverConfig())
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.res = res
	callbacks := append([]func(*Config){}, l.onReload...)
	l.mu.Unlock()

	l.logger.Info("settings reloaded", "path", l.path, "resolver", cfg.DNS.Resolver)
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Watch reloads the settings whenever the file changes, until ctx is
// done or Close is called. The directory is watched so that editors which
// replace the file on save are handled.
func (l *Live) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop(ctx, watcher)
	return nil
}

func (l *Live) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				l.scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("watch error", "error", err)
		}
	}
}

func (l *Live) scheduleReload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		l.pending.Stop()
	}
	l.pending = time.AfterFunc(reloadDelay, func() {
		if err := l.Reload(); err != nil {
			l.logger.Error("reload failed, keeping current settings", "error", err)
		}
	})
}

// Close stops watching.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		l.pending.Stop()
	}
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

// Compile-time interface satisfaction check.
var _ connection.SettingsSource = (*Live)(nil)
