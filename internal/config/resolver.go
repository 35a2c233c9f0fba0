package config

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

// Resolver maps connection ids to connection parameters, backed by the
// loaded configuration. When constructed with a config file path it can
// hot-reload the connection set on file changes.
type Resolver struct {
	mu     sync.RWMutex
	conns  map[string]core.ConnConfig
	path   string
	logger *slog.Logger
}

// NewResolver creates a resolver over the given config. path is the config
// file backing the connection set; empty disables Watch.
// If logger is nil, a discard logger is used.
func NewResolver(cfg *Config, path string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conns := make(map[string]core.ConnConfig, len(cfg.Connections))
	for id, c := range cfg.Connections {
		conns[id] = c
	}
	return &Resolver{conns: conns, path: path, logger: logger}
}

// Resolve returns the connection parameters for id.
func (r *Resolver) Resolve(id string) (core.ConnConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return core.ConnConfig{}, &UnknownConnectionError{ID: id, Available: r.idsLocked()}
	}
	return c, nil
}

// IDs returns all configured connection ids (sorted).
func (r *Resolver) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *Resolver) idsLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reload re-reads the backing config file and swaps in its connection set.
// A no-op when the resolver has no backing file.
func (r *Resolver) Reload() error {
	if r.path == "" {
		return nil
	}

	cfg, err := LoadFromFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload connections: %w", err)
	}

	r.mu.Lock()
	r.conns = cfg.Connections
	r.mu.Unlock()

	r.logger.Info("connections reloaded", "path", r.path, "count", len(cfg.Connections))
	return nil
}

// Watch reloads the connection set whenever the backing config file changes,
// until ctx is done. A reload failure keeps the previous connection set and
// is logged, never fatal. Returns immediately when no file backs the
// resolver.
func (r *Resolver) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(r.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", r.path, err)
	}

	r.logger.Debug("watching connections config", "path", r.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("config reload failed, keeping previous connections", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", "error", err)
		}
	}
}

// UnknownConnectionError is returned when an unconfigured connection id is
// requested.
type UnknownConnectionError struct {
	ID        string
	Available []string
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("unknown connection %q (available: %v)", e.ID, e.Available)
}
