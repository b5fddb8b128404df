// Package actions runs local commands for notification actions picked by
// the user.
package actions

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jmylchreest/gotify-dunst/internal/logging"
	"github.com/jmylchreest/gotify-dunst/internal/proc"
)

// Router maps action keys to commands. Routes can be swapped at runtime.
type Router struct {
	mu     sync.RWMutex
	routes map[string][]string

	runner proc.Runner
	env    []string
	logger *slog.Logger
}

// NewRouter creates a Router. Commands run with env.
func NewRouter(routes map[string][]string, runner proc.Runner, env []string, logger *slog.Logger) *Router {
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{runner: runner, env: env, logger: logger}
	r.SetRoutes(routes)
	return r
}

// SetRoutes replaces the route table. Entries with an empty command are dropped.
func (r *Router) SetRoutes(routes map[string][]string) {
	table := make(map[string][]string, len(routes))
	for key, argv := range routes {
		if len(argv) == 0 || argv[0] == "" {
			r.logger.Warn("ignoring action with empty command", "action_key", key)
			continue
		}
		table[key] = slices.Clone(argv)
	}

	r.mu.Lock()
	r.routes = table
	r.mu.Unlock()
}

// Keys returns the configured action keys, sorted.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.routes))
}

// Lookup returns the command for key.
func (r *Router) Lookup(key string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	argv, ok := r.routes[key]
	return argv, ok
}

// Route runs the command for key and waits for it. Unknown keys and
// command failures are logged, never returned.
func (r *Router) Route(ctx context.Context, key string) {
	logger := logging.FromContext(ctx, r.logger)

	argv, ok := r.Lookup(key)
	if !ok {
		logger.Warn("no handler for action", "action_key", key)
		return
	}

	res, err := r.runner.Run(ctx, r.env, argv[0], argv[1:]...)
	if err != nil {
		logger.Error("action command failed",
			"action_key", key,
			"command", argv[0],
			"stdout", res.StdoutString(),
			"stderr", res.StderrString(),
			"error", err)
		return
	}

	logger.Info("action command finished",
		"action_key", key,
		"command", argv[0],
		"stdout", res.StdoutString(),
		"stderr", res.StderrString())
}
