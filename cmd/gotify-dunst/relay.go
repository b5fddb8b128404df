package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/gotify-dunst/internal/actions"
	"github.com/jmylchreest/gotify-dunst/internal/config"
	"github.com/jmylchreest/gotify-dunst/internal/daemon"
	"github.com/jmylchreest/gotify-dunst/internal/iconcache"
	"github.com/jmylchreest/gotify-dunst/internal/notify"
	"github.com/jmylchreest/gotify-dunst/internal/proc"
	"github.com/jmylchreest/gotify-dunst/internal/session"
	"github.com/jmylchreest/gotify-dunst/internal/stream"
)

func runRelay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := proc.ExecRunner{}

	handle, err := ensureSession(ctx, runner)
	if err != nil {
		return err
	}
	logger.Info("using dbus session", "address", handle.Address, "pid", handle.PID)

	env := proc.Environ(os.Environ(), handle.Environ()...)

	cacheDir := config.CacheDir()
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	icons := iconcache.New(cacheDir, cfg.Server.BaseURL(), cfg.Server.Token,
		&http.Client{Timeout: cfg.HTTP.Timeout.Duration()}, logger)
	icons.SetUserAgent("gotify-dunst/" + version)

	notifier := newNotifier(handle, env, runner)
	opts := notify.Options{
		AppName:      cfg.Notify.AppName,
		DesktopEntry: cfg.Notify.DesktopEntry,
	}
	dispatcher := notify.NewDispatcher(notifier, icons, opts, logger)

	status := daemon.NewStatusNotifier(notifier, opts, logger)
	status.SetEnabled(cfg.Notify.Status)
	defer status.Wait()

	router := actions.NewRouter(cfg.Actions, runner, env, logger)
	relay := daemon.NewRelay(dispatcher, router, logger)

	watcher, err := daemon.NewConfigWatcher(configPath(), logger)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.SetReloadCallback(func(c *config.Config) {
			router.SetRoutes(c.Actions)
			status.SetEnabled(c.Notify.Status)
			logger.Info("action routes updated", "actions", router.Keys())
			status.NotifyConfigReloaded(router.Keys())
		})
		watcher.SetErrorCallback(status.NotifyConfigError)
		if err := watcher.Start(); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	sub := stream.New(stream.Config{
		URL:              cfg.Server.StreamURL(),
		Reconnect:        cfg.Stream.Reconnect,
		InitialBackoff:   cfg.Stream.InitialBackoff.Duration(),
		MaxBackoff:       cfg.Stream.MaxBackoff.Duration(),
		HandshakeTimeout: cfg.Stream.HandshakeTimeout.Duration(),
	}, logger)

	logger.Info("relay started",
		"server", cfg.Server.BaseURL(),
		"backend", notifier.Name(),
		"actions", router.Keys(),
	)

	if err := sub.Run(ctx, relay.HandleFrame); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func ensureSession(ctx context.Context, runner proc.Runner) (session.Handle, error) {
	mgr := session.NewManager(config.SessionFilePath(globalOpts.local), cfg.Session.LaunchCommand, runner, logger)
	return mgr.Ensure(ctx)
}

func newNotifier(handle session.Handle, env []string, runner proc.Runner) notify.Notifier {
	if cfg.Notify.Backend == config.BackendDBus {
		return notify.NewDBusNotifier(handle.Address, logger)
	}
	return notify.NewDunstifyNotifier(cfg.Notify.Command, env, runner)
}
