package notify

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/gotify-dunst/internal/logging"
	"github.com/jmylchreest/gotify-dunst/internal/model"
)

// IconSource resolves an application id to a local icon path.
// Implementations return a usable path even when they also return an error.
type IconSource interface {
	GetIcon(ctx context.Context, appID int) (string, error)
}

// Options holds the fixed fields added to every notification.
type Options struct {
	AppName      string
	DesktopEntry string
}

// Dispatcher builds requests from events and hands them to a Notifier.
type Dispatcher struct {
	notifier Notifier
	icons    IconSource
	opts     Options
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(notifier Notifier, icons IconSource, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier: notifier,
		icons:    icons,
		opts:     opts,
		logger:   logger,
	}
}

// BuildRequest converts ev into a Request using iconPath.
func (d *Dispatcher) BuildRequest(ev model.Event, iconPath string) Request {
	return Request{
		Title:        ev.Title,
		Body:         ev.Message,
		Urgency:      ev.Urgency(),
		Icon:         iconPath,
		AppName:      d.opts.AppName,
		DesktopEntry: d.opts.DesktopEntry,
		Category:     ev.Category(),
		Actions:      ev.Actions(),
	}
}

// Dispatch shows ev and returns the action the user selected.
// Icon failures are logged and never stop the notification. A logger
// stored in ctx takes precedence over the dispatcher's own.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) (model.DispatchResult, error) {
	logger := logging.FromContext(ctx, d.logger)

	iconPath, err := d.icons.GetIcon(ctx, ev.AppID)
	if err != nil {
		logger.Warn("icon unavailable", "app_id", ev.AppID, "error", err)
	}

	req := d.BuildRequest(ev, iconPath)
	resp, err := d.notifier.Notify(ctx, req)

	logger.Info("notification sent",
		"title", req.Title,
		"body", req.Body,
		"urgency", req.Urgency.String(),
		"backend", d.notifier.Name(),
		"stdout", resp.Stdout,
		"stderr", resp.Stderr)

	if err != nil {
		return model.DispatchResult{}, err
	}
	return model.DispatchResult{ActionKey: resp.ActionKey}, nil
}
