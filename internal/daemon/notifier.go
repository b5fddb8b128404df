package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/gotify-dunst/internal/model"
	"github.com/jmylchreest/gotify-dunst/internal/notify"
)

// statusTimeout bounds a single status notification.
const statusTimeout = 10 * time.Second

// StatusNotifier shows notifications about gotify-dunst itself, such as a
// config reload. Repeats of the same key within minInterval are dropped.
type StatusNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifier notify.Notifier
	opts     notify.Options

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
	wg      sync.WaitGroup
}

// NewStatusNotifier creates a StatusNotifier sending through notifier.
func NewStatusNotifier(notifier notify.Notifier, opts notify.Options, logger *slog.Logger) *StatusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusNotifier{
		logger:         logger,
		notifier:       notifier,
		opts:           opts,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
}

// SetEnabled enables or disables status notifications.
func (n *StatusNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications with the same key.
func (n *StatusNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify shows a status notification in the background unless it is
// rate-limited. It reports whether the notification was sent.
func (n *StatusNotifier) Notify(key, summary, body string, urgency model.Urgency) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled || n.notifier == nil {
		return false
	}

	if lastTime, ok := n.lastNotifyTime[key]; ok && time.Since(lastTime) < n.minInterval {
		n.logger.Debug("status notification rate-limited", "key", key, "summary", summary)
		return false
	}
	n.lastNotifyTime[key] = time.Now()

	req := notify.Request{
		Title:        summary,
		Body:         body,
		Urgency:      urgency,
		Icon:         statusIcon(urgency),
		AppName:      n.opts.AppName,
		DesktopEntry: n.opts.DesktopEntry,
		Category:     "device",
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		if _, err := n.notifier.Notify(ctx, req); err != nil {
			n.logger.Warn("failed to send status notification", "key", key, "error", err)
		}
	}()
	return true
}

// Wait blocks until in-flight notifications have finished.
func (n *StatusNotifier) Wait() {
	n.wg.Wait()
}

// NotifyConfigReloaded reports a successful config reload.
func (n *StatusNotifier) NotifyConfigReloaded(actionKeys []string) {
	body := "Action routes reloaded."
	if len(actionKeys) > 0 {
		body = "Action routes reloaded: " + strings.Join(actionKeys, ", ") + "."
	}
	n.Notify("config-reload", "Configuration Reloaded", body, model.UrgencyLow)
}

// NotifyConfigError reports a config file that failed to load.
func (n *StatusNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(), model.UrgencyNormal)
}

func statusIcon(u model.Urgency) string {
	switch u {
	case model.UrgencyLow:
		return "dialog-information"
	case model.UrgencyCritical:
		return "dialog-error"
	default:
		return "dialog-warning"
	}
}
