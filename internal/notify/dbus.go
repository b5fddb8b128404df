package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/gotify-dunst/internal/model"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the well-known name of the notification daemon.
	DBusBusName = "org.freedesktop.Notifications"
)

// DBusNotifier talks to the notification daemon directly over the session
// bus at address, without an external helper.
type DBusNotifier struct {
	address string
	logger  *slog.Logger
}

// NewDBusNotifier creates a notifier for the bus at address.
func NewDBusNotifier(address string, logger *slog.Logger) *DBusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBusNotifier{address: address, logger: logger}
}

// Name returns the backend identifier.
func (n *DBusNotifier) Name() string {
	return "dbus"
}

// Notify sends the notification. When actions are offered it waits for
// ActionInvoked or NotificationClosed for its id.
func (n *DBusNotifier) Notify(ctx context.Context, req Request) (Response, error) {
	conn, err := dbus.Connect(n.address)
	if err != nil {
		return Response{}, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	// Subscribe before calling Notify so a fast click is not missed
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
	); err != nil {
		return Response{}, fmt.Errorf("failed to add match rule: %w", err)
	}
	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	var id uint32
	obj := conn.Object(DBusBusName, DBusPath)
	call := obj.CallWithContext(ctx, DBusInterface+".Notify", 0,
		req.AppName,
		uint32(0),
		req.Icon,
		req.Title,
		req.Body,
		DBusActions(req.Actions),
		DBusHints(req),
		int32(-1),
	)
	if err := call.Store(&id); err != nil {
		return Response{}, fmt.Errorf("notify call failed: %w", err)
	}
	n.logger.Debug("notification accepted by daemon", "id", id)
	if len(req.Actions) == 0 {
		return Response{}, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return Response{}, errors.New("session bus connection closed")
			}
			if key, done := MatchSignal(sig, id); done {
				return Response{ActionKey: key}, nil
			}
		}
	}
}

// DBusActions flattens actions into the alternating key, label array of
// the Notify call.
func DBusActions(actions []model.Action) []string {
	flat := make([]string, 0, len(actions)*2)
	for _, a := range actions {
		flat = append(flat, a.Key, a.Label)
	}
	return flat
}

// DBusHints builds the hints map of the Notify call.
func DBusHints(req Request) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(req.Urgency.Byte()),
		"desktop-entry": dbus.MakeVariant(req.DesktopEntry),
	}
	if req.Category != "" {
		hints["category"] = dbus.MakeVariant(req.Category)
	}
	return hints
}

// MatchSignal inspects sig for the notification id. It returns done once
// the notification has ended, with key set if an action was invoked.
func MatchSignal(sig *dbus.Signal, id uint32) (key string, done bool) {
	if sig == nil || len(sig.Body) < 2 {
		return "", false
	}
	sigID, ok := sig.Body[0].(uint32)
	if !ok || sigID != id {
		return "", false
	}

	switch sig.Name {
	case DBusInterface + ".ActionInvoked":
		key, _ = sig.Body[1].(string)
		return key, true
	case DBusInterface + ".NotificationClosed":
		return "", true
	}
	return "", false
}
