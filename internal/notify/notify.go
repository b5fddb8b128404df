// Package notify turns stream events into desktop notifications and reports
// which action, if any, the user picked.
package notify

import (
	"context"

	"github.com/jmylchreest/gotify-dunst/internal/model"
)

// Request is a single notification to show.
type Request struct {
	Title        string
	Body         string
	Urgency      model.Urgency
	Icon         string
	AppName      string
	DesktopEntry string
	Category     string // Optional
	Actions      []model.Action
}

// Response is what a Notifier observed while the notification was shown.
type Response struct {
	ActionKey string
	Stdout    string // Backend diagnostics, may be empty
	Stderr    string
}

// Notifier shows a notification and blocks until the daemon reports how it
// ended.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, req Request) (Response, error)
}
