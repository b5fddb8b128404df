package daemon

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/gotify-dunst/internal/logging"
	"github.com/jmylchreest/gotify-dunst/internal/model"
)

// Dispatcher shows one event and reports the selected action.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.Event) (model.DispatchResult, error)
}

// ActionRouter runs the command bound to an action key.
type ActionRouter interface {
	Route(ctx context.Context, key string)
}

// Relay processes stream frames one at a time.
type Relay struct {
	dispatcher Dispatcher
	router     ActionRouter
	logger     *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(dispatcher Dispatcher, router ActionRouter, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		dispatcher: dispatcher,
		router:     router,
		logger:     logger,
	}
}

// HandleFrame decodes, dispatches and routes a single frame. Failures are
// logged and confined to this frame. The dispatcher and router receive a
// logger tagged with the frame's dispatch_id through ctx.
func (r *Relay) HandleFrame(ctx context.Context, frame []byte) {
	logger := r.logger.With("dispatch_id", newDispatchID())
	ctx = logging.NewContext(ctx, logger)

	ev, err := model.ParseEvent(frame)
	if err != nil {
		logger.Warn("dropping undecodable frame", "error", err, "size", len(frame))
		return
	}

	logger.Debug("received message", "id", ev.ID, "app_id", ev.AppID, "priority", ev.Priority)
	if skipped := ev.SkippedExtras(); len(skipped) > 0 {
		logger.Warn("ignoring malformed extras", "fields", skipped)
	}

	res, err := r.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		logger.Error("failed to dispatch notification", "title", ev.Title, "error", err)
		return
	}

	if !res.HasAction() {
		return
	}

	logger.Info("user selected action", "action_key", res.ActionKey)
	r.router.Route(ctx, res.ActionKey)
}

func newDispatchID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
