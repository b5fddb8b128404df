package daemon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/gotify-dunst/internal/actions"
	"github.com/jmylchreest/gotify-dunst/internal/logging"
	"github.com/jmylchreest/gotify-dunst/internal/model"
	"github.com/jmylchreest/gotify-dunst/internal/proc"
)

type fakeDispatcher struct {
	events []model.Event
	result model.DispatchResult
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, ev model.Event) (model.DispatchResult, error) {
	f.events = append(f.events, ev)
	logging.FromContext(ctx, nil).Info("notification sent", "title", ev.Title)
	return f.result, f.err
}

type fakeRouter struct {
	keys []string
}

func (f *fakeRouter) Route(_ context.Context, key string) {
	f.keys = append(f.keys, key)
}

func TestHandleFrame_DispatchesWithoutAction(t *testing.T) {
	d := &fakeDispatcher{}
	r := &fakeRouter{}
	relay := NewRelay(d, r, nil)

	relay.HandleFrame(context.Background(), []byte(`{"appid":3,"title":"Backup","message":"done","priority":2}`))

	require.Len(t, d.events, 1)
	assert.Equal(t, "Backup", d.events[0].Title)
	assert.Equal(t, 3, d.events[0].AppID)
	assert.Empty(t, r.keys)
}

func TestHandleFrame_RoutesSelectedAction(t *testing.T) {
	d := &fakeDispatcher{result: model.DispatchResult{ActionKey: "install"}}
	r := &fakeRouter{}
	relay := NewRelay(d, r, nil)

	relay.HandleFrame(context.Background(), []byte(`{"appid":1,"title":"Update","message":"v2","priority":8,
		"extras":{"actions":{"install":"Install","ignore":"Ignore"}}}`))

	require.Len(t, d.events, 1)
	assert.Equal(t, []string{"install"}, r.keys)
}

func TestHandleFrame_SkipsUndecodableFrame(t *testing.T) {
	d := &fakeDispatcher{}
	r := &fakeRouter{}
	relay := NewRelay(d, r, nil)

	relay.HandleFrame(context.Background(), []byte(`{"title":`))
	relay.HandleFrame(context.Background(), nil)

	assert.Empty(t, d.events)
	assert.Empty(t, r.keys)
}

func TestHandleFrame_DispatchErrorSkipsRouting(t *testing.T) {
	d := &fakeDispatcher{
		result: model.DispatchResult{ActionKey: "install"},
		err:    errors.New("dunstify exited with status 1"),
	}
	r := &fakeRouter{}
	relay := NewRelay(d, r, nil)

	relay.HandleFrame(context.Background(), []byte(`{"appid":1,"title":"x","message":"y","priority":5}`))

	assert.Len(t, d.events, 1)
	assert.Empty(t, r.keys)
}

func TestHandleFrame_ContinuesAfterFailure(t *testing.T) {
	d := &fakeDispatcher{}
	relay := NewRelay(d, &fakeRouter{}, nil)

	relay.HandleFrame(context.Background(), []byte(`not json`))
	relay.HandleFrame(context.Background(), []byte(`{"title":"second"}`))

	require.Len(t, d.events, 1)
	assert.Equal(t, "second", d.events[0].Title)
}

func TestNewDispatchID(t *testing.T) {
	a := newDispatchID()
	b := newDispatchID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

type okRunner struct{}

func (okRunner) Run(context.Context, []string, string, ...string) (proc.Result, error) {
	return proc.Result{Stdout: []byte("done")}, nil
}

func TestHandleFrame_DispatchIDReachesDispatcherAndRouter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d := &fakeDispatcher{result: model.DispatchResult{ActionKey: "install"}}
	router := actions.NewRouter(map[string][]string{"install": {"/bin/install.sh"}}, okRunner{}, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	relay := NewRelay(d, router, logger)

	relay.HandleFrame(context.Background(), []byte(`{"appid":1,"title":"Update","message":"v2","priority":5}`))

	out := buf.String()
	ids := regexp.MustCompile(`dispatch_id=(\w+)`).FindAllStringSubmatch(out, -1)
	require.NotEmpty(t, ids)
	for _, m := range ids[1:] {
		assert.Equal(t, ids[0][1], m[1])
	}

	for _, msg := range []string{"notification sent", "action command finished"} {
		line := lineContaining(out, msg)
		require.NotEmpty(t, line, "missing log line %q", msg)
		assert.Contains(t, line, "dispatch_id="+ids[0][1])
	}
}

func TestHandleFrame_MalformedExtrasStillDispatched(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	d := &fakeDispatcher{}
	relay := NewRelay(d, &fakeRouter{}, logger)

	relay.HandleFrame(context.Background(), []byte(`{"appid":1,"title":"x","message":"y","priority":5,"extras":{"category":{}}}`))

	require.Len(t, d.events, 1)
	assert.Contains(t, buf.String(), "ignoring malformed extras")
}

func lineContaining(out, substr string) string {
	for _, line := range bytes.Split([]byte(out), []byte("\n")) {
		if bytes.Contains(line, []byte(substr)) {
			return string(line)
		}
	}
	return ""
}
