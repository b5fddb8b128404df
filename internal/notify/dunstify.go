package notify

import (
	"context"

	"github.com/jmylchreest/gotify-dunst/internal/proc"
)

// DunstifyNotifier shows notifications by running dunstify.
type DunstifyNotifier struct {
	command string
	env     []string
	runner  proc.Runner
}

// NewDunstifyNotifier creates a notifier running command with env.
func NewDunstifyNotifier(command string, env []string, runner proc.Runner) *DunstifyNotifier {
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return &DunstifyNotifier{command: command, env: env, runner: runner}
}

// Name returns the backend identifier.
func (n *DunstifyNotifier) Name() string {
	return "dunstify"
}

// Notify runs dunstify and waits for it to exit. dunstify prints the key of
// the chosen action on stdout.
func (n *DunstifyNotifier) Notify(ctx context.Context, req Request) (Response, error) {
	res, err := n.runner.Run(ctx, n.env, n.command, DunstifyArgs(req)...)
	resp := Response{
		Stdout: res.StdoutString(),
		Stderr: res.StderrString(),
	}
	if err != nil {
		return resp, err
	}
	resp.ActionKey = resp.Stdout
	return resp, nil
}

// DunstifyArgs builds the dunstify argument list for req.
func DunstifyArgs(req Request) []string {
	args := []string{
		req.Title,
		req.Body,
		"-u", req.Urgency.String(),
		"-i", req.Icon,
		"-a", req.AppName,
		"-h", "string:desktop-entry:" + req.DesktopEntry,
	}

	if req.Category != "" {
		args = append(args, "-h", "string:category:"+req.Category)
	}

	for _, a := range req.Actions {
		args = append(args, "-A", a.Descriptor())
	}

	return args
}
