package proc

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), nil, "sh", "-c", "echo ' out '; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out", res.StdoutString())
	assert.Equal(t, "err", res.StderrString())
}

func TestExecRunner_PassesEnv(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), []string{"GREETING=hello"}, "sh", "-c", "printf %s \"$GREETING\"")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Stdout))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), nil, "sh", "-c", "echo partial; exit 3")
	require.Error(t, err)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "sh", invErr.Command)
	assert.Equal(t, 3, invErr.ExitCode)
	assert.Equal(t, "sh exited with status 3", invErr.Error())
	assert.Equal(t, "partial", res.StdoutString())
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), nil, "/nonexistent/gotify-dunst-helper")
	require.Error(t, err)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, -1, invErr.ExitCode)
	assert.Contains(t, invErr.Error(), "failed to run /nonexistent/gotify-dunst-helper")
}

func TestEnviron(t *testing.T) {
	base := []string{"HOME=/home/u", "DBUS_SESSION_BUS_ADDRESS=old", "PATH=/bin"}
	env := Environ(base, "DBUS_SESSION_BUS_ADDRESS=new", "DBUS_SESSION_BUS_PID=42")

	assert.Equal(t, []string{
		"HOME=/home/u",
		"PATH=/bin",
		"DBUS_SESSION_BUS_ADDRESS=new",
		"DBUS_SESSION_BUS_PID=42",
	}, env)
}
