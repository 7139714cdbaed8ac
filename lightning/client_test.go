package lightning

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// fakeCLI writes an executable shell script standing in for lightning-cli.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lightning-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func testClient(t *testing.T, script string) *Client {
	c := NewClient(t.TempDir(), "bitcoin")
	c.Binary = fakeCLI(t, script)
	return c
}

func TestReachable(t *testing.T) {
	c := NewClient(t.TempDir(), "regtest")
	assert.False(t, c.Reachable())

	require.NoError(t, os.MkdirAll(filepath.Dir(c.RPCPath()), 0755))
	require.NoError(t, os.WriteFile(c.RPCPath(), nil, 0600))
	assert.True(t, c.Reachable())
}

func TestStartPluginSuccess(t *testing.T) {
	c := testClient(t, `echo '{"command":"start","plugins":[]}'`+"\nexit 0\n")
	err := c.StartPlugin(context.Background(), testLogger(), "/p/x.py")
	assert.NoError(t, err)
}

func TestStartPluginAlreadyRegistered(t *testing.T) {
	c := testClient(t, `echo '{"code":-3,"message":"/p/x.py: already registered"}'`+"\nexit 1\n")
	err := c.StartPlugin(context.Background(), testLogger(), "/p/x.py")
	require.Error(t, err)

	cerr, ok := err.(*ControlError)
	require.True(t, ok)
	assert.Equal(t, KindAlreadyRegistered, cerr.Kind)
	assert.Equal(t, 1, cerr.ExitCode)
	assert.True(t, Tolerated(err, KindAlreadyRegistered))
	assert.False(t, Tolerated(err, KindNotRunning))
}

func TestStopPluginNotRunningByCode(t *testing.T) {
	c := testClient(t, `echo '{"code":-32602,"message":"Could not find plugin x.py"}'`+"\nexit 1\n")
	err := c.StopPlugin(context.Background(), testLogger(), "/p/x.py")
	require.Error(t, err)
	assert.True(t, Tolerated(err, KindNotRunning))
}

func TestStopPluginNotRunningByMessage(t *testing.T) {
	c := testClient(t, `echo '{"code":-1,"message":"plugin x.py is not running"}'`+"\nexit 1\n")
	err := c.StopPlugin(context.Background(), testLogger(), "/p/x.py")
	require.Error(t, err)
	assert.True(t, Tolerated(err, KindNotRunning))
}

func TestControlErrorOtherKind(t *testing.T) {
	c := testClient(t, `echo '{"code":-5,"message":"plugin exited before replying"}'`+"\nexit 2\n")
	err := c.StartPlugin(context.Background(), testLogger(), "/p/x.py")
	require.Error(t, err)

	cerr, ok := err.(*ControlError)
	require.True(t, ok)
	assert.Equal(t, KindOther, cerr.Kind)
	assert.Equal(t, -5, cerr.Code)
	assert.Equal(t, 2, cerr.ExitCode)
	assert.Contains(t, cerr.Error(), "plugin exited before replying")
}

func TestControlErrorKeepsUnstructuredStderr(t *testing.T) {
	c := testClient(t, "echo 'socket refused' >&2\nexit 1\n")
	err := c.StartPlugin(context.Background(), testLogger(), "/p/x.py")
	require.Error(t, err)

	cerr, ok := err.(*ControlError)
	require.True(t, ok)
	assert.Equal(t, KindOther, cerr.Kind)
	assert.Equal(t, "socket refused", cerr.Message)
}

func TestParseErrorPrefersStdout(t *testing.T) {
	e := parseError([]byte(`{"code":-1,"message":"a"}`), []byte(`{"code":-2,"message":"b"}`))
	assert.Equal(t, -1, e.Code)

	e = parseError(nil, []byte(`{"code":-2,"message":"b"}`))
	assert.Equal(t, -2, e.Code)

	e = parseError(nil, nil)
	assert.Zero(t, e.Code)
	assert.Empty(t, e.Message)
}

func TestToleratedRejectsOtherErrors(t *testing.T) {
	assert.False(t, Tolerated(os.ErrNotExist, KindNotRunning))
	assert.False(t, Tolerated(nil, KindNotRunning))
}
