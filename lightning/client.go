// Package lightning talks to a running lightningd through its command-line
// client. Responses are decoded into typed structures and errors classified
// into explicit kinds instead of being string-matched at call sites.
package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrorKind classifies a failed control call.
type ErrorKind int

const (
	// KindOther is any daemon error reckless does not tolerate.
	KindOther ErrorKind = iota
	// KindAlreadyRegistered means a start call hit a plugin that is
	// already active. Treated as success by callers.
	KindAlreadyRegistered
	// KindNotRunning means a stop call hit a plugin that is not active.
	// Treated as success by callers.
	KindNotRunning
)

// lightningd reports a stopped plugin with JSONRPC code -32602. "already
// registered" has no dedicated code, so that half of the contract is the
// documented message substring below.
const (
	codeNotRunning       = -32602
	msgAlreadyRegistered = ": already registered"
	msgNotRunning        = "is not running"
)

// ControlError is a non-tolerated failure of a daemon control call. It keeps
// the daemon's own code and message plus the client's exit status so the CLI
// can propagate it.
type ControlError struct {
	Kind     ErrorKind
	Code     int
	Message  string
	ExitCode int
}

func (e *ControlError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lightning-cli exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("lightningd error %d: %s", e.Code, e.Message)
}

// Client invokes lightning-cli against a specific data directory and
// network. Control calls carry a short timeout; a stuck daemon should not
// hang an operator command.
type Client struct {
	LightningDir string
	Network      string
	// Binary overrides the client executable name, mainly for tests.
	Binary string
	// Timeout bounds each control call. Zero means the default.
	Timeout time.Duration
}

// NewClient builds a client for the daemon selected by settings-level paths.
func NewClient(lightningDir, network string) *Client {
	return &Client{LightningDir: lightningDir, Network: network}
}

const defaultTimeout = 10 * time.Second

func (c *Client) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "lightning-cli"
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

// RPCPath is the daemon's RPC socket for the selected network.
func (c *Client) RPCPath() string {
	return filepath.Join(c.LightningDir, c.Network, "lightning-rpc")
}

// Reachable probes for a live daemon by looking for its RPC socket. Config
// state must never depend on a running daemon, so callers fall back to
// config-only updates when this is false.
func (c *Client) Reachable() bool {
	_, err := os.Stat(c.RPCPath())
	return err == nil
}

// StartPlugin asks the daemon to load the plugin at path.
func (c *Client) StartPlugin(ctx context.Context, logger *log.Logger, path string) error {
	return c.pluginCall(ctx, logger, "start", path)
}

// StopPlugin asks the daemon to unload the plugin at path.
func (c *Client) StopPlugin(ctx context.Context, logger *log.Logger, path string) error {
	return c.pluginCall(ctx, logger, "stop", path)
}

func (c *Client) pluginCall(ctx context.Context, logger *log.Logger, action, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	args := []string{
		"--lightning-dir=" + c.LightningDir,
		"--network=" + c.Network,
		"plugin", action, path,
	}
	logger.Debug("Daemon control call", "binary", c.binary(), "action", action, "path", path)

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		logger.Debug("Daemon control call succeeded", "action", action, "output", strings.TrimSpace(stdout.String()))
		return nil
	}

	exitCode := 1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	rpcErr := parseError(stdout.Bytes(), stderr.Bytes())
	return &ControlError{
		Kind:     classify(rpcErr),
		Code:     rpcErr.Code,
		Message:  rpcErr.Message,
		ExitCode: exitCode,
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// parseError recovers the daemon's structured error from whichever stream
// carries it. lightning-cli prints JSONRPC errors; anything unparseable is
// kept verbatim as the message.
func parseError(stdout, stderr []byte) rpcError {
	for _, raw := range [][]byte{stdout, stderr} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var e rpcError
		if err := json.Unmarshal(raw, &e); err == nil && (e.Code != 0 || e.Message != "") {
			return e
		}
		return rpcError{Message: string(raw)}
	}
	return rpcError{}
}

func classify(e rpcError) ErrorKind {
	if strings.Contains(e.Message, msgAlreadyRegistered) {
		return KindAlreadyRegistered
	}
	if e.Code == codeNotRunning || strings.Contains(e.Message, msgNotRunning) {
		return KindNotRunning
	}
	return KindOther
}

// Tolerated reports whether err is a control failure the given operation
// treats as success: "already registered" for starts, "not running" for
// stops.
func Tolerated(err error, kind ErrorKind) bool {
	cerr, ok := err.(*ControlError)
	return ok && cerr.Kind == kind
}
