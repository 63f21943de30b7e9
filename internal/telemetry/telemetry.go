// Package telemetry is a JSON-RPC-over-stdio client for an out-of-process
// run recorder, grounded on the teacher's internal/plugin subprocess
// protocol. It is ambient and host-side only: the compiled language never
// observes it, so it carries no implications for spec.md's Non-goals.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"loxvm/internal/vmlog"
)

// Request mirrors the wire shape the dynamodb-backed recorder subprocess
// expects: a method name plus positional parameters.
type Request struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Response is one line of the subprocess's reply stream.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Client manages one long-lived recorder subprocess over its stdin/stdout
// pipes, exactly as the teacher's PluginClient does.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	mu      sync.Mutex
	running bool

	sessionID string
}

// Start launches the recorder executable and returns a ready Client.
// executablePath is typically the loxvm-telemetry-dynamodb binary built
// alongside the main CLI.
func Start(executablePath string) (*Client, error) {
	cmd := exec.Command(executablePath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("telemetry: start recorder: %w", err)
	}

	return &Client{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewScanner(stdout),
		running:   true,
		sessionID: uuid.NewString(),
	}, nil
}

// SessionID is the id this client sends with every put_run call, so all
// runs recorded by one process (each its own item under its own run id)
// share it.
func (c *Client) SessionID() string {
	return c.sessionID
}

// PutRun records one completed interpret() call: the source that ran and
// the InterpretResult it produced, tagged under the session id.
func (c *Client) PutRun(source string, result string) {
	_, err := c.call("put_run", []interface{}{c.sessionID, source, result})
	if err != nil {
		vmlog.WithError(err).Warn("telemetry: put_run failed")
	}
}

func (c *Client) call(method string, params []interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, fmt.Errorf("telemetry: recorder not running")
	}

	req := Request{Method: method, Params: params}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("telemetry: marshal request: %w", err)
	}

	if _, err := c.stdin.Write(append(reqBytes, '\n')); err != nil {
		c.running = false
		return nil, fmt.Errorf("telemetry: write request: %w", err)
	}

	if !c.stdout.Scan() {
		c.running = false
		if err := c.stdout.Err(); err != nil {
			return nil, fmt.Errorf("telemetry: read response: %w", err)
		}
		return nil, fmt.Errorf("telemetry: recorder closed stdout")
	}

	var resp Response
	if err := json.Unmarshal(c.stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("telemetry: unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("telemetry: recorder error: %s", resp.Error)
	}
	return resp.Result, nil
}

// Close terminates the recorder subprocess.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.stdin.Close()
	return c.cmd.Wait()
}
