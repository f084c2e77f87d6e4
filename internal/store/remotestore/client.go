// Package remotestore talks to a key/hash/list store exposed over HTTP. Each
// command is one POST whose JSON body is the command name followed by its
// arguments, authenticated with a bearer token. The response carries the
// command's return value in "result" or a message in "error".
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout applies when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Second

// Command is one command with its arguments, e.g. {"HGET", "headlines", "US"}.
type Command []string

// Reply is the decoded response to one command.
type Reply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// CommandError is a failure reported by the remote store for a command.
type CommandError struct {
	Verb    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Verb, e.Message)
}

// PipelineError is a CommandError raised by the command at Index of a
// pipeline. Commands before Index were applied.
type PipelineError struct {
	Index int
	CommandError
}

func (e *PipelineError) Unwrap() error { return &e.CommandError }

// IsNull reports whether the result is JSON null or absent.
func (r Reply) IsNull() bool {
	s := strings.TrimSpace(string(r.Result))
	return s == "" || s == "null"
}

// String decodes a string result. A null result yields ok == false.
func (r Reply) String() (s string, ok bool, err error) {
	if r.IsNull() {
		return "", false, nil
	}
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return "", false, fmt.Errorf("decode string result: %w", err)
	}
	return s, true, nil
}

// Strings decodes a list result. A null result yields an empty slice.
func (r Reply) Strings() ([]string, error) {
	if r.IsNull() {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(r.Result, &out); err != nil {
		return nil, fmt.Errorf("decode list result: %w", err)
	}
	return out, nil
}

// Client sends commands to the remote store.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient returns a Client for endpoint. httpClient may be nil.
func NewClient(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     httpClient,
	}
}

// Do sends a single command.
func (c *Client) Do(ctx context.Context, verb string, args ...string) (Reply, error) {
	cmd := append(Command{verb}, args...)
	var reply Reply
	if err := c.post(ctx, c.endpoint, cmd, &reply); err != nil {
		return Reply{}, fmt.Errorf("remote %s: %w", verb, err)
	}
	if reply.Error != "" {
		return Reply{}, &CommandError{Verb: verb, Message: reply.Error}
	}
	return reply, nil
}

// Transaction runs cmds atomically through the store's multi-exec endpoint.
// Either every command is applied or none is.
func (c *Client) Transaction(ctx context.Context, cmds ...Command) ([]Reply, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	var replies []Reply
	if err := c.post(ctx, c.endpoint+"/multi-exec", cmds, &replies); err != nil {
		return nil, fmt.Errorf("remote transaction: %w", err)
	}
	if len(replies) != len(cmds) {
		return nil, fmt.Errorf("remote transaction: got %d replies for %d commands", len(replies), len(cmds))
	}
	for i, r := range replies {
		if r.Error != "" {
			return replies, &CommandError{Verb: cmds[i][0], Message: r.Error}
		}
	}
	return replies, nil
}

// Pipeline sends cmds in one request through the store's pipeline endpoint.
// Commands run in order but not atomically: a failing command does not undo
// the ones before it. Replies are returned alongside the first CommandError
// so callers can tell how far the pipeline got.
func (c *Client) Pipeline(ctx context.Context, cmds ...Command) ([]Reply, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	var replies []Reply
	if err := c.post(ctx, c.endpoint+"/pipeline", cmds, &replies); err != nil {
		return nil, fmt.Errorf("remote pipeline: %w", err)
	}
	if len(replies) != len(cmds) {
		return nil, fmt.Errorf("remote pipeline: got %d replies for %d commands", len(replies), len(cmds))
	}
	for i, r := range replies {
		if r.Error != "" {
			return replies, &PipelineError{Index: i, CommandError: CommandError{Verb: cmds[i][0], Message: r.Error}}
		}
	}
	return replies, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Error bodies still use the {"error": ...} shape when the store produced them.
		var reply Reply
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, reply.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
