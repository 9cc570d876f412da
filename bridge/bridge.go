// Package bridge carries named commands from a front-end to the host process
// that owns the databases.
//
// A command is a name plus a JSON argument object. The front-end side uses an
// Invoker; the host side implements a Handler. Client turns any raw transport
// (a HostFunc) into an Invoker by wrapping each call in a JSON envelope that
// carries a request ID, and Serve is the matching host-side dispatcher.
//
// Transports provided:
//
//   - Local: in-process, the Handler is called directly through Serve.
//   - HTTPHostFunc / NewHTTPHandler: envelopes POSTed to <base>/invoke.
//   - bridge/wasmhost and bridge/wasmguest: a wasm front-end calling the host
//     through an imported function.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tomyedwab/sqlitestore/bridge/types"
)

// Invoker issues one command and decodes its result into result, which may be
// nil when the caller does not need it.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args any, result any) error
}

// Handler executes commands on the host side. The returned value is encoded
// as JSON and sent back as the command result.
type Handler interface {
	HandleInvoke(ctx context.Context, cmd string, args json.RawMessage) (any, error)
}

type HandlerFunc func(ctx context.Context, cmd string, args json.RawMessage) (any, error)

func (f HandlerFunc) HandleInvoke(ctx context.Context, cmd string, args json.RawMessage) (any, error) {
	return f(ctx, cmd, args)
}

// HostFunc sends one encoded request to the host and returns the encoded
// response.
type HostFunc func(ctx context.Context, requestPayload []byte) (responsePayload []byte, err error)

// HostError is a failure reported by the host for a command. Its message is
// exactly what the host sent.
type HostError struct {
	Command string
	Message string
}

func (e *HostError) Error() string {
	return e.Message
}

// IsHostError reports whether err is a failure reported by the host.
func IsHostError(err error) bool {
	var hostErr *HostError
	return errors.As(err, &hostErr)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-command debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is an Invoker over a HostFunc.
type Client struct {
	call   HostFunc
	logger *slog.Logger
}

func NewClient(call HostFunc, options ...Option) *Client {
	c := &Client{
		call:   call,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Local returns a Client that hands every request straight to h.
func Local(h Handler, options ...Option) *Client {
	return NewClient(func(ctx context.Context, requestPayload []byte) ([]byte, error) {
		return Serve(ctx, h, requestPayload)
	}, options...)
}

func (c *Client) Invoke(ctx context.Context, cmd string, args any, result any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("bridge: failed to marshal %s arguments: %w", cmd, err)
	}

	req := types.Request{ID: uuid.NewString(), Cmd: cmd, Args: argsJSON}
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bridge: failed to marshal %s request: %w", cmd, err)
	}

	c.logger.Debug("Invoking host command", "cmd", cmd, "id", req.ID)
	respPayload, err := c.call(ctx, reqPayload)
	if err != nil {
		return fmt.Errorf("bridge: call for %s failed: %w", cmd, err)
	}

	var resp types.Response
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		return fmt.Errorf("bridge: failed to unmarshal %s response: %w", cmd, err)
	}
	if resp.ID != "" && resp.ID != req.ID {
		return fmt.Errorf("bridge: %s response has id %s, expected %s", cmd, resp.ID, req.ID)
	}
	if resp.Error != "" {
		c.logger.Debug("Host command failed", "cmd", cmd, "id", req.ID, "error", resp.Error)
		return &HostError{Command: cmd, Message: resp.Error}
	}

	if result == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, result); err != nil {
		return fmt.Errorf("bridge: failed to decode %s result: %w", cmd, err)
	}
	return nil
}

// Serve decodes one request, runs it through h and encodes the response.
// Handler failures are carried inside the response; the returned error is
// only set when not even an error response could be encoded.
func Serve(ctx context.Context, h Handler, requestPayload []byte) ([]byte, error) {
	var req types.Request
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse("", fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	result, err := h.HandleInvoke(ctx, req.Cmd, req.Args)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "unknown host error"
		}
		return marshalErrorResponse(req.ID, msg)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return marshalErrorResponse(req.ID, fmt.Sprintf("failed to marshal %s result: %v", req.Cmd, err))
	}
	return json.Marshal(types.Response{ID: req.ID, Data: data})
}

func marshalErrorResponse(id, errMsg string) ([]byte, error) {
	payload, err := json.Marshal(types.Response{ID: id, Error: errMsg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	return payload, nil
}
