package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpguard/mcpbridge/internal/jsonrpc"
)

// Method names routed by the dispatcher.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// DefaultProtocolVersion is advertised when Options leaves it empty.
const DefaultProtocolVersion = "2024-11-05"

// Redactor scrubs secrets from text before it leaves the process.
type Redactor interface {
	Redact(text string) string
}

// Options configures a Dispatcher.
type Options struct {
	Registry        *Registry
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	Capabilities    []string // tools, prompts, resources, logging
	Redactor        Redactor
	Logger          *slog.Logger
}

// Dispatcher routes decoded JSON-RPC requests to their handlers. It holds no
// mutable state and is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	init     *sdk.InitializeResult
	redactor Redactor
	logger   *slog.Logger
	methods  map[string]methodHandler
}

type methodHandler func(ctx context.Context, req jsonrpc.Request) (interface{}, error)

// NewDispatcher creates a dispatcher. A nil registry exposes no tools.
func NewDispatcher(opts Options) *Dispatcher {
	registry := opts.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	protocolVersion := opts.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = DefaultProtocolVersion
	}

	d := &Dispatcher{
		registry: registry,
		init: &sdk.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    capabilities(opts.Capabilities),
			ServerInfo: &sdk.Implementation{
				Name:    opts.ServerName,
				Version: opts.ServerVersion,
			},
		},
		redactor: opts.Redactor,
		logger:   logger,
	}
	d.methods = map[string]methodHandler{
		MethodInitialize: d.initialize,
		MethodToolsList:  d.toolsList,
		MethodToolsCall:  d.toolsCall,
	}
	return d
}

// capabilities maps configured flags onto the advertised capability object.
// Unknown flags are ignored.
func capabilities(flags []string) *sdk.ServerCapabilities {
	caps := &sdk.ServerCapabilities{}
	for _, flag := range flags {
		switch flag {
		case "tools":
			caps.Tools = &sdk.ToolCapabilities{}
		case "prompts":
			caps.Prompts = &sdk.PromptCapabilities{}
		case "resources":
			caps.Resources = &sdk.ResourceCapabilities{}
		case "logging":
			caps.Logging = &sdk.LoggingCapabilities{}
		}
	}
	return caps
}

// HandleRaw decodes body and dispatches it. A body that cannot be decoded
// yields an internal error envelope carrying the recovered id, or 1.
func (d *Dispatcher) HandleRaw(ctx context.Context, body []byte) jsonrpc.Response {
	req, err := jsonrpc.Decode(body)
	if err != nil {
		d.logger.Warn("failed to decode MCP request", "error", err)
		return jsonrpc.Failure(req.ID, d.internal(err.Error()))
	}
	return d.Handle(ctx, req)
}

// Handle dispatches one request. It never panics and never returns a Go error.
func (d *Dispatcher) Handle(ctx context.Context, req jsonrpc.Request) (resp jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling MCP request",
				"method", req.Method,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			resp = jsonrpc.Failure(req.ID, d.internal(fmt.Sprint(r)))
		}
	}()

	d.logger.Info("MCP method called", "method", req.Method)

	handler, ok := d.methods[req.Method]
	if !ok {
		return jsonrpc.Failure(req.ID, jsonrpc.MethodNotFound(req.Method))
	}

	result, err := handler(ctx, req)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return jsonrpc.Failure(req.ID, rpcErr)
		}
		d.logger.Error("error processing MCP request", "method", req.Method, "error", d.redact(err.Error()))
		return jsonrpc.Failure(req.ID, d.internal(err.Error()))
	}
	return jsonrpc.Success(req.ID, result)
}

func (d *Dispatcher) initialize(_ context.Context, _ jsonrpc.Request) (interface{}, error) {
	return d.init, nil
}

func (d *Dispatcher) toolsList(_ context.Context, _ jsonrpc.Request) (interface{}, error) {
	return &sdk.ListToolsResult{Tools: d.registry.Definitions()}, nil
}

func (d *Dispatcher) toolsCall(ctx context.Context, req jsonrpc.Request) (interface{}, error) {
	name, _ := req.Params["name"].(string)

	args := map[string]interface{}{}
	switch raw := req.Params["arguments"].(type) {
	case nil:
	case map[string]interface{}:
		args = raw
	default:
		return nil, fmt.Errorf("arguments for tool %q must be an object, got %T", name, raw)
	}

	tool, ok := d.registry.Lookup(name)
	if !ok {
		return nil, jsonrpc.UnknownTool(name)
	}

	d.logger.Debug("tools/call", "tool_name", name)

	text, err := tool.Handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}, nil
}

// internal builds a -32603 error whose data has secrets scrubbed.
func (d *Dispatcher) internal(detail string) *jsonrpc.Error {
	return jsonrpc.Internal(d.redact(detail))
}

func (d *Dispatcher) redact(text string) string {
	if d.redactor == nil {
		return text
	}
	return d.redactor.Redact(text)
}
