package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Built-in tool names.
const (
	ToolGetInfo = "get_info"
	ToolEcho    = "echo_message"
	ToolHello   = "hello"
)

// Info is the process-scoped data reported by get_info.
type Info struct {
	ServerName string
	TenantID   string
	ClientID   string
	Now        func() time.Time
}

// Catalog returns every built-in tool keyed by name.
func Catalog(info Info) map[string]Tool {
	return map[string]Tool{
		ToolGetInfo: GetInfoTool(info),
		ToolEcho:    EchoTool(),
		ToolHello:   HelloTool(),
	}
}

// objectSchema builds a closed object schema over the given string properties.
func objectSchema(props map[string]string, required ...string) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:                 "object",
		Properties:           make(map[string]*jsonschema.Schema, len(props)),
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
	for name, desc := range props {
		s.Properties[name] = &jsonschema.Schema{Type: "string", Description: desc}
	}
	return s
}

// GetInfoTool reports the configured identifiers and the current UTC time.
// Arguments are ignored.
func GetInfoTool(info Info) Tool {
	now := info.Now
	if now == nil {
		now = time.Now
	}
	return Tool{
		Definition: &sdk.Tool{
			Name:        ToolGetInfo,
			Description: "Get tenant and client information for this server",
			InputSchema: objectSchema(nil),
		},
		Handler: func(_ context.Context, _ map[string]interface{}) (string, error) {
			out, err := json.MarshalIndent(struct {
				TenantID  string `json:"tenant_id"`
				ClientID  string `json:"client_id"`
				Timestamp string `json:"timestamp"`
				Message   string `json:"message"`
			}{
				TenantID:  info.TenantID,
				ClientID:  info.ClientID,
				Timestamp: now().UTC().Format(time.RFC3339Nano),
				Message:   info.ServerName + " is running!",
			}, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encode info: %w", err)
			}
			return string(out), nil
		},
	}
}

// EchoTool echoes arguments.message back. A missing message echoes the empty
// string even though the schema marks it required; existing clients rely on it.
func EchoTool() Tool {
	return Tool{
		Definition: &sdk.Tool{
			Name:        ToolEcho,
			Description: "Echo back a message",
			InputSchema: objectSchema(map[string]string{"message": "Message to echo"}, "message"),
		},
		Handler: func(_ context.Context, args map[string]interface{}) (string, error) {
			return "Echo: " + stringArg(args, "message", ""), nil
		},
	}
}

// HelloTool greets arguments.name, or World.
func HelloTool() Tool {
	return Tool{
		Definition: &sdk.Tool{
			Name:        ToolHello,
			Description: "A simple hello world tool",
			InputSchema: objectSchema(map[string]string{"name": "Name to greet"}),
		},
		Handler: func(_ context.Context, args map[string]interface{}) (string, error) {
			return fmt.Sprintf("Hello, %s!", stringArg(args, "name", "World")), nil
		},
	}
}

// stringArg renders args[key] as text, or fallback when the key is absent or null.
func stringArg(args map[string]interface{}, key, fallback string) string {
	switch v := args[key].(type) {
	case nil:
		return fallback
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
