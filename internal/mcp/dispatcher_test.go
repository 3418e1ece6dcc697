package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpguard/mcpbridge/internal/jsonrpc"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, names ...string) *Dispatcher {
	t.Helper()
	if len(names) == 0 {
		names = []string{ToolGetInfo, ToolEcho}
	}
	registry, err := NewRegistryFromCatalog(Catalog(Info{
		ServerName: "test-server",
		TenantID:   "tenant-1",
		ClientID:   "client-1",
		Now:        func() time.Time { return fixedNow },
	}), names)
	require.NoError(t, err)

	return NewDispatcher(Options{
		Registry:      registry,
		ServerName:    "test-server",
		ServerVersion: "1.0.0",
		Capabilities:  []string{"tools"},
	})
}

// encode marshals a response and decodes it back into generic JSON.
func encode(t *testing.T, resp jsonrpc.Response) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func callText(t *testing.T, resp jsonrpc.Response) string {
	t.Helper()
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(*sdk.CallToolResult)
	require.True(t, ok, "result should be a CallToolResult, got %T", resp.Result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestDispatcher_KnownMethodsReturnResult(t *testing.T) {
	d := newTestDispatcher(t)

	for _, method := range []string{MethodInitialize, MethodToolsList} {
		resp := d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"`+method+`"}`))
		out := encode(t, resp)

		assert.NotContains(t, out, "error", method)
		assert.Contains(t, out, "result", method)
		assert.Equal(t, float64(3), out["id"], method)
		assert.Equal(t, "2.0", out["jsonrpc"], method)
	}
}

func TestDispatcher_Initialize(t *testing.T) {
	d := newTestDispatcher(t)

	out := encode(t, d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)))

	result := out["result"].(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.Equal(t, map[string]interface{}{"tools": map[string]interface{}{}}, result["capabilities"])
	assert.Equal(t, map[string]interface{}{"name": "test-server", "version": "1.0.0"}, result["serverInfo"])
}

func TestDispatcher_Initialize_ConfiguredCapabilities(t *testing.T) {
	d := NewDispatcher(Options{
		ServerName:      "apim-mcp-server",
		ServerVersion:   "1.0.0",
		ProtocolVersion: "2025-03-26",
		Capabilities:    []string{"tools", "prompts", "resources", "bogus"},
	})

	out := encode(t, d.HandleRaw(context.Background(), []byte(`{"id":1,"method":"initialize"}`)))

	result := out["result"].(map[string]interface{})
	assert.Equal(t, "2025-03-26", result["protocolVersion"])
	caps := result["capabilities"].(map[string]interface{})
	assert.Len(t, caps, 3)
	assert.Contains(t, caps, "prompts")
	assert.Contains(t, caps, "resources")
}

func TestDispatcher_ToolsList(t *testing.T) {
	d := newTestDispatcher(t)

	out := encode(t, d.HandleRaw(context.Background(), []byte(`{"id":2,"method":"tools/list"}`)))

	tools := out["result"].(map[string]interface{})["tools"].([]interface{})
	require.Len(t, tools, 2)

	info := tools[0].(map[string]interface{})
	assert.Equal(t, ToolGetInfo, info["name"])
	assert.Equal(t, map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": false,
	}, info["inputSchema"])

	echo := tools[1].(map[string]interface{})
	assert.Equal(t, ToolEcho, echo["name"])
	assert.Equal(t, "Echo back a message", echo["description"])
	assert.Equal(t, map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string", "description": "Message to echo"},
		},
		"required":             []interface{}{"message"},
		"additionalProperties": false,
	}, echo["inputSchema"])
}

func TestDispatcher_ToolsList_FollowsConfiguredOrder(t *testing.T) {
	d := newTestDispatcher(t, ToolHello, ToolEcho, ToolGetInfo)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":2,"method":"tools/list"}`))
	result := resp.Result.(*sdk.ListToolsResult)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{ToolHello, ToolEcho, ToolGetInfo}, names)
}

func TestDispatcher_ToolsCall_Echo(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo_message","arguments":{"message":"hi"}}}`))

	assert.Equal(t, "Echo: hi", callText(t, resp))

	out := encode(t, resp)
	assert.Equal(t, map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": "Echo: hi"},
		},
	}, out["result"])
}

func TestDispatcher_ToolsCall_EchoMissingMessage(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":4,"method":"tools/call","params":{"name":"echo_message"}}`))

	assert.Equal(t, "Echo: ", callText(t, resp))
}

func TestDispatcher_ToolsCall_GetInfo(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":5,"method":"tools/call","params":{"name":"get_info","arguments":{"ignored":true}}}`))

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(callText(t, resp)), &info))
	assert.Equal(t, map[string]string{
		"tenant_id": "tenant-1",
		"client_id": "client-1",
		"timestamp": "2026-10-19T12:00:00Z",
		"message":   "test-server is running!",
	}, info)
}

func TestDispatcher_ToolsCall_Hello(t *testing.T) {
	d := newTestDispatcher(t, ToolHello)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":6,"method":"tools/call","params":{"name":"hello"}}`))
	assert.Equal(t, "Hello, World!", callText(t, resp))

	resp = d.HandleRaw(context.Background(), []byte(`{"id":6,"method":"tools/call","params":{"name":"hello","arguments":{"name":"Ada"}}}`))
	assert.Equal(t, "Hello, Ada!", callText(t, resp))
}

func TestDispatcher_ToolsCall_UnknownTool(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":"abc","method":"tools/call","params":{"name":"nope"}}`))

	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.Result)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Unknown tool: nope", resp.Error.Message)
	assert.Equal(t, `"abc"`, string(resp.ID))
}

func TestDispatcher_ToolsCall_ToolNotInDeployment(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":1,"method":"tools/call","params":{"name":"hello"}}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestDispatcher_ToolsCall_ArgumentsNotObject(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":9,"method":"tools/call","params":{"name":"echo_message","arguments":"hi"}}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Error.Code)
	assert.Equal(t, "9", string(resp.ID))
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)

	out := encode(t, d.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"resources/list"}`)))

	assert.Equal(t, float64(7), out["id"])
	assert.NotContains(t, out, "result")
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, float64(jsonrpc.CodeMethodNotFound), errObj["code"])
	assert.Equal(t, "Method not found: resources/list", errObj["message"])
}

func TestDispatcher_MethodIsCaseSensitive(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":1,"method":"Tools/List"}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestDispatcher_MissingIDDefaultsToOne(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"method":"tools/list"}`))

	assert.Equal(t, "1", string(resp.ID))
}

func TestDispatcher_DecodeFailure(t *testing.T) {
	d := newTestDispatcher(t)

	for _, body := range []string{"", "not json", `{"id":`, `[1,2]`} {
		out := encode(t, d.HandleRaw(context.Background(), []byte(body)))

		assert.Equal(t, float64(1), out["id"], "body %q", body)
		assert.NotContains(t, out, "result")
		errObj := out["error"].(map[string]interface{})
		assert.Equal(t, float64(jsonrpc.CodeInternalError), errObj["code"], "body %q", body)
		assert.Equal(t, "Internal error", errObj["message"])
		assert.NotEmpty(t, errObj["data"])
	}
}

func TestDispatcher_DecodeFailureKeepsRecoveredID(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.HandleRaw(context.Background(), []byte(`{"id":42,"method":"tools/call","params":[1]}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Error.Code)
	assert.Equal(t, "42", string(resp.ID))
}

type secretRedactor struct{}

func (secretRedactor) Redact(text string) string {
	return strings.ReplaceAll(text, "s3cr3t", "REDACTED")
}

func panicRegistry(t *testing.T, value interface{}) *Registry {
	t.Helper()
	registry, err := NewRegistry(Tool{
		Definition: &sdk.Tool{Name: "boom", InputSchema: objectSchema(nil)},
		Handler: func(context.Context, map[string]interface{}) (string, error) {
			panic(value)
		},
	})
	require.NoError(t, err)
	return registry
}

func TestDispatcher_HandlerPanicBecomesInternalError(t *testing.T) {
	d := NewDispatcher(Options{Registry: panicRegistry(t, "kaboom")})

	resp := d.Handle(context.Background(), jsonrpc.Request{
		ID:     json.RawMessage(`11`),
		Method: MethodToolsCall,
		Params: map[string]interface{}{"name": "boom"},
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Error.Code)
	assert.Equal(t, "kaboom", resp.Error.Data)
	assert.Equal(t, "11", string(resp.ID))
}

func TestDispatcher_HandlerErrorIsRedacted(t *testing.T) {
	registry, err := NewRegistry(Tool{
		Definition: &sdk.Tool{Name: "leaky", InputSchema: objectSchema(nil)},
		Handler: func(context.Context, map[string]interface{}) (string, error) {
			return "", errors.New("upstream rejected key s3cr3t")
		},
	})
	require.NoError(t, err)
	d := NewDispatcher(Options{Registry: registry, Redactor: secretRedactor{}})

	resp := d.HandleRaw(context.Background(), []byte(`{"id":1,"method":"tools/call","params":{"name":"leaky"}}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Error.Code)
	assert.NotContains(t, resp.Error.Data, "s3cr3t")
	assert.Contains(t, resp.Error.Data, "REDACTED")
}

func TestDispatcher_ToolReturnsProtocolError(t *testing.T) {
	registry, err := NewRegistry(Tool{
		Definition: &sdk.Tool{Name: "strict", InputSchema: objectSchema(nil)},
		Handler: func(context.Context, map[string]interface{}) (string, error) {
			return "", &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "bad input"}
		},
	})
	require.NoError(t, err)
	d := NewDispatcher(Options{Registry: registry})

	resp := d.HandleRaw(context.Background(), []byte(`{"id":1,"method":"tools/call","params":{"name":"strict"}}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "bad input", resp.Error.Message)
}
