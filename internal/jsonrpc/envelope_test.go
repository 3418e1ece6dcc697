package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FullEnvelope(t *testing.T) {
	req, err := Decode([]byte(`{"jsonrpc":"2.0","id":"req-1","method":"tools/call","params":{"name":"echo_message","arguments":{"message":"hi"}}}`))
	require.NoError(t, err)

	assert.Equal(t, `"req-1"`, string(req.ID))
	assert.Equal(t, "tools/call", req.Method)
	assert.Equal(t, "echo_message", req.Params["name"])
}

func TestDecode_Defaults(t *testing.T) {
	req, err := Decode([]byte(`{"method":"initialize"}`))
	require.NoError(t, err)

	assert.Equal(t, "1", string(req.ID))
	assert.NotNil(t, req.Params)
	assert.Empty(t, req.Params)
}

func TestDecode_NullParams(t *testing.T) {
	req, err := Decode([]byte(`{"id":2,"method":"tools/list","params":null}`))
	require.NoError(t, err)
	assert.NotNil(t, req.Params)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{name: "empty", body: "", wantID: "1"},
		{name: "whitespace", body: "  \n", wantID: "1"},
		{name: "not json", body: "hello", wantID: "1"},
		{name: "array", body: `[{"id":3}]`, wantID: "1"},
		{name: "truncated", body: `{"id":3,`, wantID: "1"},
		{name: "method not string", body: `{"id":4,"method":5}`, wantID: "4"},
		{name: "params not object", body: `{"id":5,"method":"x","params":"y"}`, wantID: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.body))
			assert.Error(t, err)
			assert.Equal(t, tt.wantID, string(req.ID))
		})
	}
}

func TestResponse_Marshal(t *testing.T) {
	b, err := json.Marshal(Success(json.RawMessage(`7`), map[string]string{"ok": "yes"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"ok":"yes"}}`, string(b))

	b, err = json.Marshal(Failure(nil, MethodNotFound("nope")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found: nope"}}`, string(b))

	b, err = json.Marshal(Failure(json.RawMessage(`"x"`), Internal("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"x","error":{"code":-32603,"message":"Internal error","data":"boom"}}`, string(b))
}

func TestError_ImplementsError(t *testing.T) {
	var err error = UnknownTool("x")
	assert.EqualError(t, err, "jsonrpc error -32601: Unknown tool: x")
}
