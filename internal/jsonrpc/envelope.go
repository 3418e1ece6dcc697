package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only protocol version this package emits.
const Version = "2.0"

// DefaultID is echoed whenever the request id is absent or could not be recovered.
var DefaultID = json.RawMessage(`1`)

// Request is a decoded JSON-RPC request envelope.
type Request struct {
	ID     json.RawMessage
	Method string
	Params map[string]interface{}
}

// Response is a JSON-RPC response envelope. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Success builds a result envelope.
func Success(id json.RawMessage, result interface{}) Response {
	return Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// Failure builds an error envelope.
func Failure(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: Version, ID: normalizeID(id), Error: err}
}

// wireRequest mirrors the request envelope with every member left raw so that
// a bad params member does not cost us the id.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Decode parses a raw request body. On failure the returned Request still
// carries the best id that could be recovered, or DefaultID.
func Decode(data []byte) (Request, error) {
	req := Request{ID: DefaultID}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return req, errors.New("empty request body")
	}

	var wire wireRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return req, fmt.Errorf("invalid request envelope: %w", err)
	}
	if len(wire.ID) > 0 {
		req.ID = wire.ID
	}

	if len(wire.Method) > 0 && !isNull(wire.Method) {
		if err := json.Unmarshal(wire.Method, &req.Method); err != nil {
			return req, fmt.Errorf("method must be a string: %w", err)
		}
	}

	req.Params = map[string]interface{}{}
	if len(wire.Params) > 0 && !isNull(wire.Params) {
		if err := json.Unmarshal(wire.Params, &req.Params); err != nil {
			return req, fmt.Errorf("params must be an object: %w", err)
		}
	}

	return req, nil
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return DefaultID
	}
	return id
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
