package jsonrpc

import "fmt"

// Error codes used by the dispatcher.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the error member of a JSON-RPC response.
type Error struct {
	// The error type that occurred.
	Code int `json:"code"`
	// A short description of the error. The message SHOULD be limited
	// to a concise single sentence.
	Message string `json:"message"`
	// Additional information about the error. The value of this member
	// is defined by the sender (e.g. detailed error information, nested errors etc.).
	Data interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MethodNotFound reports an unknown method name.
func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

// UnknownTool reports a tools/call for a name missing from the registry.
func UnknownTool(name string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Unknown tool: " + name}
}

// Internal wraps an unexpected failure. The detail goes into data.
func Internal(detail string) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error", Data: detail}
}
