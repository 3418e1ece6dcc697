// Package mcp implements the JSON-RPC method dispatcher behind the /mcp endpoint.
//
// # Methods
//
// The dispatcher routes on the exact, case-sensitive method name:
//
//   - initialize returns the static server and capability descriptor
//   - tools/list returns the tool registry in registration order
//   - tools/call looks up params.name in the registry and runs the tool
//     with params.arguments
//
// Any other method yields -32601. Every failure, including a tool handler
// panic and an undecodable body, becomes a -32603 error envelope; Handle
// never returns a Go error.
//
// # Tools
//
// A deployment picks its tool set by name from the built-in catalog:
//
//	registry, err := mcp.NewRegistryFromCatalog(mcp.Catalog(info), []string{"get_info", "echo_message"})
//	d := mcp.NewDispatcher(mcp.Options{Registry: registry, ServerName: "mcp-server"})
//	resp := d.HandleRaw(ctx, body)
package mcp
