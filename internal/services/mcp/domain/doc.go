// Package domain translates MCP tool calls into discovery API requests.
//
// The package is intentionally explicit about that mapping:
// - validate MCP tool input against the chat API contract,
// - route calls to the correct discovery REST endpoint,
// - and surface structured outputs that MCP clients can render.
//
// This keeps MCP behavior auditable from protocol message -> API request ->
// conversation state update.
package domain
