// Package service wires protocol transport to the discovery tools.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio and delegates business meaning to the domain handlers.
package service
