// Package mcp exposes the bookseek assistant as an MCP server.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// over stdio and registers tools for ingesting PDFs, asking questions and
// managing conversations. Tool errors are returned as user-facing messages
// with credentials scrubbed.
package mcp
