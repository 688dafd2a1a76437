// Package mcp provides an MCP (Model Context Protocol) server adapter for Sleuth.
// It enables AI assistants like Claude to run federated investigations over
// the caller's configured data sources.
package mcp

import "errors"

// ErrMissingInvestigationService is returned when the investigation service is not provided.
var ErrMissingInvestigationService = errors.New("mcp: investigation service is required")
