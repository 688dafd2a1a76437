package mcp

import (
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
)

// Ports aggregates all port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Investigator runs investigations end to end.
	Investigator driving.InvestigationService

	// Catalog gives a read/probe view of registered sources.
	Catalog driving.SourceCatalog

	// Evidence exposes past investigations. Optional.
	Evidence driven.EvidenceStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Investigator == nil {
		return ErrMissingInvestigationService
	}
	// Catalog and Evidence are optional
	return nil
}
