package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
)

// InvestigateInput is the input schema for the investigate tool.
type InvestigateInput struct {
	Query       string   `json:"query" jsonschema:"the operational question to investigate"`
	Sources     []string `json:"sources,omitempty" jsonschema:"restrict the investigation to these source names"`
	DryRun      bool     `json:"dry_run,omitempty" jsonschema:"plan only, do not query any backend"`
	TimeoutSecs int      `json:"timeout_seconds,omitempty" jsonschema:"overall deadline for the fan-out in seconds"`
}

// InvestigateOutput is the output schema for the investigate tool.
type InvestigateOutput struct {
	InvestigationID string             `json:"investigation_id,omitempty"`
	Complete        bool               `json:"complete"`
	Plan            []PlannedQuery     `json:"plan"`
	Results         []SourceResultInfo `json:"results,omitempty"`
	Summary         string             `json:"summary,omitempty"`
	Gaps            []string           `json:"gaps,omitempty"`
}

// PlannedQuery describes one planned sub-query.
type PlannedQuery struct {
	Source     string `json:"source"`
	Capability string `json:"capability"`
	Timeout    string `json:"timeout"`
}

// SourceResultInfo summarises one source's outcome.
type SourceResultInfo struct {
	Source     string           `json:"source"`
	Capability string           `json:"capability"`
	Status     string           `json:"status"`
	Records    []map[string]any `json:"records,omitempty"`
	Error      string           `json:"error,omitempty"`
	Truncated  bool             `json:"truncated,omitempty"`
	ElapsedMS  int64            `json:"elapsed_ms"`
}

// ProbeInput is the input schema for the probe_sources tool.
type ProbeInput struct{}

// ProbeOutput is the output schema for the probe_sources tool.
type ProbeOutput struct {
	Sources []SourceInfo `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "investigate",
		Description: "Investigate an operational question across all configured data sources",
	}, s.handleInvestigate)

	if s.ports.Catalog != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "probe_sources",
			Description: "Probe all configured data sources and report their health",
		}, s.handleProbeSources)
	}
}

// handleInvestigate handles the investigate tool invocation.
func (s *Server) handleInvestigate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InvestigateInput,
) (*mcp.CallToolResult, InvestigateOutput, error) {
	opts := driving.InvestigateOptions{
		DryRun:      input.DryRun,
		SourceHints: input.Sources,
	}
	if input.TimeoutSecs > 0 {
		opts.Deadline = time.Duration(input.TimeoutSecs) * time.Second
	}

	outcome, err := s.ports.Investigator.Investigate(ctx, input.Query, opts)
	if err != nil {
		return nil, InvestigateOutput{}, err
	}

	output := InvestigateOutput{
		Plan: make([]PlannedQuery, len(outcome.Plan.Queries)),
	}
	for i, q := range outcome.Plan.Queries {
		output.Plan[i] = PlannedQuery{
			Source:     q.Source,
			Capability: string(q.Capability),
			Timeout:    q.Timeout.String(),
		}
	}

	if outcome.Bundle != nil {
		output.InvestigationID = outcome.Bundle.ID
		output.Complete = outcome.Bundle.Complete
		output.Results = make([]SourceResultInfo, len(outcome.Bundle.Results))
		for i := range outcome.Bundle.Results {
			output.Results[i] = resultInfo(&outcome.Bundle.Results[i])
		}
	}
	if outcome.Report != nil {
		output.Summary = outcome.Report.Summary
		output.Gaps = outcome.Report.Gaps
	}

	return nil, output, nil
}

// handleProbeSources handles the probe_sources tool invocation.
func (s *Server) handleProbeSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ProbeInput,
) (*mcp.CallToolResult, ProbeOutput, error) {
	descriptors := s.ports.Catalog.Probe(ctx)

	output := ProbeOutput{
		Sources: make([]SourceInfo, len(descriptors)),
	}
	for i, desc := range descriptors {
		output.Sources[i] = sourceInfo(desc)
	}

	return nil, output, nil
}

// resultInfo converts a source result into its tool-output form.
func resultInfo(result *domain.SourceResult) SourceResultInfo {
	info := SourceResultInfo{
		Source:     result.Source,
		Capability: string(result.Capability),
		Status:     string(result.Status),
		Error:      result.Err,
		Truncated:  result.Truncated,
		ElapsedMS:  result.Elapsed.Milliseconds(),
	}
	for _, record := range result.Records {
		info.Records = append(info.Records, record.Fields)
	}
	return info
}
