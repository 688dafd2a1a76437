package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Sleuth resources.
	uriScheme = "sleuth://"

	// investigationListLimit caps the investigations resource.
	investigationListLimit = 20
)

// SourceInfo is the serialised form of a source descriptor.
type SourceInfo struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities"`
	Health       string   `json:"health"`
	LastProbed   string   `json:"last_probed,omitempty"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing sources.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "All configured data sources with capabilities and health",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	// Static resource for recent investigations.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "investigations",
		Name:        "investigations",
		Description: "Recent investigations, newest first",
		MIMEType:    "application/json",
	}, s.handleInvestigationsResource)

	// Template for one investigation's evidence bundle.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "investigations/{investigationId}",
		Name:        "investigation-evidence",
		Description: "Full evidence bundle of a specific investigation",
		MIMEType:    "application/json",
	}, s.handleInvestigationResource)
}

// handleSourcesResource returns a list of all registered sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Catalog == nil {
		return jsonResource(req.Params.URI, "[]")
	}

	descriptors := s.ports.Catalog.List(ctx)

	infos := make([]SourceInfo, len(descriptors))
	for i, desc := range descriptors {
		infos[i] = sourceInfo(desc)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sources: %w", err)
	}

	return jsonResource(req.Params.URI, string(data))
}

// handleInvestigationsResource returns recent investigations.
func (s *Server) handleInvestigationsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Evidence == nil {
		return jsonResource(req.Params.URI, "[]")
	}

	bundles, err := s.ports.Evidence.List(ctx, investigationListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing investigations: %w", err)
	}

	// Build simplified investigation list.
	type investigationInfo struct {
		ID          string `json:"id"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Complete    bool   `json:"complete"`
		CreatedAt   string `json:"created_at"`
	}

	infos := make([]investigationInfo, len(bundles))
	for i := range bundles {
		infos[i] = investigationInfo{
			ID:          bundles[i].ID,
			Category:    string(bundles[i].Intent.Category),
			Description: bundles[i].Intent.Description,
			Complete:    bundles[i].Complete,
			CreatedAt:   bundles[i].CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling investigations: %w", err)
	}

	return jsonResource(req.Params.URI, string(data))
}

// handleInvestigationResource returns one investigation's evidence bundle.
func (s *Server) handleInvestigationResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Evidence == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract investigationId from URI: sleuth://investigations/{investigationId}
	id := extractInvestigationID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	bundle, err := s.ports.Evidence.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("getting investigation: %w", err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling investigation: %w", err)
	}

	return jsonResource(req.Params.URI, string(data))
}

// sourceInfo converts a descriptor into its resource form.
func sourceInfo(desc domain.SourceDescriptor) SourceInfo {
	caps := make([]string, len(desc.Capabilities))
	for i, c := range desc.Capabilities {
		caps[i] = string(c)
	}

	info := SourceInfo{
		Name:         desc.Name,
		Kind:         string(desc.Kind),
		Capabilities: caps,
		Health:       string(desc.Health),
	}
	if !desc.LastProbed.IsZero() {
		info.LastProbed = desc.LastProbed.Format(time.RFC3339)
	}
	return info
}

// jsonResource wraps a JSON payload into a read-resource result.
func jsonResource(uri, text string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}, nil
}

// extractInvestigationID extracts the ID from a URI like sleuth://investigations/{investigationId}.
func extractInvestigationID(uri string) string {
	const prefix = uriScheme + "investigations/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
