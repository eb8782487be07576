// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes reference index lookups for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/queryservice"
	"github.com/starford/archgraph/internal/report"
)

// ContractURI is the resource URI of the corpus format contract.
const ContractURI = "archgraph://corpus-format"

// RebuildFunc runs one index pass and returns its report summary.
type RebuildFunc func(ctx context.Context) (report.Summary, error)

// Server wraps the MCP server with archgraph tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *queryservice.Service
	rebuild RebuildFunc
}

// New creates a new MCP server with all tools registered. rebuild may be
// nil, in which case the reindex tool is not offered.
func New(svc *queryservice.Service, rebuild RebuildFunc, version string) *Server {
	s := &Server{svc: svc, rebuild: rebuild}

	s.mcp = server.NewMCPServer(
		"archgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_features",
		mcp.WithDescription("List every documented feature with its status and entry point."),
	), s.listFeatures)

	s.mcp.AddTool(mcp.NewTool("get_feature",
		mcp.WithDescription("Get a feature record: code references, components, dependencies, "+
			"interfaces, terms, the features that depend on it and the issues reported on its document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Feature id (frontmatter 'feature')")),
	), s.getFeature)

	s.mcp.AddTool(mcp.NewTool("get_code",
		mcp.WithDescription("Get the record of a repository file: which features document it, "+
			"what it imports and what imports it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository-relative path (e.g. internal/auth/handler.go)")),
	), s.getCode)

	s.mcp.AddTool(mcp.NewTool("get_interface",
		mcp.WithDescription("Get an interface edge by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Interface id (e.g. 01--02-auth-store)")),
	), s.getInterface)

	s.mcp.AddTool(mcp.NewTool("get_shared_type",
		mcp.WithDescription("Get a shared-type group. Tokens may be given in any order."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Token list joined by '_' (e.g. 01--02_02--03)")),
	), s.getSharedType)

	s.mcp.AddTool(mcp.NewTool("get_term",
		mcp.WithDescription("Get a term definition and every place it is used."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Term name, global alias, or file#name for a local term")),
	), s.getTerm)

	s.mcp.AddTool(mcp.NewTool("search_terms",
		mcp.WithDescription("Search term names, aliases and definitions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchTerms)

	s.mcp.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Validation issues of the last index run, optionally narrowed."),
		mcp.WithString("file", mcp.Description("Only issues on this document")),
		mcp.WithString("kind", mcp.Description("Issue kind, e.g. circular_dependency")),
		mcp.WithString("severity", mcp.Description("error or warning")),
	), s.getReport)

	s.mcp.AddTool(mcp.NewTool("get_orphans",
		mcp.WithDescription("Source and config files no feature documents and nothing imports."),
	), s.getOrphans)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw Markdown of a corpus document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository-relative path to the document")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("get_corpus_contract",
		mcp.WithDescription("Returns the corpus document format contract. "+
			"Call this before writing or editing feature, interface, shared-type or glossary documents."),
	), s.getCorpusContract)

	if rebuild != nil {
		s.mcp.AddTool(mcp.NewTool("reindex",
			mcp.WithDescription("Rebuild the reference index from the current corpus and return the report summary."),
		), s.reindex)
	}

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Corpus Format Contract",
			mcp.WithResourceDescription("Formats of feature, interface, shared-type and glossary documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func lookupResult(what, key string, v any, err error) *mcp.CallToolResult {
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("%s not found: %s", what, key))
		}
		return mcp.NewToolResultError(err.Error())
	}
	return jsonResult(v)
}

func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

func (s *Server) listFeatures(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListFeatures(ctx)
	return lookupResult("features", "", items, err), nil
}

func (s *Server) getFeature(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Feature(ctx, id)
	return lookupResult("feature", id, f, err), nil
}

func (s *Server) getCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Code(ctx, p)
	return lookupResult("code file", p, rec, err), nil
}

func (s *Server) getInterface(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Interface(ctx, id)
	return lookupResult("interface", id, e, err), nil
}

func (s *Server) getSharedType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.SharedType(ctx, id)
	return lookupResult("shared type", id, g, err), nil
}

func (s *Server) getTerm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.Term(ctx, name)
	return lookupResult("term", name, t, err), nil
}

func (s *Server) searchTerms(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := 0
	if n, err := req.RequireFloat("limit"); err == nil {
		limit = int(n)
	}
	hits, err := s.svc.SearchTerms(ctx, q, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no terms found"), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Report(ctx, index.IssueFilter{
		File:     optionalString(req, "file"),
		Kind:     optionalString(req, "kind"),
		Severity: optionalString(req, "severity"),
	})
	return lookupResult("index", "run not yet indexed", view, err), nil
}

func (s *Server) getOrphans(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	o, err := s.svc.Orphans(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(o) == 0 {
		return mcp.NewToolResultText("no orphans found"), nil
	}
	return jsonResult(o), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(ctx, p)
	if err != nil {
		return lookupResult("document", p, nil, err), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) getCorpusContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CorpusFormatContract), nil
}

func (s *Server) reindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     CorpusFormatContract,
		},
	}, nil
}
