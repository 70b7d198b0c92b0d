// Package mcp exposes the fill pipeline as MCP tools over stdio, for use
// from editors and agents that speak the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docfill/docfill/internal/batch"
	"github.com/docfill/docfill/internal/config"
	"github.com/docfill/docfill/internal/descriptions"
	"github.com/docfill/docfill/internal/fill"
	"github.com/docfill/docfill/internal/pdf"
)

// Server wires the fill pipeline into an MCP tool server.
type Server struct {
	config    *config.Config
	engine    pdf.Engine
	filler    *fill.Filler
	orch      *batch.Orchestrator
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server exposing the fill tools. File tools
// resolve paths relative to the configured working directory and refuse
// to escape it.
func NewServer(cfg *config.Config, engine pdf.Engine, filler *fill.Filler, orch *batch.Orchestrator) (*Server, error) {
	if engine == nil || filler == nil || orch == nil {
		return nil, fmt.Errorf("engine, filler, and orchestrator cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		engine:    engine,
		filler:    filler,
		orch:      orch,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools. The fill tools take one
// optional string argument per canonical field key from the mapping.
func (s *Server) registerTools() {
	fillFileTool := mcp.NewTool(
		"pdf_fill_file",
		append(s.valueOptions(),
			mcp.WithDescription(descriptions.PDFFillFileDescription),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Path to the PDF file, relative to the working directory"),
			),
		)...,
	)
	s.mcpServer.AddTool(fillFileTool, s.handleFillFile)

	fillZipTool := mcp.NewTool(
		"pdf_fill_zip",
		append(s.valueOptions(),
			mcp.WithDescription(descriptions.PDFFillZipDescription),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Path to the zip archive, relative to the working directory"),
			),
		)...,
	)
	s.mcpServer.AddTool(fillZipTool, s.handleFillZip)

	listFieldsTool := mcp.NewTool(
		"pdf_list_form_fields",
		mcp.WithDescription(descriptions.PDFListFormFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, relative to the working directory"),
		),
	)
	s.mcpServer.AddTool(listFieldsTool, s.handleListFormFields)

	serverInfoTool := mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// valueOptions builds one optional string argument per canonical field key.
func (s *Server) valueOptions() []mcp.ToolOption {
	keys := s.filler.Catalog().Keys()
	opts := make([]mcp.ToolOption, 0, len(keys))
	for _, key := range keys {
		opts = append(opts, mcp.WithString(key,
			mcp.Description(fmt.Sprintf("Value to fill into the %q field", key)),
		))
	}
	return opts
}

// resolvePath joins a tool-supplied path against the working directory and
// rejects anything that escapes it.
func (s *Server) resolvePath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	base, err := filepath.Abs(s.config.WorkDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	resolved := raw
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}
	resolved = filepath.Clean(resolved)
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the working directory", raw)
	}
	return resolved, nil
}

// collectValues pulls the non-blank canonical field values out of a tool
// request's arguments.
func (s *Server) collectValues(request mcp.CallToolRequest) map[string]string {
	args := request.GetArguments()
	values := make(map[string]string)
	for _, key := range s.filler.Catalog().Keys() {
		if v, ok := args[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				values[key] = v
			}
		}
	}
	return values
}

func (s *Server) handleFillFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := s.resolvePath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := s.collectValues(request)
	if len(values) == 0 {
		return mcp.NewToolResultError("no field values supplied"), nil
	}

	doc, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	result, out := s.orch.ProcessDocument(filepath.Base(resolved), doc, values)
	if result.Status == batch.StatusFailed {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fill %s: %s", path, result.Error)), nil
	}

	outPath := filepath.Join(filepath.Dir(resolved), result.Output)
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", outPath, err)), nil
	}

	return mcp.NewToolResultText(formatFillResult(result, outPath)), nil
}

func (s *Server) handleFillZip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := s.resolvePath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := s.collectValues(request)
	if len(values) == 0 {
		return mcp.NewToolResultError("no field values supplied"), nil
	}

	zipData, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	out, results, err := s.orch.ProcessBundle(zipData, values)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to process %s: %v", path, err)), nil
	}

	outPath := filepath.Join(filepath.Dir(resolved), "processed_"+filepath.Base(resolved))
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", outPath, err)), nil
	}

	text := fmt.Sprintf("Processed %d document(s) from %s\nOutput: %s\n\n", len(results), path, outPath)
	for _, r := range results {
		text += formatFillResult(r, r.Output) + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListFormFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := s.resolvePath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	fields, err := s.engine.FormFields(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to inspect %s: %v", path, err)), nil
	}

	if len(fields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No AcroForm fields in %s", path)), nil
	}

	text := fmt.Sprintf("Found %d form field(s) in %s:\n", len(fields), path)
	for i, field := range fields {
		text += fmt.Sprintf("%d. %s", i+1, field.Name)
		if field.Value != "" {
			text += fmt.Sprintf(" = %q", field.Value)
		}
		text += "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("%s v%s\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Working directory: %s\n\n", s.config.WorkDir)

	text += "Accepted field keys:\n"
	for _, key := range s.filler.Catalog().Keys() {
		text += fmt.Sprintf("  - %s\n", key)
	}

	text += "\nAvailable tools:\n"
	text += "  - pdf_fill_file: fill a single PDF with the supplied field values\n"
	text += "  - pdf_fill_zip: fill every PDF in a zip archive\n"
	text += "  - pdf_list_form_fields: list the AcroForm fields of a PDF\n"
	text += "  - pdf_server_info: this summary\n"

	text += "\nDocuments with AcroForm fields are filled through the field mapping;\n"
	text += "documents without them get text drawn next to the matching labels.\n"
	return mcp.NewToolResultText(text), nil
}

func formatFillResult(result batch.Result, output string) string {
	text := fmt.Sprintf("%s -> %s (%s)", result.Filename, output, result.Status)
	if len(result.FormFilled) > 0 {
		text += fmt.Sprintf(", form fields: %s", strings.Join(result.FormFilled, ", "))
	}
	if len(result.OverlayFilled) > 0 {
		text += fmt.Sprintf(", overlaid: %s", strings.Join(result.OverlayFilled, ", "))
	}
	if len(result.Unfilled) > 0 {
		text += fmt.Sprintf(", unfilled: %s", strings.Join(result.Unfilled, ", "))
	}
	if len(result.Truncated) > 0 {
		text += fmt.Sprintf(", truncated: %s", strings.Join(result.Truncated, ", "))
	}
	return text
}

// Run serves the registered tools over stdio until the transport closes.
func (s *Server) Run(_ context.Context) error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
