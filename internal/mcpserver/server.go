// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes plantcare tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
)

// RulesURI is the resource URI of WateringRules.
const RulesURI = "plantcare://watering-rules"

// SpeciesLookup resolves species names to care data.
type SpeciesLookup interface {
	Lookup(ctx context.Context, name string) models.SpeciesInfo
}

// Server wraps the MCP server with plantcare tools.
type Server struct {
	mcp     *server.MCPServer
	garden  *garden.Garden
	species SpeciesLookup
}

// New creates a new MCP server with all plantcare tools registered.
func New(g *garden.Garden, sp SpeciesLookup, version string) *Server {
	s := &Server{garden: g, species: sp}

	s.mcp = server.NewMCPServer(
		"Plantcare",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_plants",
		mcp.WithDescription("List all plants with their watering status."),
	), s.listPlants)

	s.mcp.AddTool(mcp.NewTool("plant_status",
		mcp.WithDescription("Get one plant's watering status: days since last watering, interval, and whether it is overdue."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Plant name")),
	), s.plantStatus)

	s.mcp.AddTool(mcp.NewTool("due_reminders",
		mcp.WithDescription("List the watering reminders that are due right now."),
	), s.dueReminders)

	s.mcp.AddTool(mcp.NewTool("resolve_watering_interval",
		mcp.WithDescription("Compute a watering interval in days from a species benchmark and/or watering description. "+
			"See the "+RulesURI+" resource for the rules."),
		mcp.WithString("benchmark", mcp.Description(`Benchmark value, e.g. "7", "5-7" or "2.5"`)),
		mcp.WithString("description", mcp.Description(`Watering description, e.g. "Twice a week" or "Frequent"`)),
	), s.resolveInterval)

	s.mcp.AddTool(mcp.NewTool("lookup_species",
		mcp.WithDescription("Look up a species by name and return its catalog id, watering interval and description."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Species name, e.g. Pothos")),
	), s.lookupSpecies)

	s.mcp.AddTool(mcp.NewTool("water_plant",
		mcp.WithDescription("Record that a plant was watered."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Plant name")),
		mcp.WithString("date", mcp.Description("Date watered as YYYY-MM-DD; defaults to today")),
	), s.waterPlant)

	s.mcp.AddTool(mcp.NewTool("upload_photo",
		mcp.WithDescription("Upload a photo for a plant from a base64 data URI or an http(s) URL."),
		mcp.WithString("plant", mcp.Required(), mcp.Description("Plant name")),
		mcp.WithString("data_uri", mcp.Required(), mcp.Description("data:image/...;base64,... or https://... URL")),
		mcp.WithString("caption", mcp.Description("Optional caption, at most 200 characters")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.uploadPhoto)

	s.mcp.AddTool(mcp.NewTool("get_watering_rules",
		mcp.WithDescription("Returns how watering intervals and due status are computed."),
	), s.getWateringRules)

	s.mcp.AddResource(
		mcp.NewResource(RulesURI, "Watering Rules",
			mcp.WithResourceDescription("How watering intervals are derived and when plants are due."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
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

func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

func (s *Server) listPlants(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.garden.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.garden.Views()), nil
}

func (s *Server) plantStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.garden.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.garden.Plant(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return jsonResult(garden.View(p, s.garden.Now())), nil
}

func (s *Server) dueReminders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.garden.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	due := s.garden.DueReminders()
	if len(due) == 0 {
		return mcp.NewToolResultText("no plants need watering"), nil
	}
	lines := make([]string, len(due))
	for i, r := range due {
		lines[i] = r.Message
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n\n")), nil
}

type intervalResult struct {
	Days   int    `json:"days"`
	Source string `json:"source"`
}

func (s *Server) resolveInterval(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	md := models.SpeciesCareMetadata{WateringDescription: optionalString(req, "description")}
	if b := optionalString(req, "benchmark"); b != "" {
		md.WateringBenchmark = watering.ParseBenchmark(b)
	}
	days, source := watering.Explain(md)
	return jsonResult(intervalResult{Days: days, Source: source}), nil
}

func (s *Server) lookupSpecies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info := s.species.Lookup(ctx, name)
	info.Detail = nil
	return jsonResult(info), nil
}

func (s *Server) waterPlant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.garden.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.garden.Water(ctx, name, optionalString(req, "date"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(garden.View(p, s.garden.Now())), nil
}

func (s *Server) getWateringRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WateringRules), nil
}

func (s *Server) readRulesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RulesURI,
			MIMEType: "text/markdown",
			Text:     WateringRules,
		},
	}, nil
}
