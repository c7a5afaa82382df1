// Package mcp provides the MCP (Model Context Protocol) server that exposes
// stored metrics to agents.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/axon-metrics/internal/storage"
)

// Tool and resource names.
const (
	ToolNode     = "metrics_node"
	ToolTop      = "metrics_top"
	ToolCycles   = "metrics_cycles"
	ToolSearch   = "metrics_search"
	ResourceOver = "metrics://overview"

	defaultTopLimit    = 10
	defaultSearchLimit = 20
)

// Server represents the MCP server.
type Server struct {
	storage storage.Backend
	server  *mcp.Server
	version string
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NodeArgs are the arguments of metrics_node.
type NodeArgs struct {
	Name string `json:"name"`
}

// TopArgs are the arguments of metrics_top.
type TopArgs struct {
	Metric string `json:"metric"`
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SearchArgs are the arguments of metrics_search.
type SearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// NewServer creates a new MCP server reading from store.
func NewServer(store storage.Backend, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{storage: store, version: version}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "axon-metrics",
		Version: version,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        ToolNode,
			Description: "Show the stored metrics of a package, type, method or function, looked up by ID, qualified name or name.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"name": {Type: "string", Description: "Node ID, qualified name or name"},
				},
				Required: []string{"name"},
			},
		},
		{
			Name:        ToolTop,
			Description: "List the nodes with the highest value of a metric, for example wmc, ccn2 or d.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"metric": {Type: "string", Description: "Metric name"},
					"kind": {
						Type:        "string",
						Description: "Restrict to one node kind",
						Enum:        []any{"package", "class", "interface", "method", "function"},
					},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"metric"},
			},
		},
		{
			Name:        ToolCycles,
			Description: "List the package dependency cycles.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        ToolSearch,
			Description: "Search stored nodes by name. Returns the best matches first.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search text"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         ResourceOver,
			Name:        "Metrics Overview",
			Description: "Project metrics and statistics of the stored analysis",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolNode:
		n, _ := args["name"].(string)
		return s.handleNode(ctx, NodeArgs{Name: n})
	case ToolTop:
		metric, _ := args["metric"].(string)
		kind, _ := args["kind"].(string)
		return s.handleTop(ctx, TopArgs{Metric: metric, Kind: kind, Limit: intArg(args["limit"])})
	case ToolCycles:
		return s.handleCycles(ctx)
	case ToolSearch:
		query, _ := args["query"].(string)
		return s.handleSearch(ctx, SearchArgs{Query: query, Limit: intArg(args["limit"])})
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourceOver:
		return s.overview(ctx)
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over newline-delimited JSON-RPC on stdin and stdout until
// ctx is done or stdin is closed.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return errors.New("stdin and stdout must not be nil")
	}
	err := s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	})
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Connect attaches the server to t. It is used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// registerTools registers the tool catalogue with the MCP server.
func (s *Server) registerTools() {
	tools := make(map[string]Tool)
	for _, t := range s.ListTools() {
		tools[t.Name] = t
	}
	sdkTool := func(name string) *mcp.Tool {
		t := tools[name]
		return &mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}

	mcp.AddTool(s.server, sdkTool(ToolNode), func(ctx context.Context, _ *mcp.CallToolRequest, in NodeArgs) (*mcp.CallToolResult, any, error) {
		return textResult(s.handleNode(ctx, in))
	})
	mcp.AddTool(s.server, sdkTool(ToolTop), func(ctx context.Context, _ *mcp.CallToolRequest, in TopArgs) (*mcp.CallToolResult, any, error) {
		return textResult(s.handleTop(ctx, in))
	})
	mcp.AddTool(s.server, sdkTool(ToolCycles), func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return textResult(s.handleCycles(ctx))
	})
	mcp.AddTool(s.server, sdkTool(ToolSearch), func(ctx context.Context, _ *mcp.CallToolRequest, in SearchArgs) (*mcp.CallToolResult, any, error) {
		return textResult(s.handleSearch(ctx, in))
	})
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: r.URI, MIMEType: r.MimeType, Text: text}},
			}, nil
		})
	}
}

func textResult(text string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
}

func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Tool Handlers

func (s *Server) handleNode(ctx context.Context, args NodeArgs) (string, error) {
	if strings.TrimSpace(args.Name) == "" {
		return "No name provided", nil
	}
	n, err := storage.Resolve(ctx, s.storage, args.Name)
	if err != nil {
		return "", err
	}
	if n == nil {
		return fmt.Sprintf("No node found for '%s'", args.Name), nil
	}

	var sb strings.Builder
	FormatNode(&sb, n)

	if n.Kind == "package" {
		deps, err := s.storage.DependsUpon(ctx, n.ID)
		if err != nil {
			return "", err
		}
		users, err := s.storage.UsedBy(ctx, n.ID)
		if err != nil {
			return "", err
		}
		writeIDList(&sb, "Depends upon", deps)
		writeIDList(&sb, "Used by", users)
	}
	return sb.String(), nil
}

func (s *Server) handleTop(ctx context.Context, args TopArgs) (string, error) {
	if strings.TrimSpace(args.Metric) == "" {
		return "No metric provided", nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}
	nodes, err := s.storage.NodesByKind(ctx, args.Kind)
	if err != nil {
		return "", err
	}
	top := storage.TopNodes(nodes, args.Metric, limit)
	if len(top) == 0 {
		return fmt.Sprintf("No nodes carry the metric '%s'", args.Metric), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d by %s:\n\n", len(top), args.Metric)
	for i, n := range top {
		fmt.Fprintf(&sb, "%d. **%s** (%s) %s = %s\n", i+1, n.QualifiedName, n.Kind, args.Metric, n.Metrics[args.Metric].String())
	}
	return sb.String(), nil
}

func (s *Server) handleCycles(ctx context.Context) (string, error) {
	cycles, err := s.storage.Cycles(ctx)
	if err != nil {
		return "", err
	}
	if len(cycles) == 0 {
		return "No package dependency cycles", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d package dependency cycles:\n\n", len(cycles))
	for i, c := range cycles {
		names := make([]string, len(c))
		for j, id := range c {
			names[j] = trimKind(id)
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.Join(names, " -> "))
	}
	return sb.String(), nil
}

func (s *Server) handleSearch(ctx context.Context, args SearchArgs) (string, error) {
	if strings.TrimSpace(args.Query) == "" {
		return "No query provided", nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	found, err := s.storage.Search(ctx, args.Query, limit)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", len(found), args.Query)
	for i, n := range found {
		fmt.Fprintf(&sb, "%d. **%s** (%s)", i+1, n.QualifiedName, n.Kind)
		if n.File != "" {
			fmt.Fprintf(&sb, " %s", n.File)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (s *Server) overview(ctx context.Context) (string, error) {
	meta, err := s.storage.Meta(ctx)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "# Metrics Overview\n\nNo analysis stored. Run `axon-metrics analyze` first.\n", nil
	}
	project, err := s.storage.ProjectMetrics(ctx)
	if err != nil {
		return "", err
	}
	cycles, err := s.storage.Cycles(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Metrics Overview\n\n")
	fmt.Fprintf(&sb, "- Root: %s\n", meta.Root)
	fmt.Fprintf(&sb, "- Analyzed: %s\n", meta.AnalyzedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- Analyzers: %s\n", strings.Join(meta.Analyzers, ", "))
	fmt.Fprintf(&sb, "- Files: %d\n", meta.Files)
	fmt.Fprintf(&sb, "- Nodes: %d\n", meta.Nodes)
	fmt.Fprintf(&sb, "- Package dependencies: %d\n", meta.Edges)
	fmt.Fprintf(&sb, "- Cycles: %d\n", len(cycles))

	if len(project) > 0 {
		sb.WriteString("\n## Project metrics\n\n| Metric | Value |\n|---|---|\n")
		for _, k := range project.Keys() {
			fmt.Fprintf(&sb, "| %s | %s |\n", k, project[k].String())
		}
	}
	return sb.String(), nil
}

// FormatNode writes a markdown description of n and its metrics.
func FormatNode(w io.Writer, n *storage.NodeRecord) {
	fmt.Fprintf(w, "# %s (%s)\n\n", n.QualifiedName, n.Kind)
	fmt.Fprintf(w, "- ID: %s\n", n.ID)
	if n.Package != "" {
		fmt.Fprintf(w, "- Package: %s\n", n.Package)
	}
	if n.File != "" {
		if n.StartLine > 0 {
			fmt.Fprintf(w, "- File: %s:%d-%d\n", n.File, n.StartLine, n.EndLine)
		} else {
			fmt.Fprintf(w, "- File: %s\n", n.File)
		}
	}
	if n.External {
		fmt.Fprintf(w, "- External: yes\n")
	}
	if len(n.Metrics) == 0 {
		fmt.Fprintf(w, "\nNo metrics recorded.\n")
		return
	}
	fmt.Fprintf(w, "\n| Metric | Value |\n|---|---|\n")
	for _, k := range n.Metrics.Keys() {
		fmt.Fprintf(w, "| %s | %s |\n", k, n.Metrics[k].String())
	}
}

func writeIDList(sb *strings.Builder, title string, ids []string) {
	fmt.Fprintf(sb, "\n## %s (%d)\n\n", title, len(ids))
	for _, id := range ids {
		fmt.Fprintf(sb, "- %s\n", trimKind(id))
	}
}

// trimKind strips the kind prefix from a node ID.
func trimKind(id string) string {
	if _, rest, ok := strings.Cut(id, ":"); ok {
		return rest
	}
	return id
}
