// Package cmd provides CLI command implementations for axon-metrics.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/Benny93/axon-metrics/internal/ingestion"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/report"
	"github.com/Benny93/axon-metrics/internal/storage"
	"github.com/Benny93/axon-metrics/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// logger is the application-wide diagnostic logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	Prefix: "axon-metrics",
})

const (
	indexDirName = ".axon-metrics"
	badgerDir    = "badger"
)

// AnalyzeCmd runs the analyzers over a repository and writes reports.
type AnalyzeCmd struct {
	Path         string   `arg:"" optional:"" default:"." help:"Path to repository"`
	Analyzers    []string `short:"a" sep:"," help:"Analyzers to run (ccn,nodecount,classlevel,cohesion,dependency); default all"`
	JDependXML   string   `name:"jdepend-xml" placeholder:"FILE" help:"Write a JDepend XML report (- for stdout)"`
	SummaryXML   string   `name:"summary-xml" placeholder:"FILE" help:"Write a summary XML report (- for stdout)"`
	JSON         string   `name:"json" placeholder:"FILE" help:"Write a JSON report (- for stdout)"`
	Text         string   `name:"text" placeholder:"FILE" help:"Write a text report (- for stdout)"`
	Exclude      []string `short:"x" help:"Additional gitignore-style patterns to skip"`
	IncludeTests bool     `help:"Analyze _test.go files"`
	NoStore      bool     `help:"Do not update the metrics index"`
	Workers      int      `help:"Parallel parse workers; 0 uses all CPUs"`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run() error {
	return runAnalyze(context.Background(), analyzeParams{cmd: c, stdout: os.Stdout, stderr: os.Stderr})
}

type analyzeParams struct {
	cmd    *AnalyzeCmd
	stdout io.Writer
	stderr io.Writer
}

func runAnalyze(ctx context.Context, p analyzeParams) error {
	c := p.cmd
	repoPath, err := repoDir(c.Path)
	if err != nil {
		return err
	}
	kinds, err := parseAnalyzers(c.Analyzers)
	if err != nil {
		return err
	}
	outputs, err := c.outputs()
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(p.stderr, "Analyzing %s\n", repoPath)

	var store storage.Backend
	if !c.NoStore {
		backend, err := openStorage(repoPath, false)
		if err != nil {
			return err
		}
		defer func() { _ = backend.Close() }()
		store = backend
	}

	analysis, err := ingestion.RunPipeline(ctx, repoPath, store, ingestion.Options{
		Walk:      ingestion.WalkOptions{IncludeTests: c.IncludeTests, Exclude: c.Exclude},
		Analyzers: kinds,
		Workers:   c.Workers,
		Logger:    logger,
		Progress: func(phase string, pct float64) {
			fmt.Fprintf(p.stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
		},
	})
	fmt.Fprintln(p.stderr) // Newline after progress
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	for _, out := range outputs {
		if err := writeReport(analysis, out.format, out.target, p.stdout); err != nil {
			return err
		}
		if out.target != "-" {
			logger.Debug("report written", "format", out.format, "file", out.target)
		}
	}

	r := analysis.Result
	color.New(color.FgGreen).Fprintln(p.stderr, "✓ Analysis complete")
	fmt.Fprintf(p.stderr, "  Files:          %d\n", r.Files)
	fmt.Fprintf(p.stderr, "  Packages:       %d\n", r.Packages)
	fmt.Fprintf(p.stderr, "  Types:          %d\n", r.Types)
	fmt.Fprintf(p.stderr, "  Methods:        %d\n", r.Methods)
	fmt.Fprintf(p.stderr, "  Functions:      %d\n", r.Functions)
	if r.Cycles > 0 {
		color.New(color.FgYellow).Fprintf(p.stderr, "  Cycles:         %d\n", r.Cycles)
	}
	fmt.Fprintf(p.stderr, "  Duration:       %.2fs\n", r.DurationSecs)
	return nil
}

type reportOutput struct {
	format string
	target string
}

func (c *AnalyzeCmd) outputs() ([]reportOutput, error) {
	var out []reportOutput
	stdoutUsers := 0
	for _, o := range []reportOutput{
		{report.FormatJDependXML, c.JDependXML},
		{report.FormatSummaryXML, c.SummaryXML},
		{report.FormatJSON, c.JSON},
		{report.FormatText, c.Text},
	} {
		if o.target == "" {
			continue
		}
		if o.target == "-" {
			stdoutUsers++
		}
		out = append(out, o)
	}
	if stdoutUsers > 1 {
		return nil, errors.New("only one report can be written to stdout")
	}
	return out, nil
}

// writeReport renders one report of analysis. target "-" means w.
func writeReport(analysis *ingestion.Analysis, format, target string, w io.Writer) error {
	writer, err := report.New(format)
	if err != nil {
		return err
	}
	if report.AcceptAll(writer, analysis.Loader.All()) == 0 {
		return fmt.Errorf("%s report: %w: none of the selected analyzers can be reported", format, report.ErrAnalyzerNotAccepted)
	}

	if target != "-" {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("creating %s report: %w", format, err)
		}
		defer f.Close()
		w = f
	}
	if err := writer.Write(w, analysis.Builder.AllPackages()); err != nil {
		return fmt.Errorf("writing %s report: %w", format, err)
	}
	return nil
}

func parseAnalyzers(names []string) ([]metrics.Kind, error) {
	var kinds []metrics.Kind
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		k, ok := metrics.ParseKind(name)
		if !ok {
			valid := make([]string, len(metrics.AllKinds))
			for i, k := range metrics.AllKinds {
				valid[i] = string(k)
			}
			return nil, fmt.Errorf("unknown analyzer %q (valid: %s)", name, strings.Join(valid, ", "))
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// ShowCmd prints the stored metrics of one node.
type ShowCmd struct {
	Name string `arg:"" help:"Node ID, qualified name or name"`
	Path string `short:"p" default:"." help:"Path to repository"`
}

// Run executes the show command.
func (c *ShowCmd) Run() error {
	store, err := loadStorage(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return runShow(context.Background(), store, c.Name, os.Stdout)
}

func runShow(ctx context.Context, store storage.Backend, name string, w io.Writer) error {
	n, err := storage.Resolve(ctx, store, name)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", name, err)
	}
	if n == nil {
		return fmt.Errorf("no node found for %q", name)
	}

	mcp.FormatNode(w, n)
	if n.Kind != "package" {
		return nil
	}
	deps, err := store.DependsUpon(ctx, n.ID)
	if err != nil {
		return err
	}
	users, err := store.UsedBy(ctx, n.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nDepends upon: %s\n", joinIDs(deps))
	fmt.Fprintf(w, "Used by:      %s\n", joinIDs(users))
	return nil
}

// TopCmd lists the nodes with the highest value of a metric.
type TopCmd struct {
	Metric string `arg:"" help:"Metric name (e.g. wmc, ccn2, d)"`
	Kind   string `short:"k" help:"Restrict to a node kind (package, class, interface, method, function)"`
	Limit  int    `short:"n" default:"10" help:"Maximum results"`
	Path   string `short:"p" default:"." help:"Path to repository"`
}

// Run executes the top command.
func (c *TopCmd) Run() error {
	store, err := loadStorage(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return runTop(context.Background(), store, c.Metric, c.Kind, c.Limit, os.Stdout)
}

func runTop(ctx context.Context, store storage.Backend, metric, kind string, limit int, w io.Writer) error {
	nodes, err := store.NodesByKind(ctx, kind)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	top := storage.TopNodes(nodes, metric, limit)
	if len(top) == 0 {
		fmt.Fprintf(w, "No nodes carry the metric %q\n", metric)
		return nil
	}
	for i, n := range top {
		fmt.Fprintf(w, "%3d. %-60s %-10s %s\n", i+1, n.QualifiedName, n.Kind, n.Metrics[metric].String())
	}
	return nil
}

// CyclesCmd lists package dependency cycles.
type CyclesCmd struct {
	Path string `short:"p" default:"." help:"Path to repository"`
}

// Run executes the cycles command.
func (c *CyclesCmd) Run() error {
	store, err := loadStorage(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return runCycles(context.Background(), store, os.Stdout)
}

func runCycles(ctx context.Context, store storage.Backend, w io.Writer) error {
	cycles, err := store.Cycles(ctx)
	if err != nil {
		return fmt.Errorf("reading cycles: %w", err)
	}
	if len(cycles) == 0 {
		color.New(color.FgGreen).Fprintln(w, "No package dependency cycles")
		return nil
	}
	color.New(color.FgYellow).Fprintf(w, "%d package dependency cycles\n", len(cycles))
	for i, c := range cycles {
		fmt.Fprintf(w, "  %d. %s\n", i+1, strings.ReplaceAll(joinIDs(c), ", ", " -> "))
	}
	return nil
}

// WatchCmd re-analyzes the repository whenever Go sources change.
type WatchCmd struct {
	Path      string        `arg:"" optional:"" default:"." help:"Path to repository"`
	Analyzers []string      `short:"a" sep:"," help:"Analyzers to run; default all"`
	Debounce  time.Duration `default:"2s" help:"Quiet period before re-analyzing"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	repoPath, err := repoDir(c.Path)
	if err != nil {
		return err
	}
	kinds, err := parseAnalyzers(c.Analyzers)
	if err != nil {
		return err
	}
	store, err := openStorage(repoPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	opts := ingestion.Options{Analyzers: kinds, Logger: logger}
	if _, err := ingestion.RunPipeline(ctx, repoPath, store, opts); err != nil {
		return fmt.Errorf("initial analysis: %w", err)
	}

	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", repoPath)

	err = ingestion.WatchRepo(ctx, repoPath, store, ingestion.WatchOptions{
		Pipeline: opts,
		Debounce: c.Debounce,
		OnRun:    printRun,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

func printRun(a *ingestion.Analysis, err error) {
	stamp := time.Now().Format("15:04:05")
	if err != nil {
		color.Red("[%s] analysis failed: %v", stamp, err)
		return
	}
	r := a.Result
	color.Green("[%s] re-analyzed %d files: %d types, %d cycles (%.2fs)", stamp, r.Files, r.Types, r.Cycles, r.DurationSecs)
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Path  string `short:"p" default:"." help:"Path to repository"`
	Watch bool   `short:"w" help:"Re-analyze on file changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	repoPath, err := repoDir(c.Path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		cancel()
	}()

	// Stdout carries JSON-RPC only; diagnostics go to stderr.
	var store *storage.BadgerBackend
	if c.Watch {
		store, err = openStorage(repoPath, false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		opts := ingestion.Options{Logger: logger}
		if _, err := ingestion.RunPipeline(ctx, repoPath, store, opts); err != nil {
			return fmt.Errorf("initial analysis: %w", err)
		}
		go func() {
			err := ingestion.WatchRepo(ctx, repoPath, store, ingestion.WatchOptions{
				Pipeline: opts,
				OnRun: func(a *ingestion.Analysis, err error) {
					if err != nil {
						logger.Warn("re-analysis failed", "err", err)
						return
					}
					logger.Info("re-analyzed", "files", a.Result.Files, "nodes", a.Result.Nodes)
				},
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watch stopped", "err", err)
			}
		}()
		logger.Info("starting MCP server with watch mode", "root", repoPath)
	} else {
		store, err = loadStorage(repoPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		logger.Info("starting MCP server", "root", repoPath)
	}

	server := mcp.NewServer(store, Version)
	err = server.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// StatusCmd shows index status for a repository.
type StatusCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to repository"`
}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	store, err := loadStorage(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return runStatus(context.Background(), store, os.Stdout)
}

func runStatus(ctx context.Context, store storage.Backend, w io.Writer) error {
	meta, err := store.Meta(ctx)
	if err != nil {
		return fmt.Errorf("reading index metadata: %w", err)
	}
	if meta == nil {
		return errors.New("index is empty. Run 'axon-metrics analyze' first")
	}
	project, err := store.ProjectMetrics(ctx)
	if err != nil {
		return fmt.Errorf("reading project metrics: %w", err)
	}

	fmt.Fprintf(w, "Index status for %s\n", meta.Root)
	fmt.Fprintf(w, "  Last analyzed:  %s\n", meta.AnalyzedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  Analyzers:      %s\n", strings.Join(meta.Analyzers, ", "))
	fmt.Fprintf(w, "  Files:          %d\n", meta.Files)
	fmt.Fprintf(w, "  Nodes:          %d\n", meta.Nodes)
	fmt.Fprintf(w, "  Dependencies:   %d\n", meta.Edges)
	for _, k := range project.Keys() {
		fmt.Fprintf(w, "  %-15s %s\n", k+":", project[k].String())
	}
	return nil
}

// CleanCmd deletes the index of a repository.
type CleanCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Path to repository"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	repoPath, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	indexDir := filepath.Join(repoPath, indexDirName)
	if _, err := os.Stat(indexDir); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s. Nothing to clean", repoPath)
	}

	if !c.Force {
		fmt.Printf("Delete index at %s? [y/N] ", indexDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}

	color.Green("Deleted %s", indexDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// repoDir resolves path to an existing directory.
func repoDir(path string) (string, error) {
	repoPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(repoPath)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", repoPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", repoPath)
	}
	return repoPath, nil
}

func indexPath(repoPath string) string {
	return filepath.Join(repoPath, indexDirName, badgerDir)
}

// openStorage opens or creates the index of repoPath.
func openStorage(repoPath string, readOnly bool) (*storage.BadgerBackend, error) {
	dbPath := indexPath(repoPath)
	if !readOnly {
		if err := os.MkdirAll(dbPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", indexDirName, err)
		}
	}
	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// loadStorage opens an existing index read-only.
func loadStorage(path string) (*storage.BadgerBackend, error) {
	repoPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(indexPath(repoPath)); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found at %s. Run 'axon-metrics analyze' first", repoPath)
	}
	return openStorage(repoPath, true)
}

// joinIDs renders node IDs without their kind prefix.
func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		if _, rest, ok := strings.Cut(id, ":"); ok {
			id = rest
		}
		names[i] = id
	}
	return strings.Join(names, ", ")
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Quiet   bool             `short:"q" help:"Only log errors"`

	// Commands
	Analyze AnalyzeCmd `cmd:"" help:"Compute metrics for a repository"`
	Show    ShowCmd    `cmd:"" help:"Show the metrics of a package, type or member"`
	Top     TopCmd     `cmd:"" help:"List the nodes with the highest value of a metric"`
	Cycles  CyclesCmd  `cmd:"" help:"List package dependency cycles"`
	Watch   WatchCmd   `cmd:"" help:"Re-analyze on file changes"`
	Setup   SetupCmd   `cmd:"" help:"Configure MCP for Claude Code / Cursor / Qwen"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server (stdio transport)"`
	Status  StatusCmd  `cmd:"" help:"Show index status for a repository"`
	Clean   CleanCmd   `cmd:"" help:"Delete the index of a repository"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Parser builds the Kong parser for c. Flag defaults are read from
// .axon-metrics.json in the working directory or the home directory.
func (c *CLI) Parser(options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("axon-metrics"),
		kong.Description("Object-oriented design metrics for Go code"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, ".axon-metrics.json", "~/.axon-metrics.json"),
		kong.Vars{
			"version": Version,
		},
	}, options...)
	return kong.New(c, options...)
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := c.Parser()
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	switch {
	case c.Verbose:
		logger.SetLevel(charmlog.DebugLevel)
	case c.Quiet:
		logger.SetLevel(charmlog.ErrorLevel)
	}

	return kongCtx.Run()
}
