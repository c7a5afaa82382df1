package ingestion

import (
	"context"
	"fmt"
	"io"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/metrics/dependency"
	"github.com/Benny93/axon-metrics/internal/metrics/loader"
	"github.com/Benny93/axon-metrics/internal/parsers"
	"github.com/Benny93/axon-metrics/internal/storage"
)

// Pipeline phase names reported to the progress callback.
const (
	PhaseWalk    = "Walking files"
	PhaseParse   = "Parsing code"
	PhaseAnalyze = "Running analyzers"
	PhaseStore   = "Loading to storage"
)

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Options configures a pipeline run.
type Options struct {
	// Walk controls file discovery.
	Walk WalkOptions

	// Analyzers selects the analyzers to run; empty runs all of them.
	Analyzers []metrics.Kind

	// Workers limits concurrent parsing; zero uses GOMAXPROCS.
	Workers int

	// Logger receives diagnostics. Nil discards them.
	Logger *charmlog.Logger

	// Progress is notified at the start and end of each phase.
	Progress ProgressCallback
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Files        int
	Packages     int
	Types        int
	Methods      int
	Functions    int
	Nodes        int
	Edges        int
	Cycles       int
	Fingerprint  string
	DurationSecs float64
}

// Analysis is the in-memory outcome of a pipeline run.
type Analysis struct {
	Root     string
	Files    []FileEntry
	Builder  *code.Builder
	Loader   *loader.Loader
	Snapshot *storage.Snapshot
	Result   *PipelineResult
}

// RunPipeline walks repoPath, builds the code model, runs the analyzers and,
// when store is not nil, replaces the store's contents with the results.
func RunPipeline(ctx context.Context, repoPath string, store storage.Backend, opts Options) (*Analysis, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	l, err := loader.New(opts.Analyzers...)
	if err != nil {
		return nil, fmt.Errorf("loading analyzers: %w", err)
	}
	l.AddListener(metrics.NewLogListener(logger))

	progress(PhaseWalk, 0.0)
	patterns, err := loadGitignore(repoPath)
	if err != nil {
		logger.Warn("ignoring unreadable .gitignore", "err", err)
	}
	entries, err := WalkRepo(repoPath, patterns, opts.Walk)
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	progress(PhaseWalk, 1.0)
	logger.Debug("walked repository", "root", repoPath, "files", len(entries))

	progress(PhaseParse, 0.0)
	modulePath, err := parsers.ModulePath(repoPath)
	if err != nil {
		logger.Warn("ignoring module file", "err", err)
	}
	frontend := parsers.NewGoFrontend(
		parsers.WithModulePath(modulePath),
		parsers.WithWorkers(opts.Workers),
		parsers.WithLogger(logger),
	)
	b := code.NewBuilder()
	if err := frontend.Build(ctx, sourceFiles(entries), b); err != nil {
		return nil, err
	}
	progress(PhaseParse, 1.0)

	progress(PhaseAnalyze, 0.0)
	if err := l.Run(ctx, b.Packages()); err != nil {
		return nil, err
	}
	progress(PhaseAnalyze, 1.0)

	a := &Analysis{
		Root:    repoPath,
		Files:   entries,
		Builder: b,
		Loader:  l,
	}
	a.Snapshot = BuildSnapshot(a)
	a.Result = summarize(a)

	if store != nil {
		progress(PhaseStore, 0.0)
		if err := store.BulkLoad(ctx, a.Snapshot); err != nil {
			return nil, fmt.Errorf("bulk load: %w", err)
		}
		progress(PhaseStore, 1.0)
	}

	a.Result.DurationSecs = time.Since(start).Seconds()
	return a, nil
}

func sourceFiles(entries []FileEntry) []parsers.SourceFile {
	out := make([]parsers.SourceFile, len(entries))
	for i, e := range entries {
		out[i] = parsers.SourceFile{Path: e.Path, RelPath: e.RelPath, Content: e.Content}
	}
	return out
}

// BuildSnapshot converts the model and the merged analyzer records into
// storage records.
func BuildSnapshot(a *Analysis) *storage.Snapshot {
	l := a.Loader
	snap := &storage.Snapshot{
		Meta: storage.Meta{
			Root:       a.Root,
			AnalyzedAt: time.Now().UTC(),
			Files:      len(a.Files),
		},
		Project: l.ProjectMetrics(),
	}
	for _, an := range l.All() {
		snap.Meta.Analyzers = append(snap.Meta.Analyzers, string(an.Kind()))
	}

	add := func(n code.Node, qualified, pkg string, pos code.Position) {
		snap.Nodes = append(snap.Nodes, &storage.NodeRecord{
			ID:            n.ID(),
			Name:          n.Name(),
			QualifiedName: qualified,
			Kind:          string(n.Kind()),
			Package:       pkg,
			File:          pos.File,
			StartLine:     pos.StartLine,
			EndLine:       pos.EndLine,
			Metrics:       l.NodeMetrics(n),
		})
	}

	for _, p := range a.Builder.Packages() {
		add(p, p.Path(), p.Path(), code.Position{})
		for _, t := range p.Types() {
			add(t, t.QualifiedName(), p.Path(), t.Position())
			for _, m := range t.Methods() {
				add(m, t.QualifiedName()+"."+m.Name(), p.Path(), m.Position())
			}
			for _, prop := range t.Properties() {
				add(prop, t.QualifiedName()+"."+prop.Name(), p.Path(), prop.Position())
			}
		}
		for _, f := range p.Functions() {
			add(f, p.Path()+"."+f.Name(), p.Path(), f.Position())
		}
	}

	if an, ok := l.Analyzer(metrics.KindDependency); ok {
		addDependencies(snap, an.(*dependency.Analyzer))
	}
	return snap
}

// addDependencies records external packages, package dependencies and
// cycles.
func addDependencies(snap *storage.Snapshot, dep *dependency.Analyzer) {
	for _, p := range dep.Packages() {
		if p.External() {
			snap.Nodes = append(snap.Nodes, &storage.NodeRecord{
				ID:            p.ID(),
				Name:          p.Name(),
				QualifiedName: p.Path(),
				Kind:          string(p.Kind()),
				Package:       p.Path(),
				External:      true,
				Metrics:       dep.NodeMetrics(p),
			})
		}
		for _, target := range dep.DependsUpon(p) {
			snap.Edges = append(snap.Edges, storage.Edge{Source: p.ID(), Target: target.ID()})
		}
	}
	for _, cycle := range dep.Cycles() {
		ids := make([]string, len(cycle))
		for i, p := range cycle {
			ids[i] = p.ID()
		}
		snap.Cycles = append(snap.Cycles, ids)
	}
}

func summarize(a *Analysis) *PipelineResult {
	r := &PipelineResult{
		Files:       len(a.Files),
		Nodes:       len(a.Snapshot.Nodes),
		Edges:       len(a.Snapshot.Edges),
		Cycles:      len(a.Snapshot.Cycles),
		Fingerprint: Fingerprint(a.Files),
	}
	for _, p := range a.Builder.Packages() {
		r.Packages++
		r.Types += len(p.Types())
		r.Functions += len(p.Functions())
		for _, t := range p.Types() {
			r.Methods += len(t.Methods())
		}
	}
	return r
}
