// Package report renders analyzer results in the supported output formats.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// ErrAnalyzerNotAccepted is returned when a writer cannot report the
// results of an analyzer.
var ErrAnalyzerNotAccepted = errors.New("analyzer not accepted")

// Output format names.
const (
	FormatJDependXML = "jdepend-xml"
	FormatSummaryXML = "summary-xml"
	FormatJSON       = "json"
	FormatText       = "text"
)

// Writer renders the results of the analyzers it accepted.
type Writer interface {
	// Format returns the writer's format name.
	Format() string

	// Accept registers an analyzer. It returns an error wrapping
	// ErrAnalyzerNotAccepted when the writer cannot report a's results.
	Accept(a metrics.Analyzer) error

	// Write renders the accepted results for pkgs.
	Write(w io.Writer, pkgs []*code.Package) error
}

// New creates the writer for format.
func New(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJDependXML:
		return NewJDependXML(), nil
	case FormatSummaryXML:
		return NewSummaryXML(), nil
	case FormatJSON:
		return NewJSON(), nil
	case FormatText:
		return NewText(), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{FormatJDependXML, FormatJSON, FormatSummaryXML, FormatText}
}

// AcceptAll offers every analyzer to w and returns how many it accepted.
func AcceptAll(w Writer, analyzers []metrics.Analyzer) int {
	n := 0
	for _, a := range analyzers {
		if w.Accept(a) == nil {
			n++
		}
	}
	return n
}

// results collects node and project aware analyzers.
type results struct {
	nodes   []metrics.NodeAware
	project []metrics.ProjectAware
}

func (r *results) accept(format string, a metrics.Analyzer) error {
	na, isNode := a.(metrics.NodeAware)
	pa, isProject := a.(metrics.ProjectAware)
	if !isNode && !isProject {
		return fmt.Errorf("%w: %s cannot report %s results", ErrAnalyzerNotAccepted, format, a.Kind().Label())
	}
	if isNode {
		r.nodes = append(r.nodes, na)
	}
	if isProject {
		r.project = append(r.project, pa)
	}
	return nil
}

// node merges the records of every accepted analyzer for n.
func (r *results) node(n code.Node) metrics.Record {
	out := metrics.Record{}
	for _, a := range r.nodes {
		out.Merge(a.NodeMetrics(n))
	}
	return out
}

func (r *results) projectRecord() metrics.Record {
	out := metrics.Record{}
	for _, a := range r.project {
		out.Merge(a.ProjectMetrics())
	}
	return out
}

// sourceFiles returns the distinct files of all types and functions.
func sourceFiles(pkgs []*code.Package) []string {
	seen := make(map[string]bool)
	for _, p := range pkgs {
		for _, t := range p.Types() {
			if f := t.Position().File; f != "" {
				seen[f] = true
			}
		}
		for _, f := range p.Functions() {
			if file := f.Position().File; file != "" {
				seen[file] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// analyzedPackages drops external packages and sorts by path.
func analyzedPackages(pkgs []*code.Package) []*code.Package {
	out := make([]*code.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if !p.External() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}
