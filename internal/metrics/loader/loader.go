// Package loader instantiates, wires and runs a set of analyzers.
package loader

import (
	"context"
	"fmt"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/metrics/ccn"
	"github.com/Benny93/axon-metrics/internal/metrics/classlevel"
	"github.com/Benny93/axon-metrics/internal/metrics/cohesion"
	"github.com/Benny93/axon-metrics/internal/metrics/dependency"
	"github.com/Benny93/axon-metrics/internal/metrics/nodecount"
)

// Factory creates a fresh analyzer.
type Factory func() metrics.Analyzer

// DefaultFactories maps every built-in kind to its constructor.
func DefaultFactories() map[metrics.Kind]Factory {
	return map[metrics.Kind]Factory{
		metrics.KindCyclomaticComplexity: func() metrics.Analyzer { return ccn.New() },
		metrics.KindNodeCount:            func() metrics.Analyzer { return nodecount.New() },
		metrics.KindClassLevel:           func() metrics.Analyzer { return classlevel.New() },
		metrics.KindCohesion:             func() metrics.Analyzer { return cohesion.New() },
		metrics.KindDependency:           func() metrics.Analyzer { return dependency.New() },
	}
}

// Loader owns one analyzer instance per kind, including the kinds required
// transitively by the requested ones.
type Loader struct {
	requested []metrics.Kind
	order     []metrics.Kind
	instances map[metrics.Kind]metrics.Analyzer
}

// New creates a loader for kinds using the built-in analyzers. With no
// kinds, every built-in analyzer is loaded.
func New(kinds ...metrics.Kind) (*Loader, error) {
	return NewWithFactories(DefaultFactories(), kinds...)
}

// NewWithFactories creates a loader for kinds using factories.
func NewWithFactories(factories map[metrics.Kind]Factory, kinds ...metrics.Kind) (*Loader, error) {
	if len(kinds) == 0 {
		kinds = metrics.AllKinds
	}

	l := &Loader{instances: make(map[metrics.Kind]metrics.Analyzer)}
	seen := make(map[metrics.Kind]bool)
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		l.requested = append(l.requested, k)
	}

	visiting := make(map[metrics.Kind]bool)
	var resolve func(k metrics.Kind) error
	resolve = func(k metrics.Kind) error {
		if _, ok := l.instances[k]; ok {
			return nil
		}
		if visiting[k] {
			return fmt.Errorf("analyzer %s requires itself", k)
		}
		visiting[k] = true
		defer delete(visiting, k)

		factory, ok := factories[k]
		if !ok {
			return fmt.Errorf("unknown analyzer %q", k)
		}
		a := factory()

		if agg, ok := a.(metrics.AggregateAnalyzer); ok {
			deps := make([]metrics.Analyzer, 0, len(agg.RequiredAnalyzers()))
			for _, req := range agg.RequiredAnalyzers() {
				if err := resolve(req); err != nil {
					return err
				}
				deps = append(deps, l.instances[req])
			}
			if err := metrics.Wire(agg, deps...); err != nil {
				return err
			}
		}

		l.instances[k] = a
		l.order = append(l.order, k)
		return nil
	}

	for _, k := range l.requested {
		if err := resolve(k); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Analyzers returns the requested analyzers in request order.
func (l *Loader) Analyzers() []metrics.Analyzer {
	out := make([]metrics.Analyzer, 0, len(l.requested))
	for _, k := range l.requested {
		out = append(out, l.instances[k])
	}
	return out
}

// All returns every loaded analyzer in dependency order.
func (l *Loader) All() []metrics.Analyzer {
	out := make([]metrics.Analyzer, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.instances[k])
	}
	return out
}

// Analyzer returns the loaded analyzer of kind k.
func (l *Loader) Analyzer(k metrics.Kind) (metrics.Analyzer, bool) {
	a, ok := l.instances[k]
	return a, ok
}

// AddListener registers listener with every analyzer that publishes events.
func (l *Loader) AddListener(listener metrics.Listener) {
	for _, a := range l.All() {
		if la, ok := a.(metrics.ListenerAware); ok {
			la.AddListener(listener)
		}
	}
}

// Run analyzes pkgs with every loaded analyzer in dependency order.
// Analyzers that already ran are not re-run.
func (l *Loader) Run(ctx context.Context, pkgs []*code.Package) error {
	for _, a := range l.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.Analyze(pkgs); err != nil {
			return fmt.Errorf("%s analyzer: %w", a.Kind(), err)
		}
	}
	return nil
}

// NodeMetrics merges the records of every node aware analyzer for n.
func (l *Loader) NodeMetrics(n code.Node) metrics.Record {
	out := metrics.Record{}
	for _, a := range l.All() {
		if na, ok := a.(metrics.NodeAware); ok {
			out.Merge(na.NodeMetrics(n))
		}
	}
	return out
}

// AllNodeMetrics merges every node aware analyzer's records by node ID.
func (l *Loader) AllNodeMetrics() map[string]metrics.Record {
	out := make(map[string]metrics.Record)
	for _, a := range l.All() {
		na, ok := a.(metrics.NodeAware)
		if !ok {
			continue
		}
		for id, r := range na.AllNodeMetrics() {
			if _, ok := out[id]; !ok {
				out[id] = metrics.Record{}
			}
			out[id].Merge(r)
		}
	}
	return out
}

// ProjectMetrics merges every project aware analyzer's totals.
func (l *Loader) ProjectMetrics() metrics.Record {
	out := metrics.Record{}
	for _, a := range l.All() {
		if pa, ok := a.(metrics.ProjectAware); ok {
			out.Merge(pa.ProjectMetrics())
		}
	}
	return out
}
