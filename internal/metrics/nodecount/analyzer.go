// Package nodecount counts structural nodes per package, per type and for
// the whole project.
package nodecount

import (
	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Metric names.
const (
	MetricPackages   = "nop"
	MetricClasses    = "noc"
	MetricInterfaces = "noi"
	MetricMethods    = "nom"
	MetricFunctions  = "nof"
)

// Analyzer counts packages, classes, interfaces, methods and functions.
type Analyzer struct {
	code.NopVisitor
	metrics.Events

	store   *metrics.Store
	project struct {
		nop, noc, noi, nom, nof int64
	}
}

// New creates a node count analyzer.
func New() *Analyzer {
	return &Analyzer{store: metrics.NewStore()}
}

// Kind implements metrics.Analyzer.
func (a *Analyzer) Kind() metrics.Kind { return metrics.KindNodeCount }

// Analyze implements metrics.Analyzer.
func (a *Analyzer) Analyze(pkgs []*code.Package) error {
	if a.store.Populated() {
		return nil
	}
	a.FireStart(a)
	a.store.Init()
	code.Walk(a, pkgs)
	a.FireEnd(a)
	return nil
}

// MethodCount returns the number of own methods of t.
func (a *Analyzer) MethodCount(t *code.Type) int64 {
	return a.store.Get(t.ID()).Int(MetricMethods)
}

// NodeMetrics implements metrics.NodeAware.
func (a *Analyzer) NodeMetrics(n code.Node) metrics.Record {
	return a.store.Get(n.ID())
}

// AllNodeMetrics implements metrics.NodeAware.
func (a *Analyzer) AllNodeMetrics() map[string]metrics.Record {
	return a.store.All()
}

// ProjectMetrics implements metrics.ProjectAware.
func (a *Analyzer) ProjectMetrics() metrics.Record {
	return metrics.Record{
		MetricPackages:   metrics.Int64(a.project.nop),
		MetricClasses:    metrics.Int64(a.project.noc),
		MetricInterfaces: metrics.Int64(a.project.noi),
		MetricMethods:    metrics.Int64(a.project.nom),
		MetricFunctions:  metrics.Int64(a.project.nof),
	}
}

func (a *Analyzer) VisitPackage(p *code.Package) {
	a.project.nop++
	a.store.Put(p.ID(), metrics.Record{
		MetricClasses:    metrics.Int64(0),
		MetricInterfaces: metrics.Int64(0),
		MetricMethods:    metrics.Int64(0),
		MetricFunctions:  metrics.Int64(0),
	})
	code.VisitTypes(a, p)
	code.VisitFunctions(a, p)
}

func (a *Analyzer) VisitClass(t *code.Type) {
	a.project.noc++
	a.store.Inc(t.Package().ID(), MetricClasses)
	a.visitType(t)
}

func (a *Analyzer) VisitInterface(t *code.Type) {
	a.project.noi++
	a.store.Inc(t.Package().ID(), MetricInterfaces)
	a.visitType(t)
}

func (a *Analyzer) visitType(t *code.Type) {
	a.store.Put(t.ID(), metrics.Record{MetricMethods: metrics.Int64(0)})
	code.VisitMembers(a, t)
}

func (a *Analyzer) VisitMethod(m *code.Method) {
	a.project.nom++
	a.store.Inc(m.Parent().ID(), MetricMethods)
	a.store.Inc(m.Parent().Package().ID(), MetricMethods)
}

func (a *Analyzer) VisitFunction(f *code.Function) {
	a.project.nof++
	a.store.Inc(f.Package().ID(), MetricFunctions)
}
