// Package dependency computes package coupling metrics: efferent and
// afferent coupling, abstractness, instability, distance from the main
// sequence, and membership in package dependency cycles.
package dependency

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Metric names.
const (
	MetricTotalTypes   = "tc"
	MetricConcrete     = "cc"
	MetricAbstract     = "ac"
	MetricEfferent     = "ce"
	MetricAfferent     = "ca"
	MetricAbstractness = "a"
	MetricInstability  = "i"
	MetricDistance     = "d"
	MetricCyclic       = "cyclic"
)

// Analyzer computes package level coupling.
type Analyzer struct {
	code.NopVisitor
	metrics.Events

	store *metrics.Store

	packages  map[string]*code.Package
	efferent  map[string]map[string]bool
	afferent  map[string]map[string]bool
	abstracts map[string]int64
	concretes map[string]int64
	cycles    [][]*code.Package
}

// New creates a dependency analyzer.
func New() *Analyzer {
	return &Analyzer{store: metrics.NewStore()}
}

// Kind implements metrics.Analyzer.
func (a *Analyzer) Kind() metrics.Kind { return metrics.KindDependency }

// Analyze implements metrics.Analyzer.
func (a *Analyzer) Analyze(pkgs []*code.Package) error {
	if a.store.Populated() {
		return nil
	}
	a.FireStart(a)

	a.packages = make(map[string]*code.Package)
	a.efferent = make(map[string]map[string]bool)
	a.afferent = make(map[string]map[string]bool)
	a.abstracts = make(map[string]int64)
	a.concretes = make(map[string]int64)

	a.store.Init()
	code.Walk(a, pkgs)
	a.findCycles()
	a.calculate()

	a.FireEnd(a)
	return nil
}

// NodeMetrics implements metrics.NodeAware.
func (a *Analyzer) NodeMetrics(n code.Node) metrics.Record {
	return a.store.Get(n.ID())
}

// AllNodeMetrics implements metrics.NodeAware.
func (a *Analyzer) AllNodeMetrics() map[string]metrics.Record {
	return a.store.All()
}

// Packages returns every package with a record, external ones included,
// sorted by path.
func (a *Analyzer) Packages() []*code.Package {
	out := make([]*code.Package, 0, len(a.packages))
	for _, p := range a.packages {
		out = append(out, p)
	}
	sortPackages(out)
	return out
}

// DependsUpon returns the packages p depends on, sorted by path.
func (a *Analyzer) DependsUpon(p *code.Package) []*code.Package {
	return a.lookup(a.efferent[p.ID()])
}

// UsedBy returns the packages depending on p, sorted by path.
func (a *Analyzer) UsedBy(p *code.Package) []*code.Package {
	return a.lookup(a.afferent[p.ID()])
}

// Cycles returns the package dependency cycles, each sorted by path.
func (a *Analyzer) Cycles() [][]*code.Package {
	return a.cycles
}

func (a *Analyzer) lookup(ids map[string]bool) []*code.Package {
	out := make([]*code.Package, 0, len(ids))
	for id := range ids {
		out = append(out, a.packages[id])
	}
	sortPackages(out)
	return out
}

func sortPackages(pkgs []*code.Package) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Path() < pkgs[j].Path() })
}

func (a *Analyzer) VisitPackage(p *code.Package) {
	a.register(p)
	code.VisitTypes(a, p)
	code.VisitFunctions(a, p)
}

func (a *Analyzer) VisitClass(t *code.Type)     { a.visitType(t) }
func (a *Analyzer) VisitInterface(t *code.Type) { a.visitType(t) }

func (a *Analyzer) visitType(t *code.Type) {
	pkg := t.Package()
	if t.Abstract() {
		a.abstracts[pkg.ID()]++
	} else {
		a.concretes[pkg.ID()]++
	}

	if t.Parent() != nil {
		a.couple(pkg, t.Parent())
	}
	for _, iface := range t.Interfaces() {
		a.couple(pkg, iface)
	}
	for _, dep := range t.Dependencies() {
		a.couple(pkg, dep)
	}
	for _, p := range t.Properties() {
		if p.Type() != nil {
			a.couple(pkg, p.Type())
		}
	}
	code.VisitMembers(a, t)
}

func (a *Analyzer) VisitMethod(m *code.Method) {
	for _, dep := range m.Dependencies() {
		a.couple(m.Parent().Package(), dep)
	}
}

func (a *Analyzer) VisitFunction(f *code.Function) {
	for _, dep := range f.Dependencies() {
		a.couple(f.Package(), dep)
	}
}

func (a *Analyzer) register(p *code.Package) {
	if _, ok := a.packages[p.ID()]; ok {
		return
	}
	a.packages[p.ID()] = p
	a.efferent[p.ID()] = make(map[string]bool)
	a.afferent[p.ID()] = make(map[string]bool)
}

// couple records that pkg depends on the package declaring dep.
func (a *Analyzer) couple(pkg *code.Package, dep *code.Type) {
	target := dep.Package()
	if target == nil || target == pkg {
		return
	}
	a.register(pkg)
	a.register(target)
	a.efferent[pkg.ID()][target.ID()] = true
	a.afferent[target.ID()][pkg.ID()] = true
}

func (a *Analyzer) findCycles() {
	ids := make([]string, 0, len(a.packages))
	for id := range a.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int64, len(ids))
	g := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for _, from := range ids {
		for to := range a.efferent[from] {
			g.SetEdge(simple.Edge{F: simple.Node(index[from]), T: simple.Node(index[to])})
		}
	}

	a.cycles = nil
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		cycle := make([]*code.Package, 0, len(scc))
		for _, n := range scc {
			cycle = append(cycle, a.packages[ids[n.ID()]])
		}
		sortPackages(cycle)
		a.cycles = append(a.cycles, cycle)
	}
	sort.Slice(a.cycles, func(i, j int) bool {
		return a.cycles[i][0].Path() < a.cycles[j][0].Path()
	})
}

func (a *Analyzer) calculate() {
	cyclic := make(map[string]bool)
	for _, cycle := range a.cycles {
		for _, p := range cycle {
			cyclic[p.ID()] = true
		}
	}

	for id := range a.packages {
		ac, cc := a.abstracts[id], a.concretes[id]
		ce, ca := int64(len(a.efferent[id])), int64(len(a.afferent[id]))

		abstractness := metrics.Ratio(ac, ac+cc)
		instability := metrics.Ratio(ce, ce+ca)
		distance := abstractness.Add(instability).Sub(metrics.Int64(1)).Abs()

		r := metrics.Record{
			MetricTotalTypes:   metrics.Int64(ac + cc),
			MetricConcrete:     metrics.Int64(cc),
			MetricAbstract:     metrics.Int64(ac),
			MetricEfferent:     metrics.Int64(ce),
			MetricAfferent:     metrics.Int64(ca),
			MetricAbstractness: abstractness,
			MetricInstability:  instability,
			MetricDistance:     distance,
			MetricCyclic:       metrics.Int64(0),
		}
		if cyclic[id] {
			r[MetricCyclic] = metrics.Int64(1)
		}
		a.store.Put(id, r)
	}
}
