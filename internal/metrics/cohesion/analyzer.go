// Package cohesion computes method/property cohesion metrics per class:
// LCOM in the Chidamber-Kemerer, Henderson-Sellers and connectivity graph
// forms, and tight class cohesion.
//
// A method is connected to a property when its body accesses the property
// through a self reference, directly or through calls to other own methods.
package cohesion

import (
	"github.com/shopspring/decimal"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Metric names.
const (
	MetricLCOMCK = "lcom_ck"
	MetricLCOMHS = "lcom_hs"
	MetricLCOMCG = "lcom_cg"
	MetricTCC    = "tcc"
)

// MethodCounter supplies own method counts per type.
type MethodCounter interface {
	metrics.Analyzer
	MethodCount(t *code.Type) int64
}

// PropertyCounter supplies own property counts per type.
type PropertyCounter interface {
	metrics.Analyzer
	PropertyCount(t *code.Type) int64
}

// Analyzer computes cohesion metrics.
type Analyzer struct {
	code.NopVisitor
	metrics.Events

	store      *metrics.Store
	nodeCount  MethodCounter
	classLevel PropertyCounter
}

// New creates a cohesion analyzer. It must be wired with a class level and a
// node count analyzer before Analyze.
func New() *Analyzer {
	return &Analyzer{store: metrics.NewStore()}
}

// Kind implements metrics.Analyzer.
func (a *Analyzer) Kind() metrics.Kind { return metrics.KindCohesion }

// RequiredAnalyzers implements metrics.AggregateAnalyzer.
func (a *Analyzer) RequiredAnalyzers() []metrics.Kind {
	return []metrics.Kind{metrics.KindClassLevel, metrics.KindNodeCount}
}

// AddAnalyzer implements metrics.AggregateAnalyzer.
func (a *Analyzer) AddAnalyzer(an metrics.Analyzer) error {
	switch an.Kind() {
	case metrics.KindClassLevel:
		if pc, ok := an.(PropertyCounter); ok {
			a.classLevel = pc
			return nil
		}
	case metrics.KindNodeCount:
		if mc, ok := an.(MethodCounter); ok {
			a.nodeCount = mc
			return nil
		}
	}
	return metrics.Unexpected(a.Kind(), an, a.RequiredAnalyzers()...)
}

// Analyze implements metrics.Analyzer.
func (a *Analyzer) Analyze(pkgs []*code.Package) error {
	if a.store.Populated() {
		return nil
	}
	if a.classLevel == nil {
		return metrics.Missing(a.Kind(), metrics.KindClassLevel)
	}
	if a.nodeCount == nil {
		return metrics.Missing(a.Kind(), metrics.KindNodeCount)
	}

	a.FireStart(a)
	if err := a.nodeCount.Analyze(pkgs); err != nil {
		return err
	}
	if err := a.classLevel.Analyze(pkgs); err != nil {
		return err
	}

	a.store.Init()
	code.Walk(a, pkgs)
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

func (a *Analyzer) VisitPackage(p *code.Package) {
	code.VisitTypes(a, p)
}

func (a *Analyzer) VisitClass(t *code.Type) {
	m := a.nodeCount.MethodCount(t)
	p := a.classLevel.PropertyCount(t)

	if m < 2 || p == 0 {
		a.store.Put(t.ID(), zeroRecord())
		return
	}

	g := newAccessGraph(t)
	edges := g.edges()
	mp := m * p

	a.store.Put(t.ID(), metrics.Record{
		MetricLCOMCK: metrics.Int64(int64(g.components() - 1)),
		MetricLCOMHS: metrics.Ratio(mp-edges, mp),
		MetricLCOMCG: clamp(metrics.Ratio(mp-edges, mp-(m-1))),
		MetricTCC:    metrics.Ratio(g.connectedPairs(), m*(m-1)/2),
	})
}

func zeroRecord() metrics.Record {
	return metrics.Record{
		MetricLCOMCK: metrics.Int64(0),
		MetricLCOMHS: metrics.Int64(0),
		MetricLCOMCG: metrics.Int64(0),
		MetricTCC:    metrics.Int64(0),
	}
}

var one = decimal.NewFromInt(1)

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}

// accessGraph relates the own methods of a type to the own properties they
// reach, closed over calls between own methods.
type accessGraph struct {
	methods  []string
	accesses map[string]map[string]bool
}

func newAccessGraph(t *code.Type) *accessGraph {
	props := make(map[string]bool, len(t.Properties()))
	for _, p := range t.Properties() {
		props[p.Name()] = true
	}
	own := make(map[string]bool, len(t.Methods()))
	for _, m := range t.Methods() {
		own[m.Name()] = true
	}

	direct := make(map[string]map[string]bool)
	calls := make(map[string]map[string]bool)
	var names []string
	for _, m := range t.Methods() {
		names = append(names, m.Name())
		direct[m.Name()] = make(map[string]bool)
		calls[m.Name()] = make(map[string]bool)

		collect(m.Body(), code.ASTPropertyPostfix, props, direct[m.Name()])
		collect(m.Body(), code.ASTMethodPostfix, own, calls[m.Name()])
	}

	g := &accessGraph{methods: names, accesses: make(map[string]map[string]bool)}
	for _, name := range names {
		reached := make(map[string]bool)
		seen := map[string]bool{name: true}
		queue := []string{name}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for p := range direct[cur] {
				reached[p] = true
			}
			for callee := range calls[cur] {
				if !seen[callee] {
					seen[callee] = true
					queue = append(queue, callee)
				}
			}
		}
		g.accesses[name] = reached
	}
	return g
}

// collect adds the images of kind nodes that directly follow a self
// reference and are listed in allowed.
func collect(body *code.ASTNode, kind code.ASTKind, allowed, into map[string]bool) {
	if body == nil {
		return
	}
	for _, ref := range body.FindChildrenOfKind(code.ASTSelfReference) {
		parent := ref.Parent()
		if parent == nil {
			continue
		}
		for _, n := range parent.DirectChildrenOfKind(kind) {
			if allowed[n.Image()] {
				into[n.Image()] = true
			}
		}
	}
}

func (g *accessGraph) edges() int64 {
	var e int64
	for _, m := range g.methods {
		e += int64(len(g.accesses[m]))
	}
	return e
}

func (g *accessGraph) shares(a, b string) bool {
	for p := range g.accesses[a] {
		if g.accesses[b][p] {
			return true
		}
	}
	return false
}

func (g *accessGraph) connectedPairs() int64 {
	var n int64
	for i := 0; i < len(g.methods); i++ {
		for j := i + 1; j < len(g.methods); j++ {
			if g.shares(g.methods[i], g.methods[j]) {
				n++
			}
		}
	}
	return n
}

// components counts groups of methods linked by shared properties.
func (g *accessGraph) components() int {
	parent := make([]int, len(g.methods))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i := 0; i < len(g.methods); i++ {
		for j := i + 1; j < len(g.methods); j++ {
			if g.shares(g.methods[i], g.methods[j]) {
				parent[find(i)] = find(j)
			}
		}
	}

	roots := make(map[int]bool)
	for i := range g.methods {
		roots[find(i)] = true
	}
	return len(roots)
}
