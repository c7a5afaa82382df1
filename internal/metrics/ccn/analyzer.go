// Package ccn computes the cyclomatic complexity of methods and functions.
//
// ccn counts decision points: if, for/range, and every non-default case or
// comm clause. ccn2 (extended complexity) additionally counts the boolean
// operators && and ||.
package ccn

import (
	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Metric names.
const (
	MetricCCN  = "ccn"
	MetricCCN2 = "ccn2"
)

// Analyzer records ccn and ccn2 per callable.
type Analyzer struct {
	code.NopVisitor
	metrics.Events

	store *metrics.Store
	ccn   int64
	ccn2  int64
}

// New creates a cyclomatic complexity analyzer.
func New() *Analyzer {
	return &Analyzer{store: metrics.NewStore()}
}

// Kind implements metrics.Analyzer.
func (a *Analyzer) Kind() metrics.Kind { return metrics.KindCyclomaticComplexity }

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

// CCN returns the cyclomatic complexity of a method or function, 0 when it
// was not analyzed.
func (a *Analyzer) CCN(n code.Node) int64 {
	return a.store.Get(n.ID()).Int(MetricCCN)
}

// CCN2 returns the extended cyclomatic complexity of a method or function,
// 0 when it was not analyzed.
func (a *Analyzer) CCN2(n code.Node) int64 {
	return a.store.Get(n.ID()).Int(MetricCCN2)
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
		MetricCCN:  metrics.Int64(a.ccn),
		MetricCCN2: metrics.Int64(a.ccn2),
	}
}

func (a *Analyzer) VisitPackage(p *code.Package) {
	code.VisitTypes(a, p)
	code.VisitFunctions(a, p)
}

func (a *Analyzer) VisitClass(t *code.Type)     { code.VisitMembers(a, t) }
func (a *Analyzer) VisitInterface(t *code.Type) { code.VisitMembers(a, t) }

func (a *Analyzer) VisitMethod(m *code.Method)     { a.calculate(m, m.Body()) }
func (a *Analyzer) VisitFunction(f *code.Function) { a.calculate(f, f.Body()) }

func (a *Analyzer) calculate(n code.Node, body *code.ASTNode) {
	ccn, ccn2 := Complexity(body)

	a.store.Put(n.ID(), metrics.Record{
		MetricCCN:  metrics.Int64(ccn),
		MetricCCN2: metrics.Int64(ccn2),
	})
	a.ccn += ccn
	a.ccn2 += ccn2
}

// Complexity computes ccn and ccn2 of a body. A nil body has complexity 1.
func Complexity(body *code.ASTNode) (ccn, ccn2 int64) {
	ccn = 1
	if body == nil {
		return ccn, ccn
	}
	counts := body.CountKinds()
	ccn += int64(counts[code.ASTIfStatement] + counts[code.ASTForStatement])

	for _, kind := range []code.ASTKind{code.ASTSwitchCase, code.ASTCommClause} {
		for _, c := range body.FindChildrenOfKind(kind) {
			if c.Image() != "default" {
				ccn++
			}
		}
		if body.Kind() == kind && body.Image() != "default" {
			ccn++
		}
	}

	ccn2 = ccn + int64(counts[code.ASTLogicalAnd]+counts[code.ASTLogicalOr])
	return ccn, ccn2
}
