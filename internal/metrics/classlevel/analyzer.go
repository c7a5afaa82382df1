// Package classlevel computes per-class object oriented metrics, including
// aggregates that follow the inheritance chain.
//
// A class's parent is always analyzed before the class itself, so results
// do not depend on the order classes appear in the input. Interfaces are
// skipped and have an empty record.
package classlevel

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Metric names.
const (
	MetricImplementedInterfaces = "impl"
	MetricClassInterfaceSize    = "cis"
	MetricClassSize             = "csz"
	MetricProperties            = "vars"
	MetricPropertiesInherit     = "varsi"
	MetricPropertiesNonPrivate  = "varsnp"
	MetricWeightedMethods       = "wmc"
	MetricWeightedMethodsInh    = "wmci"
	MetricWeightedMethodsNonPri = "wmcnp"
	MetricPublicMethods         = "nopm"
	MetricProtectedMembers      = "nprotm"
	MetricBaseOverridingRatio   = "bovr"
	MetricBaseUsageRatio        = "bur"
	MetricPNAS                  = "pnas"
	MetricNewServices           = "nnas"
)

// aggregated lists the metrics summed per package and per project.
var aggregated = []string{
	MetricWeightedMethods,
	MetricClassSize,
	MetricClassInterfaceSize,
	MetricProperties,
	MetricPublicMethods,
}

// Complexity supplies the per-method complexity used as method weight.
type Complexity interface {
	metrics.Analyzer

	// CCN2 returns the extended cyclomatic complexity of a method.
	CCN2(n code.Node) int64
}

// Analyzer computes class level metrics.
type Analyzer struct {
	code.NopVisitor
	metrics.Events

	store *metrics.Store
	cc    Complexity

	// accessed collects, per class, member names reached through a
	// self reference in the class's own method bodies.
	accessed map[string]*accessSet
}

type accessSet struct {
	properties map[string]bool
	methods    map[string]bool
}

// New creates a class level analyzer. It must be wired with a complexity
// analyzer before Analyze.
func New() *Analyzer {
	return &Analyzer{store: metrics.NewStore()}
}

// Kind implements metrics.Analyzer.
func (a *Analyzer) Kind() metrics.Kind { return metrics.KindClassLevel }

// RequiredAnalyzers implements metrics.AggregateAnalyzer.
func (a *Analyzer) RequiredAnalyzers() []metrics.Kind {
	return []metrics.Kind{metrics.KindCyclomaticComplexity}
}

// AddAnalyzer implements metrics.AggregateAnalyzer.
func (a *Analyzer) AddAnalyzer(an metrics.Analyzer) error {
	if cc, ok := an.(Complexity); ok && an.Kind() == metrics.KindCyclomaticComplexity {
		a.cc = cc
		return nil
	}
	return metrics.Unexpected(a.Kind(), an, a.RequiredAnalyzers()...)
}

// Analyze implements metrics.Analyzer.
func (a *Analyzer) Analyze(pkgs []*code.Package) error {
	if a.store.Populated() {
		return nil
	}
	if a.cc == nil {
		return metrics.Missing(a.Kind(), metrics.KindCyclomaticComplexity)
	}

	a.FireStart(a)
	if err := a.cc.Analyze(pkgs); err != nil {
		return err
	}

	a.store.Init()
	a.accessed = make(map[string]*accessSet)
	code.Walk(a, pkgs)
	a.aggregatePackages(pkgs)
	a.accessed = nil
	a.FireEnd(a)
	return nil
}

// PropertyCount returns the number of own properties of t.
func (a *Analyzer) PropertyCount(t *code.Type) int64 {
	return a.store.Get(t.ID()).Int(MetricProperties)
}

// NodeMetrics implements metrics.NodeAware.
func (a *Analyzer) NodeMetrics(n code.Node) metrics.Record {
	return a.store.Get(n.ID())
}

// AllNodeMetrics implements metrics.NodeAware.
func (a *Analyzer) AllNodeMetrics() map[string]metrics.Record {
	return a.store.All()
}

// ProjectMetrics implements metrics.ProjectAware by summing the package
// aggregates.
func (a *Analyzer) ProjectMetrics() metrics.Record {
	out := metrics.Record{}
	for id, r := range a.store.All() {
		if !isPackageID(id) {
			continue
		}
		for _, name := range aggregated {
			out[name] = out[name].Add(r[name])
		}
	}
	return out
}

func (a *Analyzer) VisitPackage(p *code.Package) {
	code.VisitTypes(a, p)
}

func (a *Analyzer) VisitClass(t *code.Type) {
	if a.store.Has(t.ID()) {
		return
	}

	parent := analyzableParent(t)
	if parent != nil {
		parent.Accept(a)
	}

	a.accessed[t.ID()] = &accessSet{
		properties: make(map[string]bool),
		methods:    make(map[string]bool),
	}

	pnas, nnas := a.pnas(t)
	a.store.Put(t.ID(), metrics.Record{
		MetricImplementedInterfaces: metrics.Int64(int64(len(t.Interfaces()))),
		MetricClassInterfaceSize:    metrics.Int64(0),
		MetricClassSize:             metrics.Int64(0),
		MetricProperties:            metrics.Int64(0),
		MetricPropertiesInherit:     metrics.Int64(a.varsi(t)),
		MetricPropertiesNonPrivate:  metrics.Int64(0),
		MetricProtectedMembers:      metrics.Int64(0),
		MetricPublicMethods:         metrics.Int64(0),
		MetricWeightedMethods:       metrics.Int64(0),
		MetricWeightedMethodsInh:    metrics.Int64(a.wmci(t)),
		MetricWeightedMethodsNonPri: metrics.Int64(0),
		MetricBaseOverridingRatio:   a.bovr(t),
		MetricBaseUsageRatio:        metrics.Int64(0),
		MetricPNAS:                  pnas,
		MetricNewServices:           metrics.Int64(nnas),
	})

	code.VisitMembers(a, t)

	var nprotm, used int64
	if parent != nil {
		nprotm = a.store.Get(parent.ID()).Int(MetricProtectedMembers)
		used = a.baseClassUsage(t, parent)
	}
	a.store.Set(t.ID(), MetricBaseUsageRatio, metrics.Ratio(used, nprotm))
}

// VisitInterface is intentionally empty: interfaces get no class metrics.
func (a *Analyzer) VisitInterface(*code.Type) {}

func (a *Analyzer) VisitMethod(m *code.Method) {
	id := m.Parent().ID()
	ccn := metrics.Int64(a.cc.CCN2(m))

	a.store.Add(id, MetricWeightedMethods, ccn)
	a.store.Add(id, MetricClassSize, ccn)

	if m.IsProtected() {
		a.store.Inc(id, MetricProtectedMembers)
	}
	if m.IsPublic() {
		a.store.Add(id, MetricWeightedMethodsNonPri, ccn)
		a.store.Add(id, MetricClassInterfaceSize, ccn)
		a.store.Inc(id, MetricPublicMethods)
	}

	if set, ok := a.accessed[id]; ok {
		collectSelfAccesses(m.Body(), set)
	}
}

func (a *Analyzer) VisitProperty(p *code.Property) {
	id := p.Parent().ID()

	a.store.Inc(id, MetricProperties)
	a.store.Inc(id, MetricClassSize)

	if p.IsProtected() {
		a.store.Inc(id, MetricProtectedMembers)
	}
	if p.IsPublic() {
		a.store.Inc(id, MetricPropertiesNonPrivate)
		a.store.Inc(id, MetricClassInterfaceSize)
	}
}

// analyzableParent returns the parent of t when it is a class with source.
func analyzableParent(t *code.Type) *code.Type {
	p := t.Parent()
	if p == nil || p.IsInterface() || p.Package() == nil || p.Package().External() {
		return nil
	}
	return p
}

// varsi counts own property names plus the non-private property names of
// every ancestor; a name is counted once, at the closest level.
func (a *Analyzer) varsi(t *code.Type) int64 {
	names := make(map[string]bool)
	for _, p := range t.Properties() {
		names[p.Name()] = true
	}
	for _, anc := range t.Ancestors() {
		for _, p := range anc.Properties() {
			if !p.IsPrivate() && !names[p.Name()] {
				names[p.Name()] = true
			}
		}
	}
	return int64(len(names))
}

// wmci sums complexity per distinct method name, taking the nearest
// definition along the inheritance chain.
func (a *Analyzer) wmci(t *code.Type) int64 {
	ccn := make(map[string]int64)
	for _, m := range t.Methods() {
		ccn[m.Name()] = a.cc.CCN2(m)
	}
	for _, anc := range t.Ancestors() {
		for _, m := range anc.Methods() {
			if _, seen := ccn[m.Name()]; !seen && !m.IsPrivate() {
				ccn[m.Name()] = a.cc.CCN2(m)
			}
		}
	}

	var sum int64
	for _, v := range ccn {
		sum += v
	}
	return sum
}

func eligibleForOverride(t *code.Type, m *code.Method) bool {
	return !m.IsAbstract() && !m.IsStatic() && !m.IsConstructor() && m.Name() != t.Name()
}

func eligibleService(t *code.Type, m *code.Method) bool {
	return !m.IsStatic() && !m.IsConstructor() && m.Name() != t.Name()
}

// bovr is the share of the parent's eligible methods that t overrides.
func (a *Analyzer) bovr(t *code.Type) decimal.Decimal {
	own := make(map[string]bool)
	for _, m := range t.Methods() {
		if eligibleForOverride(t, m) {
			own[m.Name()] = true
		}
	}
	parent := t.Parent()
	if len(own) == 0 || parent == nil {
		return metrics.Int64(0)
	}

	var base, overridden int64
	for _, m := range parent.Methods() {
		if !eligibleForOverride(parent, m) {
			continue
		}
		base++
		if own[m.Name()] {
			overridden++
		}
	}
	return metrics.Ratio(overridden, base)
}

// pnas returns the percentage and number of methods that t adds on top of
// the services of its parent. A root class has no inherited services.
func (a *Analyzer) pnas(t *code.Type) (decimal.Decimal, int64) {
	inherited := make(map[string]bool)
	if parent := t.Parent(); parent != nil {
		for _, m := range parent.Methods() {
			if eligibleService(parent, m) {
				inherited[m.Name()] = true
			}
		}
	}

	services := int64(len(inherited))
	var added int64
	for _, m := range t.Methods() {
		if eligibleService(t, m) && !inherited[m.Name()] {
			services++
			added++
		}
	}
	return metrics.Ratio(added, services), added
}

// baseClassUsage counts protected members of parent that t's own method
// bodies reach through a self reference.
func (a *Analyzer) baseClassUsage(t, parent *code.Type) int64 {
	set := a.accessed[t.ID()]
	if set == nil {
		return 0
	}

	var used int64
	for _, m := range parent.Methods() {
		if m.IsProtected() && set.methods[m.Name()] {
			used++
		}
	}
	for _, p := range parent.Properties() {
		if p.IsProtected() && set.properties[p.Name()] {
			used++
		}
	}
	return used
}

// collectSelfAccesses records the property and method postfixes that are
// direct children of a self reference's parent node. Indirect accesses are
// not counted.
func collectSelfAccesses(body *code.ASTNode, set *accessSet) {
	if body == nil {
		return
	}
	for _, ref := range body.FindChildrenOfKind(code.ASTSelfReference) {
		parent := ref.Parent()
		if parent == nil {
			continue
		}
		for _, p := range parent.DirectChildrenOfKind(code.ASTPropertyPostfix) {
			set.properties[p.Image()] = true
		}
		for _, m := range parent.DirectChildrenOfKind(code.ASTMethodPostfix) {
			set.methods[m.Image()] = true
		}
	}
}

// aggregatePackages sums the class records of each package into a package
// record.
func (a *Analyzer) aggregatePackages(pkgs []*code.Package) {
	for _, p := range pkgs {
		sum := metrics.Record{}
		for _, name := range aggregated {
			sum[name] = metrics.Int64(0)
		}
		for _, t := range p.Classes() {
			r := a.store.Get(t.ID())
			for _, name := range aggregated {
				sum[name] = sum[name].Add(r[name])
			}
		}
		a.store.Put(p.ID(), sum)
	}
}

func isPackageID(id string) bool {
	return strings.HasPrefix(id, string(code.KindPackage)+":")
}
