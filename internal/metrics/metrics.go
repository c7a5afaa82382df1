// Package metrics provides the analyzer contracts, metric records and stores
// shared by all axon-metrics analyzers.
//
// Each analyzer owns a Store keyed by code model node ID. Aggregating
// analyzers declare the analyzer kinds they require and are wired with
// concrete instances before Analyze runs; a missing or surplus dependency is
// a ConfigError, never a silent fallback.
package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Benny93/axon-metrics/internal/code"
)

// Precision is the number of decimal places ratios are rounded to.
const Precision int32 = 12

// Kind identifies an analyzer implementation.
type Kind string

const (
	KindCyclomaticComplexity Kind = "ccn"
	KindNodeCount            Kind = "nodecount"
	KindClassLevel           Kind = "classlevel"
	KindCohesion             Kind = "cohesion"
	KindDependency           Kind = "dependency"
)

// AllKinds lists every analyzer kind in dependency order.
var AllKinds = []Kind{
	KindCyclomaticComplexity,
	KindNodeCount,
	KindClassLevel,
	KindCohesion,
	KindDependency,
}

// Label returns the human readable analyzer name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindCyclomaticComplexity:
		return "cc"
	case KindNodeCount:
		return "node count"
	case KindClassLevel:
		return "class level"
	case KindCohesion:
		return "cohesion"
	case KindDependency:
		return "dependency"
	default:
		return string(k)
	}
}

// ParseKind resolves a kind from its name.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range AllKinds {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Record maps metric names to values for one node.
type Record map[string]decimal.Decimal

// Value returns the named value, or zero when absent.
func (r Record) Value(name string) decimal.Decimal {
	return r[name]
}

// Int returns the integer part of the named value, or 0 when absent.
func (r Record) Int(name string) int64 {
	return r[name].IntPart()
}

// Float returns the named value as float64.
func (r Record) Float(name string) float64 {
	f, _ := r[name].Float64()
	return f
}

// Clone returns a copy of the record. The copy of a nil record is empty.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the metric names of r in order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every value of other into r.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}

// Int64 wraps an integer metric value.
func Int64(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Ratio returns num/den rounded to Precision places, or 0 when den is 0.
func Ratio(num, den int64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), Precision)
}

// Analyzer computes metrics over a code model.
type Analyzer interface {
	// Kind returns the analyzer kind.
	Kind() Kind

	// Analyze traverses pkgs and populates the analyzer's store. Calling it
	// again on a populated analyzer is a no-op.
	Analyze(pkgs []*code.Package) error
}

// AggregateAnalyzer is an analyzer that consumes the results of others.
type AggregateAnalyzer interface {
	Analyzer

	// RequiredAnalyzers returns the analyzer kinds that must be wired.
	RequiredAnalyzers() []Kind

	// AddAnalyzer wires a required analyzer. It fails immediately when the
	// analyzer's kind is not required.
	AddAnalyzer(a Analyzer) error
}

// NodeAware is the capability of exposing per-node metric records.
type NodeAware interface {
	Analyzer

	// NodeMetrics returns the record for n, empty when n was not analyzed.
	NodeMetrics(n code.Node) Record

	// AllNodeMetrics returns every record keyed by node ID.
	AllNodeMetrics() map[string]Record
}

// ProjectAware is the capability of exposing project level totals.
type ProjectAware interface {
	Analyzer

	// ProjectMetrics returns the aggregate record of the whole analysis.
	ProjectMetrics() Record
}
