package report

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/metrics/dependency"
)

// DependencyResult is the capability the JDepend writer reports.
type DependencyResult interface {
	metrics.NodeAware
	Packages() []*code.Package
	DependsUpon(p *code.Package) []*code.Package
	UsedBy(p *code.Package) []*code.Package
	Cycles() [][]*code.Package
}

var _ DependencyResult = (*dependency.Analyzer)(nil)

// JDependXML writes package dependency metrics in the JDepend XML format.
type JDependXML struct {
	result DependencyResult
}

// NewJDependXML creates a JDepend XML writer.
func NewJDependXML() *JDependXML { return &JDependXML{} }

// Format implements Writer.
func (j *JDependXML) Format() string { return FormatJDependXML }

// Accept implements Writer. Only the dependency analyzer is accepted.
func (j *JDependXML) Accept(a metrics.Analyzer) error {
	dr, ok := a.(DependencyResult)
	if !ok || a.Kind() != metrics.KindDependency {
		return fmt.Errorf("%w: %s requires the %s analyzer, got %s",
			ErrAnalyzerNotAccepted, FormatJDependXML, metrics.KindDependency.Label(), a.Kind().Label())
	}
	j.result = dr
	return nil
}

type jdependDoc struct {
	XMLName  xml.Name         `xml:"JDepend"`
	Packages []jdependPackage `xml:"Packages>Package"`
	Cycles   []jdependCycle   `xml:"Cycles>Package"`
}

type jdependPackage struct {
	Name            string         `xml:"name,attr"`
	Stats           *jdependStats  `xml:"Stats,omitempty"`
	AbstractClasses []jdependClass `xml:"AbstractClasses>Class"`
	ConcreteClasses []jdependClass `xml:"ConcreteClasses>Class"`
	DependsUpon     []string       `xml:"DependsUpon>Package"`
	UsedBy          []string       `xml:"UsedBy>Package"`
}

type jdependStats struct {
	TotalClasses    string `xml:"TotalClasses"`
	ConcreteClasses string `xml:"ConcreteClasses"`
	AbstractClasses string `xml:"AbstractClasses"`
	Ca              string `xml:"Ca"`
	Ce              string `xml:"Ce"`
	A               string `xml:"A"`
	I               string `xml:"I"`
	D               string `xml:"D"`
}

type jdependClass struct {
	SourceFile string `xml:"sourceFile,attr,omitempty"`
	Name       string `xml:",chardata"`
}

type jdependCycle struct {
	Name     string   `xml:"Name,attr"`
	Packages []string `xml:"Package"`
}

// Write implements Writer. Packages come from the dependency result; pkgs
// is ignored.
func (j *JDependXML) Write(w io.Writer, pkgs []*code.Package) error {
	if j.result == nil {
		return fmt.Errorf("%s: no %s analyzer accepted", FormatJDependXML, metrics.KindDependency.Label())
	}

	doc := jdependDoc{}
	for _, p := range j.result.Packages() {
		doc.Packages = append(doc.Packages, j.pkg(p))
	}
	for _, cycle := range j.result.Cycles() {
		c := jdependCycle{Name: cycle[0].Path()}
		for _, p := range cycle {
			c.Packages = append(c.Packages, p.Path())
		}
		c.Packages = append(c.Packages, cycle[0].Path())
		doc.Cycles = append(doc.Cycles, c)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", FormatJDependXML, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (j *JDependXML) pkg(p *code.Package) jdependPackage {
	out := jdependPackage{Name: p.Path()}
	if p.External() {
		return out
	}

	rec := j.result.NodeMetrics(p)
	out.Stats = &jdependStats{
		TotalClasses:    rec.Value(dependency.MetricTotalTypes).String(),
		ConcreteClasses: rec.Value(dependency.MetricConcrete).String(),
		AbstractClasses: rec.Value(dependency.MetricAbstract).String(),
		Ca:              rec.Value(dependency.MetricAfferent).String(),
		Ce:              rec.Value(dependency.MetricEfferent).String(),
		A:               rec.Value(dependency.MetricAbstractness).String(),
		I:               rec.Value(dependency.MetricInstability).String(),
		D:               rec.Value(dependency.MetricDistance).String(),
	}
	for _, t := range p.Types() {
		c := jdependClass{SourceFile: t.Position().File, Name: t.Name()}
		if t.Abstract() {
			out.AbstractClasses = append(out.AbstractClasses, c)
		} else {
			out.ConcreteClasses = append(out.ConcreteClasses, c)
		}
	}
	for _, d := range j.result.DependsUpon(p) {
		out.DependsUpon = append(out.DependsUpon, d.Path())
	}
	for _, u := range j.result.UsedBy(p) {
		out.UsedBy = append(out.UsedBy, u.Path())
	}
	return out
}
