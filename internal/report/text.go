package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Column order for the type table. Metrics outside this list are not shown.
var typeColumns = []string{"nom", "wmc", "wmci", "wmcnp", "cis", "csz", "vars", "impl", "nopm", "bovr", "bur", "pnas", "nnas", "lcom_ck", "lcom_hs", "lcom_cg", "tcc"}

var packageColumns = []string{"tc", "cc", "ac", "ca", "ce", "a", "i", "d", "cyclic"}

// Text writes aligned console tables of package and type metrics.
type Text struct {
	results
}

// NewText creates a text writer.
func NewText() *Text { return &Text{} }

// Format implements Writer.
func (t *Text) Format() string { return FormatText }

// Accept implements Writer. Node and project aware analyzers are accepted.
func (t *Text) Accept(a metrics.Analyzer) error {
	return t.accept(FormatText, a)
}

// Write implements Writer.
func (t *Text) Write(w io.Writer, pkgs []*code.Package) error {
	pkgs = analyzedPackages(pkgs)

	if project := t.projectRecord(); len(project) > 0 {
		fmt.Fprintln(w, "Project")
		table := newTable(w, []string{"Metric", "Value"})
		for _, k := range project.Keys() {
			table.Append([]string{k, project[k].String()})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	pkgRecords := make([]metrics.Record, len(pkgs))
	for i, p := range pkgs {
		pkgRecords[i] = t.node(p)
	}
	if cols := presentColumns(packageColumns, pkgRecords); len(cols) > 0 {
		fmt.Fprintln(w, "Packages")
		table := newTable(w, append([]string{"Package"}, cols...))
		for i, p := range pkgs {
			table.Append(append([]string{p.Path()}, row(pkgRecords[i], cols)...))
		}
		table.Render()
		fmt.Fprintln(w)
	}

	var types []*code.Type
	var typeRecords []metrics.Record
	for _, p := range pkgs {
		for _, ty := range p.Types() {
			types = append(types, ty)
			typeRecords = append(typeRecords, t.node(ty))
		}
	}
	if cols := presentColumns(typeColumns, typeRecords); len(cols) > 0 {
		fmt.Fprintln(w, "Types")
		table := newTable(w, append([]string{"Type"}, cols...))
		for i, ty := range types {
			table.Append(append([]string{ty.QualifiedName()}, row(typeRecords[i], cols)...))
		}
		table.Render()
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// presentColumns keeps the columns at least one record carries.
func presentColumns(preferred []string, records []metrics.Record) []string {
	var out []string
	for _, c := range preferred {
		for _, rec := range records {
			if _, ok := rec[c]; ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func row(rec metrics.Record, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if v, ok := rec[c]; ok {
			out[i] = v.String()
		} else {
			out[i] = "-"
		}
	}
	return out
}
