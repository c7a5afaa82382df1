package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// SummaryXML writes every node's merged metrics as an XML tree of
// packages, types, members and functions.
type SummaryXML struct {
	results
	now func() time.Time
}

// NewSummaryXML creates a summary XML writer.
func NewSummaryXML() *SummaryXML { return &SummaryXML{now: time.Now} }

// Format implements Writer.
func (s *SummaryXML) Format() string { return FormatSummaryXML }

// Accept implements Writer. Node and project aware analyzers are accepted.
func (s *SummaryXML) Accept(a metrics.Analyzer) error {
	return s.accept(FormatSummaryXML, a)
}

type summaryDoc struct {
	XMLName  xml.Name         `xml:"metrics"`
	Attrs    []xml.Attr       `xml:",any,attr"`
	Files    []summaryFile    `xml:"files>file"`
	Packages []summaryPackage `xml:"package"`
}

type summaryFile struct {
	Name string `xml:"name,attr"`
}

type summaryPackage struct {
	Name       string            `xml:"name,attr"`
	Attrs      []xml.Attr        `xml:",any,attr"`
	Classes    []summaryType     `xml:"class"`
	Interfaces []summaryType     `xml:"interface"`
	Functions  []summaryFunction `xml:"function"`
}

type summaryType struct {
	Name    string          `xml:"name,attr"`
	Attrs   []xml.Attr      `xml:",any,attr"`
	File    *summaryFile    `xml:"file,omitempty"`
	Methods []summaryMember `xml:"method"`
}

type summaryMember struct {
	Name  string     `xml:"name,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
}

type summaryFunction struct {
	Name  string       `xml:"name,attr"`
	Attrs []xml.Attr   `xml:",any,attr"`
	File  *summaryFile `xml:"file,omitempty"`
}

func attrs(rec metrics.Record) []xml.Attr {
	out := make([]xml.Attr, 0, len(rec))
	for _, k := range rec.Keys() {
		out = append(out, xml.Attr{Name: xml.Name{Local: k}, Value: rec[k].String()})
	}
	return out
}

func fileRef(pos code.Position) *summaryFile {
	if pos.File == "" {
		return nil
	}
	return &summaryFile{Name: pos.File}
}

// Write implements Writer.
func (s *SummaryXML) Write(w io.Writer, pkgs []*code.Package) error {
	doc := summaryDoc{
		Attrs: append([]xml.Attr{{
			Name:  xml.Name{Local: "generated"},
			Value: s.now().UTC().Format(time.RFC3339),
		}}, attrs(s.projectRecord())...),
	}
	for _, f := range sourceFiles(pkgs) {
		doc.Files = append(doc.Files, summaryFile{Name: f})
	}

	for _, p := range analyzedPackages(pkgs) {
		sp := summaryPackage{Name: p.Path(), Attrs: attrs(s.node(p))}
		for _, t := range p.Types() {
			st := summaryType{Name: t.Name(), Attrs: attrs(s.node(t)), File: fileRef(t.Position())}
			for _, m := range t.Methods() {
				st.Methods = append(st.Methods, summaryMember{Name: m.Name(), Attrs: attrs(s.node(m))})
			}
			if t.IsInterface() {
				sp.Interfaces = append(sp.Interfaces, st)
			} else {
				sp.Classes = append(sp.Classes, st)
			}
		}
		for _, f := range p.Functions() {
			sp.Functions = append(sp.Functions, summaryFunction{
				Name:  f.Name(),
				Attrs: attrs(s.node(f)),
				File:  fileRef(f.Position()),
			})
		}
		doc.Packages = append(doc.Packages, sp)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", FormatSummaryXML, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
