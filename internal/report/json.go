package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
)

// JSON writes the same tree as SummaryXML as a JSON document.
type JSON struct {
	results
	now func() time.Time
}

// NewJSON creates a JSON writer.
func NewJSON() *JSON { return &JSON{now: time.Now} }

// Format implements Writer.
func (j *JSON) Format() string { return FormatJSON }

// Accept implements Writer. Node and project aware analyzers are accepted.
func (j *JSON) Accept(a metrics.Analyzer) error {
	return j.accept(FormatJSON, a)
}

type jsonDoc struct {
	Generated string                 `json:"generated"`
	Project   map[string]json.Number `json:"project"`
	Files     []string               `json:"files"`
	Packages  []jsonPackage          `json:"packages"`
}

type jsonPackage struct {
	Name      string                 `json:"name"`
	Metrics   map[string]json.Number `json:"metrics"`
	Types     []jsonType             `json:"types,omitempty"`
	Functions []jsonMember           `json:"functions,omitempty"`
}

type jsonType struct {
	Name      string                 `json:"name"`
	Interface bool                   `json:"interface,omitempty"`
	File      string                 `json:"file,omitempty"`
	Metrics   map[string]json.Number `json:"metrics"`
	Methods   []jsonMember           `json:"methods,omitempty"`
}

type jsonMember struct {
	Name    string                 `json:"name"`
	File    string                 `json:"file,omitempty"`
	Metrics map[string]json.Number `json:"metrics"`
}

// numbers keeps decimal precision by emitting values as JSON numbers.
func numbers(rec metrics.Record) map[string]json.Number {
	out := make(map[string]json.Number, len(rec))
	for k, v := range rec {
		out[k] = json.Number(v.String())
	}
	return out
}

// Write implements Writer.
func (j *JSON) Write(w io.Writer, pkgs []*code.Package) error {
	doc := jsonDoc{
		Generated: j.now().UTC().Format(time.RFC3339),
		Project:   numbers(j.projectRecord()),
		Files:     sourceFiles(pkgs),
		Packages:  []jsonPackage{},
	}
	for _, p := range analyzedPackages(pkgs) {
		jp := jsonPackage{Name: p.Path(), Metrics: numbers(j.node(p))}
		for _, t := range p.Types() {
			jt := jsonType{
				Name:      t.Name(),
				Interface: t.IsInterface(),
				File:      t.Position().File,
				Metrics:   numbers(j.node(t)),
			}
			for _, m := range t.Methods() {
				jt.Methods = append(jt.Methods, jsonMember{Name: m.Name(), Metrics: numbers(j.node(m))})
			}
			jp.Types = append(jp.Types, jt)
		}
		for _, f := range p.Functions() {
			jp.Functions = append(jp.Functions, jsonMember{
				Name:    f.Name(),
				File:    f.Position().File,
				Metrics: numbers(j.node(f)),
			})
		}
		doc.Packages = append(doc.Packages, jp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", FormatJSON, err)
	}
	return nil
}
