package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/metrics/dependency"
	"github.com/Benny93/axon-metrics/internal/metrics/nodecount"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

type bareAnalyzer struct{}

func (bareAnalyzer) Kind() metrics.Kind                { return "bare" }
func (bareAnalyzer) Analyze(pkgs []*code.Package) error { return nil }

// fixture builds core{Repo, Cart} and app{Service, NewService}. Service
// depends on core.Cart and io.Reader.
func fixture(t *testing.T) (*code.Builder, []metrics.Analyzer) {
	t.Helper()
	b := code.NewBuilder()
	core := b.Package("example.com/core")
	app := b.Package("example.com/app")

	_, err := b.Interface(core, "Repo", code.Position{File: "core/repo.go", StartLine: 1, EndLine: 3})
	require.NoError(t, err)
	cart, err := b.Class(core, "Cart", code.Position{File: "core/cart.go", StartLine: 1, EndLine: 20})
	require.NoError(t, err)
	_, err = b.Method(cart, "Add", code.MethodSpec{Visibility: code.Public})
	require.NoError(t, err)
	_, err = b.Method(cart, "Total", code.MethodSpec{Visibility: code.Public})
	require.NoError(t, err)

	svc, err := b.Class(app, "Service", code.Position{File: "app/service.go", StartLine: 1, EndLine: 10})
	require.NoError(t, err)
	b.AddDependency(svc, cart)
	b.AddDependency(svc, b.ExternalType("io", "Reader"))
	_, err = b.Function(app, "NewService", code.Position{File: "app/service.go", StartLine: 12, EndLine: 14})
	require.NoError(t, err)

	analyzers := []metrics.Analyzer{dependency.New(), nodecount.New()}
	for _, a := range analyzers {
		require.NoError(t, a.Analyze(b.Packages()))
	}
	return b, analyzers
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			w, err := New(format)
			require.NoError(t, err)
			assert.Equal(t, format, w.Format())
		})
	}

	t.Run("CaseInsensitive", func(t *testing.T) {
		w, err := New(" JSON ")
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, w.Format())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := New("html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "html")
		assert.Contains(t, err.Error(), FormatJDependXML)
	})
}

func TestAccept(t *testing.T) {
	t.Parallel()

	t.Run("JDependRejectsOtherAnalyzers", func(t *testing.T) {
		err := NewJDependXML().Accept(nodecount.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAnalyzerNotAccepted)
	})

	t.Run("JDependAcceptsDependency", func(t *testing.T) {
		assert.NoError(t, NewJDependXML().Accept(dependency.New()))
	})

	t.Run("SummaryRejectsBareAnalyzer", func(t *testing.T) {
		err := NewSummaryXML().Accept(bareAnalyzer{})
		assert.ErrorIs(t, err, ErrAnalyzerNotAccepted)
	})

	t.Run("AcceptAll", func(t *testing.T) {
		_, analyzers := fixture(t)
		all := append(analyzers, bareAnalyzer{})
		assert.Equal(t, 1, AcceptAll(NewJDependXML(), all))
		assert.Equal(t, 2, AcceptAll(NewText(), all))
	})
}

func TestJDependXML_Write(t *testing.T) {
	t.Parallel()

	b, analyzers := fixture(t)
	w := NewJDependXML()
	require.Equal(t, 1, AcceptAll(w, analyzers))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, b.Packages()))
	out := buf.String()

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(xml.Header)))
	assert.Contains(t, out, `<Package name="example.com/app">`)
	assert.Contains(t, out, `<Package name="io"></Package>`)
	assert.Contains(t, out, `<Class sourceFile="core/repo.go">Repo</Class>`)
	assert.Contains(t, out, `<Class sourceFile="core/cart.go">Cart</Class>`)
	assert.Contains(t, out, "<Ce>2</Ce>")
	assert.NotContains(t, out, "<Cycles>")

	var doc jdependDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Packages, 3)
	app := doc.Packages[0]
	assert.Equal(t, "example.com/app", app.Name)
	assert.Equal(t, []string{"example.com/core", "io"}, app.DependsUpon)
	assert.Equal(t, "1", app.Stats.I)
	core := doc.Packages[1]
	assert.Equal(t, []string{"example.com/app"}, core.UsedBy)
	assert.Equal(t, "1", core.Stats.AbstractClasses)
}

func TestJDependXML_WriteWithoutAnalyzer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := NewJDependXML().Write(&buf, nil)
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestJDependXML_Cycles(t *testing.T) {
	t.Parallel()

	b := code.NewBuilder()
	x := b.Package("example.com/x")
	y := b.Package("example.com/y")
	xt, err := b.Class(x, "X", code.Position{})
	require.NoError(t, err)
	yt, err := b.Class(y, "Y", code.Position{})
	require.NoError(t, err)
	b.AddDependency(xt, yt)
	b.AddDependency(yt, xt)

	a := dependency.New()
	require.NoError(t, a.Analyze(b.Packages()))
	w := NewJDependXML()
	require.NoError(t, w.Accept(a))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, b.Packages()))

	var doc jdependDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Cycles, 1)
	c := doc.Cycles[0]
	require.Len(t, c.Packages, 3)
	assert.Equal(t, c.Name, c.Packages[0])
	assert.Equal(t, c.Packages[0], c.Packages[2])
}

func TestSummaryXML_Write(t *testing.T) {
	t.Parallel()

	b, analyzers := fixture(t)
	w := NewSummaryXML()
	w.now = fixedNow
	require.Equal(t, 2, AcceptAll(w, analyzers))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, b.Packages()))
	assert.Contains(t, buf.String(), `<metrics generated="2026-01-02T03:04:05Z"`)

	var doc summaryDoc
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2", attrValue(doc.Attrs, nodecount.MetricPackages))
	assert.Equal(t, "1", attrValue(doc.Attrs, nodecount.MetricFunctions))
	assert.Equal(t, []summaryFile{{Name: "app/service.go"}, {Name: "core/cart.go"}, {Name: "core/repo.go"}}, doc.Files)

	require.Len(t, doc.Packages, 2)
	app, core := doc.Packages[0], doc.Packages[1]
	assert.Equal(t, "example.com/app", app.Name)
	assert.Equal(t, "2", attrValue(app.Attrs, dependency.MetricEfferent))
	require.Len(t, app.Functions, 1)
	assert.Equal(t, "NewService", app.Functions[0].Name)

	require.Len(t, core.Interfaces, 1)
	assert.Equal(t, "Repo", core.Interfaces[0].Name)
	require.Len(t, core.Classes, 1)
	cart := core.Classes[0]
	assert.Equal(t, "2", attrValue(cart.Attrs, nodecount.MetricMethods))
	require.NotNil(t, cart.File)
	assert.Equal(t, "core/cart.go", cart.File.Name)
	require.Len(t, cart.Methods, 2)
	assert.Equal(t, "Add", cart.Methods[0].Name)
}

func TestJSON_Write(t *testing.T) {
	t.Parallel()

	b, analyzers := fixture(t)
	w := NewJSON()
	w.now = fixedNow
	require.Equal(t, 2, AcceptAll(w, analyzers))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, b.Packages()))

	var doc jsonDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2026-01-02T03:04:05Z", doc.Generated)
	assert.Equal(t, json.Number("2"), doc.Project[nodecount.MetricClasses])
	require.Len(t, doc.Packages, 2)

	core := doc.Packages[1]
	assert.Equal(t, json.Number("1"), core.Metrics[dependency.MetricAfferent])
	require.Len(t, core.Types, 2)
	assert.Equal(t, "Repo", core.Types[0].Name)
	assert.True(t, core.Types[0].Interface)
	assert.Equal(t, "Cart", core.Types[1].Name)
	assert.Len(t, core.Types[1].Methods, 2)
}

func TestJSON_WriteEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewJSON().Write(&buf, nil))
	assert.Contains(t, buf.String(), `"packages": []`)
}

func TestText_Write(t *testing.T) {
	t.Parallel()

	b, analyzers := fixture(t)
	w := NewText()
	require.Equal(t, 2, AcceptAll(w, analyzers))

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, b.Packages()))
	out := buf.String()

	assert.Contains(t, out, "Project")
	assert.Contains(t, out, "Packages")
	assert.Contains(t, out, "example.com/core")
	assert.Contains(t, out, "Types")
	assert.Contains(t, out, "example.com/core.Cart")
	assert.NotContains(t, out, "lcom_ck")
}

func TestPresentColumns(t *testing.T) {
	t.Parallel()

	records := []metrics.Record{
		{"wmc": metrics.Int64(1)},
		{"nom": metrics.Int64(2), "extra": metrics.Int64(3)},
	}
	assert.Equal(t, []string{"nom", "wmc"}, presentColumns(typeColumns, records))
	assert.Equal(t, []string{"2", "-"}, row(records[1], []string{"nom", "wmc"}))
}
