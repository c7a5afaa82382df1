package cohesion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics"
	"github.com/Benny93/axon-metrics/internal/metrics/ccn"
	"github.com/Benny93/axon-metrics/internal/metrics/classlevel"
	"github.com/Benny93/axon-metrics/internal/metrics/nodecount"
)

// selfAccess builds the syntax of `self.name` or `self.name()`.
func selfAccess(kind code.ASTKind, name string) *code.ASTNode {
	return code.NewASTNode(code.ASTMemberPrimaryPrefix, "", 1,
		code.NewASTNode(code.ASTSelfReference, "s", 1),
		code.NewASTNode(kind, name, 1))
}

type fixtureMethod struct {
	name  string
	props []string
	calls []string
}

func buildType(t *testing.T, props []string, methods []fixtureMethod) (*code.Builder, *code.Type) {
	t.Helper()
	b := code.NewBuilder()
	typ, err := b.Class(b.Package("fixture"), "Subject", code.Position{})
	require.NoError(t, err)

	for _, p := range props {
		_, err := b.Property(typ, p, code.PropertySpec{Visibility: code.Protected})
		require.NoError(t, err)
	}
	for _, fm := range methods {
		m, err := b.Method(typ, fm.name, code.MethodSpec{Visibility: code.Public})
		require.NoError(t, err)

		body := code.NewASTNode(code.ASTBlock, "", 1)
		for _, p := range fm.props {
			body.AddChild(selfAccess(code.ASTPropertyPostfix, p))
		}
		for _, c := range fm.calls {
			body.AddChild(selfAccess(code.ASTMethodPostfix, c))
		}
		require.NoError(t, b.SetBody(m, body))
	}
	return b, typ
}

func wired(t *testing.T) *Analyzer {
	t.Helper()
	cl := classlevel.New()
	require.NoError(t, cl.AddAnalyzer(ccn.New()))

	a := New()
	require.NoError(t, metrics.Wire(a, cl, nodecount.New()))
	return a
}

func TestAnalyzer_Fixtures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		methods []fixtureMethod
		ck      string
		hs      string
		cg      string
		tcc     string
	}{
		{
			name: "OneProperty",
			methods: []fixtureMethod{
				{name: "A", props: []string{"x"}},
				{name: "B", props: []string{"x"}},
				{name: "C", props: []string{"x"}},
			},
			ck: "0", hs: "0.5", cg: "0.75", tcc: "1",
		},
		{
			name: "AllProperties",
			methods: []fixtureMethod{
				{name: "A", props: []string{"x", "y"}},
				{name: "B", props: []string{"x", "y"}},
				{name: "C", props: []string{"x", "y"}},
			},
			ck: "0", hs: "0", cg: "0", tcc: "1",
		},
		{
			name: "AllButOne",
			methods: []fixtureMethod{
				{name: "A", props: []string{"x", "y"}},
				{name: "B", props: []string{"x", "y"}},
				{name: "C"},
			},
			ck: "1", hs: "0.333333333333", cg: "0.5", tcc: "0.333333333333",
		},
		{
			name: "TransitiveThroughCalls",
			methods: []fixtureMethod{
				{name: "A", props: []string{"x", "y"}},
				{name: "B", props: []string{"x", "y"}},
				{name: "C", calls: []string{"A"}},
			},
			ck: "0", hs: "0", cg: "0", tcc: "1",
		},
		{
			name: "NoAccesses",
			methods: []fixtureMethod{
				{name: "A"},
				{name: "B"},
				{name: "C"},
			},
			ck: "2", hs: "1", cg: "1", tcc: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, typ := buildType(t, []string{"x", "y"}, tt.methods)

			a := wired(t)
			require.NoError(t, a.Analyze(b.Packages()))

			r := a.NodeMetrics(typ)
			assert.Equal(t, tt.ck, r.Value(MetricLCOMCK).String(), "lcom_ck")
			assert.Equal(t, tt.hs, r.Value(MetricLCOMHS).String(), "lcom_hs")
			assert.Equal(t, tt.cg, r.Value(MetricLCOMCG).String(), "lcom_cg")
			assert.Equal(t, tt.tcc, r.Value(MetricTCC).String(), "tcc")
		})
	}
}

func TestAnalyzer_Guards(t *testing.T) {
	t.Parallel()

	t.Run("SingleMethod", func(t *testing.T) {
		t.Parallel()
		b, typ := buildType(t, []string{"x"}, []fixtureMethod{{name: "A", props: []string{"x"}}})
		a := wired(t)
		require.NoError(t, a.Analyze(b.Packages()))

		for _, v := range a.NodeMetrics(typ) {
			assert.True(t, v.IsZero())
		}
	})

	t.Run("NoProperties", func(t *testing.T) {
		t.Parallel()
		b, typ := buildType(t, nil, []fixtureMethod{{name: "A"}, {name: "B"}})
		a := wired(t)
		require.NoError(t, a.Analyze(b.Packages()))

		r := a.NodeMetrics(typ)
		assert.Len(t, r, 4)
		for _, v := range r {
			assert.True(t, v.IsZero())
		}
	})
}

func TestAnalyzer_Configuration(t *testing.T) {
	t.Parallel()

	t.Run("MissingClassLevel", func(t *testing.T) {
		t.Parallel()
		a := New()
		require.NoError(t, a.AddAnalyzer(nodecount.New()))

		err := a.Analyze(nil)
		assert.ErrorIs(t, err, metrics.ErrMissingAnalyzer)
		assert.Contains(t, err.Error(), "missing required class level analyzer")
	})

	t.Run("MissingNodeCount", func(t *testing.T) {
		t.Parallel()
		a := New()
		require.NoError(t, a.AddAnalyzer(classlevel.New()))

		err := a.Analyze(nil)
		assert.ErrorIs(t, err, metrics.ErrMissingAnalyzer)
		assert.Contains(t, err.Error(), "missing required node count analyzer")
	})

	t.Run("WrongAnalyzer", func(t *testing.T) {
		t.Parallel()
		err := New().AddAnalyzer(ccn.New())
		assert.ErrorIs(t, err, metrics.ErrUnexpectedAnalyzer)
		assert.Contains(t, err.Error(), "class level and node count analyzers required")
	})
}

func TestAnalyzer_InterfaceSkipped(t *testing.T) {
	t.Parallel()

	b := code.NewBuilder()
	iface, err := b.Interface(b.Package("fixture"), "Reader", code.Position{})
	require.NoError(t, err)

	a := wired(t)
	require.NoError(t, a.Analyze(b.Packages()))
	assert.Empty(t, a.NodeMetrics(iface))
}
