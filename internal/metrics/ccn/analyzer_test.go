package ccn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/code"
)

func TestComplexity(t *testing.T) {
	t.Parallel()

	node := code.NewASTNode

	tests := []struct {
		name string
		body *code.ASTNode
		ccn  int64
		ccn2 int64
	}{
		{name: "NilBody", body: nil, ccn: 1, ccn2: 1},
		{name: "EmptyBody", body: node(code.ASTBlock, "", 1), ccn: 1, ccn2: 1},
		{
			name: "BranchesAndLoops",
			body: node(code.ASTBlock, "", 1,
				node(code.ASTIfStatement, "", 2,
					node(code.ASTLogicalAnd, "&&", 2),
					node(code.ASTIfStatement, "", 3)),
				node(code.ASTForStatement, "", 5,
					node(code.ASTLogicalOr, "||", 5))),
			ccn: 4, ccn2: 6,
		},
		{
			name: "DefaultClauseNotCounted",
			body: node(code.ASTBlock, "", 1,
				node(code.ASTSwitchCase, "case", 2),
				node(code.ASTSwitchCase, "case", 3),
				node(code.ASTSwitchCase, "default", 4),
				node(code.ASTCommClause, "case", 5),
				node(code.ASTCommClause, "default", 6)),
			ccn: 4, ccn2: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ccn, ccn2 := Complexity(tt.body)
			assert.Equal(t, tt.ccn, ccn)
			assert.Equal(t, tt.ccn2, ccn2)
		})
	}
}

func TestAnalyzer(t *testing.T) {
	t.Parallel()

	b := code.NewBuilder()
	pkg := b.Package("shop")
	cart, _ := b.Class(pkg, "Cart", code.Position{})
	add, err := b.Method(cart, "Add", code.MethodSpec{})
	require.NoError(t, err)
	require.NoError(t, b.SetBody(add, code.NewASTNode(code.ASTBlock, "", 1,
		code.NewASTNode(code.ASTIfStatement, "", 2, code.NewASTNode(code.ASTLogicalOr, "||", 2)))))
	fn, err := b.Function(pkg, "NewCart", code.Position{})
	require.NoError(t, err)

	a := New()
	require.NoError(t, a.Analyze(b.Packages()))

	assert.Equal(t, int64(2), a.CCN(add))
	assert.Equal(t, int64(3), a.CCN2(add))
	assert.Equal(t, int64(1), a.CCN(fn))
	assert.Equal(t, int64(0), a.CCN(cart))
	assert.Empty(t, a.NodeMetrics(cart))
	assert.Len(t, a.AllNodeMetrics(), 2)

	project := a.ProjectMetrics()
	assert.Equal(t, int64(3), project.Int(MetricCCN))
	assert.Equal(t, int64(4), project.Int(MetricCCN2))

	t.Run("Idempotent", func(t *testing.T) {
		require.NoError(t, a.Analyze(b.Packages()))
		assert.Equal(t, int64(3), a.ProjectMetrics().Int(MetricCCN))
	})
}
