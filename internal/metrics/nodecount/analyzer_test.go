package nodecount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/code"
)

func TestAnalyzer(t *testing.T) {
	t.Parallel()

	b := code.NewBuilder()
	shop := b.Package("shop")
	util := b.Package("util")

	cart, _ := b.Class(shop, "Cart", code.Position{})
	pricer, _ := b.Interface(shop, "Pricer", code.Position{})
	for _, name := range []string{"Add", "Remove"} {
		_, err := b.Method(cart, name, code.MethodSpec{})
		require.NoError(t, err)
	}
	_, err := b.Method(pricer, "Price", code.MethodSpec{})
	require.NoError(t, err)
	_, err = b.Function(util, "Round", code.Position{})
	require.NoError(t, err)
	b.AddDependency(cart, b.ExternalType("fmt", "Stringer"))

	a := New()
	require.NoError(t, a.Analyze(b.Packages()))

	t.Run("PerType", func(t *testing.T) {
		assert.Equal(t, int64(2), a.MethodCount(cart))
		assert.Equal(t, int64(1), a.MethodCount(pricer))
	})

	t.Run("PerPackage", func(t *testing.T) {
		r := a.NodeMetrics(shop)
		assert.Equal(t, int64(1), r.Int(MetricClasses))
		assert.Equal(t, int64(1), r.Int(MetricInterfaces))
		assert.Equal(t, int64(3), r.Int(MetricMethods))
		assert.Equal(t, int64(0), r.Int(MetricFunctions))
		assert.Equal(t, int64(1), a.NodeMetrics(util).Int(MetricFunctions))
	})

	t.Run("Project", func(t *testing.T) {
		r := a.ProjectMetrics()
		assert.Equal(t, int64(2), r.Int(MetricPackages))
		assert.Equal(t, int64(1), r.Int(MetricClasses))
		assert.Equal(t, int64(1), r.Int(MetricInterfaces))
		assert.Equal(t, int64(3), r.Int(MetricMethods))
		assert.Equal(t, int64(1), r.Int(MetricFunctions))
	})

	t.Run("ExternalPackagesNotCounted", func(t *testing.T) {
		assert.Empty(t, a.NodeMetrics(b.ExternalPackage("fmt")))
	})
}
