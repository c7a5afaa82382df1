package parsers

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/fzipp/gocyclo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/code"
	"github.com/Benny93/axon-metrics/internal/metrics/ccn"
)

const shopSource = `package shop

import (
	"io"
	"sync"
)

type Store interface {
	io.Closer
	Load(id string) (*Cart, error)
}

type Base struct {
	ID      string
	created int64
}

func (b *Base) Touch() { b.created++ }

type Cart struct {
	Base
	Store
	mu    sync.Mutex
	Items []Item
	total int
}

type Item struct{ Price int }

func (c *Cart) Add(it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Items = append(c.Items, it)
	c.recalc()
}

func (c *Cart) recalc() {
	c.total = 0
	for _, it := range c.Items {
		if it.Price > 0 && c.total >= 0 {
			c.total += it.Price
		}
	}
}

func (c *Cart) Classify(n int, ch chan int) string {
	switch {
	case n < 0:
		return "negative"
	case n == 0 || n == 1:
		return "small"
	default:
	}
	select {
	case v := <-ch:
		_ = v
	default:
	}
	f := func(x int) bool { return x > 0 && x < 10 }
	if f(n) {
		return "digit"
	}
	return "large"
}

func init() {}

func init() {}

func NewCart(r io.Reader) *Cart {
	var buf []byte
	_, _ = r.Read(buf)
	return &Cart{}
}
`

func buildSources(t *testing.T, files map[string]string, opts ...GoOption) *code.Builder {
	t.Helper()
	var sources []SourceFile
	for rel, content := range files {
		sources = append(sources, SourceFile{Path: "/src/" + rel, RelPath: rel, Content: []byte(content)})
	}
	b := code.NewBuilder()
	require.NoError(t, NewGoFrontend(opts...).Build(context.Background(), sources, b))
	return b
}

func typeByName(t *testing.T, b *code.Builder, pkgPath, name string) *code.Type {
	t.Helper()
	typ := b.LookupType(pkgPath, name)
	require.NotNil(t, typ, "type %s.%s", pkgPath, name)
	return typ
}

func methodByName(t *testing.T, typ *code.Type, name string) *code.Method {
	t.Helper()
	for _, m := range typ.Methods() {
		if m.Name() == name {
			return m
		}
	}
	t.Fatalf("method %s not found on %s", name, typ.QualifiedName())
	return nil
}

func TestGoFrontend_Build(t *testing.T) {
	t.Parallel()

	b := buildSources(t, map[string]string{"shop/cart.go": shopSource}, WithModulePath("example.com/app"))
	const pkg = "example.com/app/shop"

	t.Run("Types", func(t *testing.T) {
		store := typeByName(t, b, pkg, "Store")
		assert.True(t, store.IsInterface())
		assert.Equal(t, code.KindInterface, store.Kind())

		cart := typeByName(t, b, pkg, "Cart")
		assert.False(t, cart.IsInterface())
		assert.Equal(t, "shop/cart.go", cart.Position().File)
	})

	t.Run("EmbeddingBecomesHeritage", func(t *testing.T) {
		cart := typeByName(t, b, pkg, "Cart")
		require.NotNil(t, cart.Parent())
		assert.Equal(t, "Base", cart.Parent().Name())

		require.Len(t, cart.Interfaces(), 1)
		assert.Equal(t, "Store", cart.Interfaces()[0].Name())

		store := typeByName(t, b, pkg, "Store")
		require.Len(t, store.Methods(), 1)
		assert.True(t, store.Methods()[0].IsAbstract())
	})

	t.Run("Visibility", func(t *testing.T) {
		cart := typeByName(t, b, pkg, "Cart")
		assert.True(t, methodByName(t, cart, "Add").IsPublic())
		assert.True(t, methodByName(t, cart, "recalc").IsProtected())

		props := map[string]*code.Property{}
		for _, p := range cart.Properties() {
			props[p.Name()] = p
		}
		require.Len(t, props, 3)
		assert.True(t, props["Items"].IsPublic())
		assert.True(t, props["total"].IsProtected())
		require.NotNil(t, props["Items"].Type())
		assert.Equal(t, "Item", props["Items"].Type().Name())
	})

	t.Run("Dependencies", func(t *testing.T) {
		cart := typeByName(t, b, pkg, "Cart")
		var names []string
		for _, d := range cart.Dependencies() {
			names = append(names, d.QualifiedName())
		}
		assert.Contains(t, names, "sync.Mutex")
		assert.Contains(t, names, pkg+".Item")

		ext := b.LookupType("sync", "Mutex")
		require.NotNil(t, ext)
		assert.True(t, ext.Package().External())
	})

	t.Run("SelfReferences", func(t *testing.T) {
		add := methodByName(t, typeByName(t, b, pkg, "Cart"), "Add")
		require.NotNil(t, add.Body())

		var props, calls []string
		for _, prefix := range add.Body().FindChildrenOfKind(code.ASTMemberPrimaryPrefix) {
			children := prefix.Children()
			require.Len(t, children, 2)
			assert.Equal(t, code.ASTSelfReference, children[0].Kind())
			assert.Equal(t, "c", children[0].Image())
			switch children[1].Kind() {
			case code.ASTPropertyPostfix:
				props = append(props, children[1].Image())
			case code.ASTMethodPostfix:
				calls = append(calls, children[1].Image())
			}
		}
		assert.Contains(t, props, "mu")
		assert.Contains(t, props, "Items")
		assert.Equal(t, []string{"recalc"}, calls)
	})

	t.Run("DuplicateInit", func(t *testing.T) {
		var names []string
		for _, f := range b.Packages()[0].Functions() {
			names = append(names, f.Name())
		}
		assert.ElementsMatch(t, []string{"init", "init.2", "NewCart"}, names)
	})

	t.Run("FunctionDependencies", func(t *testing.T) {
		for _, f := range b.Packages()[0].Functions() {
			if f.Name() != "NewCart" {
				continue
			}
			var names []string
			for _, d := range f.Dependencies() {
				names = append(names, d.QualifiedName())
			}
			assert.Contains(t, names, "io.Reader")
			assert.Contains(t, names, pkg+".Cart")
		}
	})
}

func TestGoFrontend_ComplexityMatchesGocyclo(t *testing.T) {
	t.Parallel()

	b := buildSources(t, map[string]string{"cart.go": shopSource})

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "cart.go", shopSource, 0)
	require.NoError(t, err)

	cart := typeByName(t, b, "shop", "Cart")
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil {
			continue
		}
		if typeName, _ := receiverType(fn.Recv.List[0]); typeName != "Cart" {
			continue
		}
		t.Run(fn.Name.Name, func(t *testing.T) {
			_, ccn2 := ccn.Complexity(methodByName(t, cart, fn.Name.Name).Body())
			assert.Equal(t, int64(gocyclo.Complexity(fn)), ccn2)
		})
	}
}

func TestGoFrontend_RootPackage(t *testing.T) {
	t.Parallel()

	t.Run("WithoutModule", func(t *testing.T) {
		b := buildSources(t, map[string]string{"main.go": "package main\n\ntype App struct{}\n"})
		assert.NotNil(t, b.LookupType("main", "App"))
	})

	t.Run("WithModule", func(t *testing.T) {
		b := buildSources(t, map[string]string{"main.go": "package main\n\ntype App struct{}\n"}, WithModulePath("example.com/tool"))
		assert.NotNil(t, b.LookupType("example.com/tool", "App"))
	})
}

func TestGoFrontend_CrossPackage(t *testing.T) {
	t.Parallel()

	b := buildSources(t, map[string]string{
		"core/base.go": "package core\n\ntype Base struct{ Name string }\n\ntype Runner interface{ Run() }\n",
		"app/svc.go": `package app

import "example.com/m/core"

type Service struct {
	core.Base
	core.Runner
}

func (s Service) Run() {}
`,
	}, WithModulePath("example.com/m"))

	svc := typeByName(t, b, "example.com/m/app", "Service")
	require.NotNil(t, svc.Parent())
	assert.Equal(t, "example.com/m/core.Base", svc.Parent().QualifiedName())
	require.Len(t, svc.Interfaces(), 1)
	assert.Equal(t, "Runner", svc.Interfaces()[0].Name())
	assert.False(t, svc.Parent().Package().External())
}

func TestGoFrontend_ParseError(t *testing.T) {
	t.Parallel()

	b := code.NewBuilder()
	err := NewGoFrontend().Build(context.Background(), []SourceFile{
		{RelPath: "broken.go", Content: []byte("package broken\n\nfunc {")},
	}, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
}

func TestGoFrontend_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGoFrontend(WithWorkers(1)).Build(ctx, []SourceFile{
		{RelPath: "a.go", Content: []byte("package a\n")},
	}, code.NewBuilder())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoFrontend_Language(t *testing.T) {
	t.Parallel()

	f := NewGoFrontend()
	assert.Equal(t, "go", f.Language())
	assert.Equal(t, []string{".go"}, f.Extensions())
}

func TestDefaultImportName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"io":                                "io",
		"github.com/charmbracelet/log":      "log",
		"github.com/dgraph-io/badger/v4":    "badger",
		"gopkg.in/yaml.v3":                  "yaml",
		"github.com/olekukonko/tablewriter": "tablewriter",
		"github.com/go-git/go-git/v5":       "git",
		"github.com/Benny93/axon-metrics":   "axon_metrics",
	}
	for path, want := range tests {
		assert.Equal(t, want, defaultImportName(path), path)
	}
}

func TestModulePath(t *testing.T) {
	t.Parallel()

	t.Run("Declared", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n\ngo 1.22\n"), 0o644))

		got, err := ModulePath(dir)
		require.NoError(t, err)
		assert.Equal(t, "example.com/demo", got)
	})

	t.Run("Missing", func(t *testing.T) {
		got, err := ModulePath(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Invalid", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module \"unterminated\n"), 0o644))

		_, err := ModulePath(dir)
		assert.Error(t, err)
	})
}

func TestPackagePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com/m", packagePath("example.com/m", "."))
	assert.Equal(t, "example.com/m/internal/x", packagePath("example.com/m", "internal/x"))
	assert.Equal(t, "internal/x", packagePath("", "internal/x"))
	assert.Equal(t, ".", packagePath("", ""))
}

func TestExprCache(t *testing.T) {
	t.Parallel()

	expr, err := parser.ParseExpr("map[string][]*pkg.Item")
	require.NoError(t, err)

	c := NewExprCache(2)
	assert.Equal(t, "map[string][]*pkg.Item", c.ToString(expr))
	assert.Equal(t, "map[string][]*pkg.Item", c.ToString(expr))
	assert.LessOrEqual(t, c.Len(), 2)
	assert.Empty(t, c.ToString(nil))

	var names []string
	for _, n := range namedTypes(expr) {
		names = append(names, c.ToString(n))
	}
	assert.Equal(t, []string{"string", "pkg.Item"}, names)
}
