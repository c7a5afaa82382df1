package parsers

import (
	"go/ast"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// ExprCache caches the rendered form of type expressions.
type ExprCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewExprCache creates a cache holding at most size expressions.
func NewExprCache(size int) *ExprCache {
	return &ExprCache{cache: lru.New(size)}
}

// Len returns the number of cached expressions.
func (c *ExprCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// ToString renders expr, reusing a cached result when available.
func (c *ExprCache) ToString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	c.mu.Lock()
	if v, ok := c.cache.Get(expr); ok {
		c.mu.Unlock()
		return v.(string)
	}
	c.mu.Unlock()

	s := c.render(expr)

	c.mu.Lock()
	c.cache.Add(expr, s)
	c.mu.Unlock()
	return s
}

func (c *ExprCache) render(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return "*" + c.ToString(e.X)
	case *ast.SelectorExpr:
		return c.ToString(e.X) + "." + e.Sel.Name
	case *ast.ArrayType:
		if e.Len == nil {
			return "[]" + c.ToString(e.Elt)
		}
		return "[" + c.ToString(e.Len) + "]" + c.ToString(e.Elt)
	case *ast.MapType:
		return "map[" + c.ToString(e.Key) + "]" + c.ToString(e.Value)
	case *ast.ChanType:
		return "chan " + c.ToString(e.Value)
	case *ast.Ellipsis:
		return "..." + c.ToString(e.Elt)
	case *ast.FuncType:
		return "func"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{}"
	case *ast.IndexExpr:
		return c.ToString(e.X) + "[" + c.ToString(e.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, len(e.Indices))
		for i, idx := range e.Indices {
			args[i] = c.ToString(idx)
		}
		return c.ToString(e.X) + "[" + strings.Join(args, ", ") + "]"
	case *ast.ParenExpr:
		return c.ToString(e.X)
	case *ast.BasicLit:
		return e.Value
	default:
		return ""
	}
}

// namedTypes returns the named type expressions reachable from a type
// expression, unwrapping pointers, slices, maps, channels and generic
// instantiations. Each result is an *ast.Ident or *ast.SelectorExpr.
func namedTypes(expr ast.Expr) []ast.Expr {
	var out []ast.Expr
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch t := e.(type) {
		case *ast.Ident, *ast.SelectorExpr:
			out = append(out, t)
		case *ast.StarExpr:
			walk(t.X)
		case *ast.ArrayType:
			walk(t.Elt)
		case *ast.MapType:
			walk(t.Key)
			walk(t.Value)
		case *ast.ChanType:
			walk(t.Value)
		case *ast.Ellipsis:
			walk(t.Elt)
		case *ast.ParenExpr:
			walk(t.X)
		case *ast.IndexExpr:
			walk(t.X)
			walk(t.Index)
		case *ast.IndexListExpr:
			walk(t.X)
			for _, idx := range t.Indices {
				walk(idx)
			}
		case *ast.FuncType:
			for _, f := range fieldTypes(t.Params) {
				walk(f)
			}
			for _, f := range fieldTypes(t.Results) {
				walk(f)
			}
		}
	}
	walk(expr)
	return out
}

func fieldTypes(fl *ast.FieldList) []ast.Expr {
	if fl == nil {
		return nil
	}
	out := make([]ast.Expr, 0, len(fl.List))
	for _, f := range fl.List {
		out = append(out, f.Type)
	}
	return out
}
