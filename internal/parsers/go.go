package parsers

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"path"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/axon-metrics/internal/code"
)

// GoFrontend builds the code model from Go source.
//
// Go constructs map onto the model as follows: a struct or other named
// non-interface type is a class; an interface is an interface; the first
// embedded struct of a struct is its parent; embedded interfaces are
// implemented interfaces; named fields are properties; methods are attached
// to their receiver type. Exported members are public and unexported members
// are protected, since they stay visible to the whole package.
type GoFrontend struct {
	modulePath string
	workers    int
	cache      *ExprCache
	logger     *charmlog.Logger
}

// GoOption configures a GoFrontend.
type GoOption func(*GoFrontend)

// WithModulePath sets the module path prefixed to package directories.
func WithModulePath(p string) GoOption {
	return func(f *GoFrontend) { f.modulePath = p }
}

// WithWorkers limits the number of files parsed concurrently.
func WithWorkers(n int) GoOption {
	return func(f *GoFrontend) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *charmlog.Logger) GoOption {
	return func(f *GoFrontend) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithExprCache shares an expression cache between frontends.
func WithExprCache(c *ExprCache) GoOption {
	return func(f *GoFrontend) {
		if c != nil {
			f.cache = c
		}
	}
}

// NewGoFrontend creates a Go frontend.
func NewGoFrontend(opts ...GoOption) *GoFrontend {
	f := &GoFrontend{
		workers: runtime.GOMAXPROCS(0),
		cache:   NewExprCache(10000),
		logger:  charmlog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Language implements Frontend.
func (f *GoFrontend) Language() string { return "go" }

// Extensions implements Frontend.
func (f *GoFrontend) Extensions() []string { return []string{".go"} }

// goFile is a parsed file with its resolution context.
type goFile struct {
	src     SourceFile
	ast     *ast.File
	pkg     *code.Package
	imports map[string]string
}

// Build implements Frontend. Files are parsed concurrently; the model is
// built on the calling goroutine in file path order.
func (f *GoFrontend) Build(ctx context.Context, files []SourceFile, b *code.Builder) error {
	fset := token.NewFileSet()
	parsed := make([]*goFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, sf := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			af, err := parser.ParseFile(fset, sf.RelPath, sf.Content, parser.SkipObjectResolution)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", sf.RelPath, err)
			}
			parsed[i] = &goFile{src: sf, ast: af}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].src.RelPath < parsed[j].src.RelPath })

	bld := &goBuilder{
		frontend: f,
		fset:     fset,
		b:        b,
		specs:    make(map[*code.Type]typeDecl),
		inits:    make(map[string]int),
	}
	for _, gf := range parsed {
		pkgPath := packagePath(f.modulePath, path.Dir(gf.src.RelPath))
		if pkgPath == "." {
			pkgPath = gf.ast.Name.Name
		}
		gf.pkg = b.Package(pkgPath)
		gf.imports = importAliases(gf.ast)
	}

	for _, gf := range parsed {
		bld.declareTypes(gf)
	}
	for _, gf := range parsed {
		if err := ctx.Err(); err != nil {
			return err
		}
		bld.declareMembers(gf)
	}
	for _, gf := range parsed {
		if err := bld.declareFuncs(gf); err != nil {
			return err
		}
	}
	return nil
}

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// importAliases maps the local name of each import to its path.
func importAliases(file *ast.File) map[string]string {
	out := make(map[string]string, len(file.Imports))
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				continue
			}
			out[imp.Name.Name] = p
			continue
		}
		out[defaultImportName(p)] = p
	}
	return out
}

func defaultImportName(importPath string) string {
	parts := strings.Split(importPath, "/")
	name := parts[len(parts)-1]
	if versionSuffix.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(strings.TrimPrefix(name, "go-"), "-go")
	return strings.ReplaceAll(name, "-", "_")
}

type typeDecl struct {
	file *goFile
	spec *ast.TypeSpec
}

// goBuilder carries the state of one Build call.
type goBuilder struct {
	frontend *GoFrontend
	fset     *token.FileSet
	b        *code.Builder
	specs    map[*code.Type]typeDecl
	order    []*code.Type
	inits    map[string]int
}

func (g *goBuilder) position(file *goFile, n ast.Node) code.Position {
	return code.Position{
		File:      file.src.RelPath,
		StartLine: g.fset.Position(n.Pos()).Line,
		EndLine:   g.fset.Position(n.End()).Line,
	}
}

func visibility(name string) code.Visibility {
	if ast.IsExported(name) {
		return code.Public
	}
	return code.Protected
}

func (g *goBuilder) declareTypes(file *goFile) {
	for _, decl := range file.ast.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}

			var (
				t   *code.Type
				err error
			)
			pos := g.position(file, ts)
			if _, isIface := ts.Type.(*ast.InterfaceType); isIface {
				t, err = g.b.Interface(file.pkg, ts.Name.Name, pos)
			} else {
				t, err = g.b.Class(file.pkg, ts.Name.Name, pos)
			}
			if err != nil {
				g.frontend.logger.Warn("skipping type", "file", file.src.RelPath, "type", ts.Name.Name, "err", err)
				continue
			}
			g.specs[t] = typeDecl{file: file, spec: ts}
			g.order = append(g.order, t)
		}
	}
}

// resolve maps a named type expression to a model type. Unqualified names
// resolve within the file's package; qualified names resolve through the
// file's imports, creating a placeholder for types without source.
func (g *goBuilder) resolve(file *goFile, expr ast.Expr) *code.Type {
	rendered := g.frontend.cache.ToString(expr)
	qualifier, name, qualified := strings.Cut(rendered, ".")
	if !qualified {
		return g.b.LookupType(file.pkg.Path(), rendered)
	}
	importPath, ok := file.imports[qualifier]
	if !ok || name == "" {
		return nil
	}
	if t := g.b.LookupType(importPath, name); t != nil {
		return t
	}
	return g.b.ExternalType(importPath, name)
}

// typeRefs resolves every named type within a type expression.
func (g *goBuilder) typeRefs(file *goFile, expr ast.Expr) []*code.Type {
	var out []*code.Type
	for _, named := range namedTypes(expr) {
		if t := g.resolve(file, named); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (g *goBuilder) declareMembers(file *goFile) {
	for _, t := range g.order {
		decl := g.specs[t]
		if decl.file != file {
			continue
		}
		switch st := decl.spec.Type.(type) {
		case *ast.StructType:
			g.declareStruct(file, t, st)
		case *ast.InterfaceType:
			g.declareInterface(file, t, st)
		default:
			for _, dep := range g.typeRefs(file, st) {
				g.b.AddDependency(t, dep)
			}
		}
	}
}

func (g *goBuilder) declareStruct(file *goFile, t *code.Type, st *ast.StructType) {
	if st.Fields == nil {
		return
	}
	for _, field := range st.Fields.List {
		refs := g.typeRefs(file, field.Type)

		if len(field.Names) == 0 {
			g.embed(t, refs)
			continue
		}

		var propType *code.Type
		if len(refs) > 0 {
			propType = refs[0]
		}
		for _, name := range field.Names {
			_, err := g.b.Property(t, name.Name, code.PropertySpec{
				Visibility: visibility(name.Name),
				Type:       propType,
				Position:   g.position(file, field),
			})
			if err != nil {
				g.frontend.logger.Warn("skipping field", "type", t.QualifiedName(), "field", name.Name, "err", err)
			}
		}
		for _, dep := range refs {
			g.b.AddDependency(t, dep)
		}
	}
}

// embed handles an embedded field: the first embedded class with source
// becomes the parent, embedded interfaces are implemented, anything else is
// a plain reference.
func (g *goBuilder) embed(t *code.Type, refs []*code.Type) {
	if len(refs) == 0 {
		return
	}
	target := refs[0]
	switch {
	case target.IsInterface():
		g.b.AddInterface(t, target)
	case t.Parent() == nil && g.hasSource(target):
		if err := g.b.SetParent(t, target); err != nil {
			g.frontend.logger.Warn("ignoring embedded parent", "type", t.QualifiedName(), "err", err)
			g.b.AddDependency(t, target)
		}
	default:
		g.b.AddDependency(t, target)
	}
	for _, dep := range refs[1:] {
		g.b.AddDependency(t, dep)
	}
}

func (g *goBuilder) hasSource(t *code.Type) bool {
	_, ok := g.specs[t]
	return ok
}

func (g *goBuilder) declareInterface(file *goFile, t *code.Type, it *ast.InterfaceType) {
	if it.Methods == nil {
		return
	}
	for _, field := range it.Methods.List {
		if len(field.Names) == 0 {
			for _, ref := range g.typeRefs(file, field.Type) {
				if ref.IsInterface() {
					g.b.AddInterface(t, ref)
				} else {
					g.b.AddDependency(t, ref)
				}
			}
			continue
		}
		for _, name := range field.Names {
			m, err := g.b.Method(t, name.Name, code.MethodSpec{
				Visibility: visibility(name.Name),
				Abstract:   true,
				Position:   g.position(file, field),
			})
			if err != nil {
				g.frontend.logger.Warn("skipping interface method", "type", t.QualifiedName(), "method", name.Name, "err", err)
				continue
			}
			for _, dep := range g.typeRefs(file, field.Type) {
				g.b.AddDependency(m, dep)
			}
		}
	}
}

func (g *goBuilder) declareFuncs(file *goFile) error {
	for _, decl := range file.ast.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			if err := g.declareMethod(file, fn); err != nil {
				return err
			}
			continue
		}
		if err := g.declareFunction(file, fn); err != nil {
			return err
		}
	}
	return nil
}

// receiverType returns the type name and variable name of a receiver.
func receiverType(recv *ast.Field) (typeName, varName string) {
	expr := recv.Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
			continue
		case *ast.ParenExpr:
			expr = e.X
			continue
		case *ast.IndexExpr:
			expr = e.X
			continue
		case *ast.IndexListExpr:
			expr = e.X
			continue
		case *ast.Ident:
			typeName = e.Name
		}
		break
	}
	if len(recv.Names) > 0 {
		varName = recv.Names[0].Name
	}
	return typeName, varName
}

func (g *goBuilder) declareMethod(file *goFile, fn *ast.FuncDecl) error {
	typeName, recvName := receiverType(fn.Recv.List[0])
	t := g.b.LookupType(file.pkg.Path(), typeName)
	if t == nil || t.IsInterface() {
		g.frontend.logger.Warn("skipping method without receiver type", "file", file.src.RelPath, "method", fn.Name.Name)
		return nil
	}

	m, err := g.b.Method(t, fn.Name.Name, code.MethodSpec{
		Visibility: visibility(fn.Name.Name),
		Position:   g.position(file, fn),
	})
	if err != nil {
		g.frontend.logger.Warn("skipping method", "type", t.QualifiedName(), "method", fn.Name.Name, "err", err)
		return nil
	}
	return g.attachBody(file, m, fn, recvName)
}

func (g *goBuilder) declareFunction(file *goFile, fn *ast.FuncDecl) error {
	name := fn.Name.Name
	if name == "init" {
		key := file.pkg.Path()
		g.inits[key]++
		if n := g.inits[key]; n > 1 {
			name = fmt.Sprintf("init.%d", n)
		}
	}

	f, err := g.b.Function(file.pkg, name, g.position(file, fn))
	if err != nil {
		g.frontend.logger.Warn("skipping function", "file", file.src.RelPath, "function", name, "err", err)
		return nil
	}
	return g.attachBody(file, f, fn, "")
}

// attachBody converts the body of fn and records the types its signature
// and body reference.
func (g *goBuilder) attachBody(file *goFile, owner code.Callable, fn *ast.FuncDecl, receiver string) error {
	for _, expr := range append(fieldTypes(fn.Type.Params), fieldTypes(fn.Type.Results)...) {
		for _, dep := range g.typeRefs(file, expr) {
			g.b.AddDependency(owner, dep)
		}
	}
	if fn.Body == nil {
		return nil
	}

	for _, dep := range g.bodyRefs(file, fn.Body) {
		g.b.AddDependency(owner, dep)
	}

	conv := &syntaxConverter{fset: g.fset, receiver: receiver}
	if err := g.b.SetBody(owner, conv.convert(fn.Body)); err != nil {
		return fmt.Errorf("%s: %w", file.src.RelPath, err)
	}
	return nil
}

// bodyRefs collects the types a body references: composite literals,
// declarations, conversions through type assertions, function literal
// signatures and qualified identifiers of imported packages.
func (g *goBuilder) bodyRefs(file *goFile, body *ast.BlockStmt) []*code.Type {
	var out []*code.Type
	add := func(expr ast.Expr) {
		if expr != nil {
			out = append(out, g.typeRefs(file, expr)...)
		}
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.CompositeLit:
			add(x.Type)
		case *ast.ValueSpec:
			add(x.Type)
		case *ast.TypeAssertExpr:
			add(x.Type)
		case *ast.FuncLit:
			add(x.Type)
		case *ast.SelectorExpr:
			if id, ok := x.X.(*ast.Ident); ok {
				if _, imported := file.imports[id.Name]; imported {
					add(x)
					return false
				}
			}
		}
		return true
	})
	return out
}
