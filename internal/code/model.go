// Package code provides the structural code model analyzed by axon-metrics.
//
// It defines packages, types, methods, properties, functions and the
// fine-grained syntax nodes found in bodies. Every node carries a stable,
// globally unique ID that metric stores key on. The model is built once by a
// Builder and is read-only afterwards.
package code

// NodeKind represents the kind of a code model node.
type NodeKind string

const (
	KindPackage   NodeKind = "package"
	KindClass     NodeKind = "class"
	KindInterface NodeKind = "interface"
	KindMethod    NodeKind = "method"
	KindProperty  NodeKind = "property"
	KindFunction  NodeKind = "function"
)

// Visibility is the access level of a type member.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

// String returns the lower-case name of the visibility.
func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// Node is implemented by every structural node of the code model.
type Node interface {
	// ID returns the stable identity of the node.
	ID() string

	// Name returns the (unqualified) name of the node.
	Name() string

	// Kind returns the node kind.
	Kind() NodeKind

	// Accept dispatches to the Visitor handler for the node's kind.
	Accept(v Visitor)
}

// Position locates a node in its source file.
type Position struct {
	// File is the path of the source file, relative to the analyzed root.
	File string

	// StartLine is the first line of the node (1-based).
	StartLine int

	// EndLine is the last line of the node (1-based).
	EndLine int
}

// Package groups types and functions under a qualified name.
type Package struct {
	id        string
	name      string
	path      string
	external  bool
	types     []*Type
	functions []*Function
}

func (p *Package) ID() string     { return p.id }
func (p *Package) Name() string   { return p.name }
func (p *Package) Kind() NodeKind { return KindPackage }

// Path returns the qualified (import) path of the package.
func (p *Package) Path() string { return p.path }

// External reports whether the package was only reached through type
// references and has no analyzed source.
func (p *Package) External() bool { return p.external }

// Types returns the package's types in declaration order.
func (p *Package) Types() []*Type { return p.types }

// Functions returns the package's functions in declaration order.
func (p *Package) Functions() []*Function { return p.functions }

// Classes returns the package's non-interface types.
func (p *Package) Classes() []*Type {
	var out []*Type
	for _, t := range p.types {
		if !t.interfaceType {
			out = append(out, t)
		}
	}
	return out
}

// Interfaces returns the package's interface types.
func (p *Package) Interfaces() []*Type {
	var out []*Type
	for _, t := range p.types {
		if t.interfaceType {
			out = append(out, t)
		}
	}
	return out
}

// Accept implements Node.
func (p *Package) Accept(v Visitor) { v.VisitPackage(p) }

// Type is a class or an interface.
type Type struct {
	id            string
	name          string
	pkg           *Package
	interfaceType bool
	abstract      bool
	parent        *Type
	interfaces    []*Type
	methods       []*Method
	properties    []*Property
	dependencies  []*Type
	pos           Position
}

func (t *Type) ID() string   { return t.id }
func (t *Type) Name() string { return t.name }

// Kind returns KindInterface for interfaces and KindClass otherwise.
func (t *Type) Kind() NodeKind {
	if t.interfaceType {
		return KindInterface
	}
	return KindClass
}

// Package returns the declaring package.
func (t *Type) Package() *Package { return t.pkg }

// IsInterface reports whether the type is an interface.
func (t *Type) IsInterface() bool { return t.interfaceType }

// Abstract reports whether the type is abstract. Interfaces always are.
func (t *Type) Abstract() bool { return t.abstract || t.interfaceType }

// Parent returns the parent type, or nil for root types.
func (t *Type) Parent() *Type { return t.parent }

// Interfaces returns the implemented (or, for interfaces, extended) interfaces.
func (t *Type) Interfaces() []*Type { return t.interfaces }

// Methods returns the declared methods in declaration order.
func (t *Type) Methods() []*Method { return t.methods }

// Properties returns the declared properties in declaration order.
func (t *Type) Properties() []*Property { return t.properties }

// Dependencies returns types referenced by the type's own declaration.
func (t *Type) Dependencies() []*Type { return t.dependencies }

// Position returns the source location.
func (t *Type) Position() Position { return t.pos }

// QualifiedName returns the package-qualified type name.
func (t *Type) QualifiedName() string {
	if t.pkg == nil {
		return t.name
	}
	return t.pkg.path + "." + t.name
}

// Ancestors returns the parent chain, nearest first.
func (t *Type) Ancestors() []*Type {
	var out []*Type
	seen := map[string]bool{t.id: true}
	for p := t.parent; p != nil && !seen[p.id]; p = p.parent {
		seen[p.id] = true
		out = append(out, p)
	}
	return out
}

// Accept implements Node.
func (t *Type) Accept(v Visitor) {
	if t.interfaceType {
		v.VisitInterface(t)
		return
	}
	v.VisitClass(t)
}

// Method is a member function owned by a type.
type Method struct {
	id           string
	name         string
	parent       *Type
	visibility   Visibility
	static       bool
	abstract     bool
	constructor  bool
	body         *ASTNode
	dependencies []*Type
	pos          Position
}

func (m *Method) ID() string     { return m.id }
func (m *Method) Name() string   { return m.name }
func (m *Method) Kind() NodeKind { return KindMethod }

// Parent returns the declaring type.
func (m *Method) Parent() *Type { return m.parent }

// Visibility returns the declared access level.
func (m *Method) Visibility() Visibility { return m.visibility }

func (m *Method) IsPublic() bool      { return m.visibility == Public }
func (m *Method) IsProtected() bool   { return m.visibility == Protected }
func (m *Method) IsPrivate() bool     { return m.visibility == Private }
func (m *Method) IsStatic() bool      { return m.static }
func (m *Method) IsAbstract() bool    { return m.abstract }
func (m *Method) IsConstructor() bool { return m.constructor }

// Body returns the root syntax node of the method body, or nil.
func (m *Method) Body() *ASTNode { return m.body }

// Dependencies returns types referenced by the signature and body.
func (m *Method) Dependencies() []*Type { return m.dependencies }

// Position returns the source location.
func (m *Method) Position() Position { return m.pos }

// Accept implements Node.
func (m *Method) Accept(v Visitor) { v.VisitMethod(m) }

// Property is a data member owned by a type.
type Property struct {
	id         string
	name       string
	parent     *Type
	visibility Visibility
	static     bool
	typ        *Type
	pos        Position
}

func (p *Property) ID() string     { return p.id }
func (p *Property) Name() string   { return p.name }
func (p *Property) Kind() NodeKind { return KindProperty }

// Parent returns the declaring type.
func (p *Property) Parent() *Type { return p.parent }

// Visibility returns the declared access level.
func (p *Property) Visibility() Visibility { return p.visibility }

func (p *Property) IsPublic() bool    { return p.visibility == Public }
func (p *Property) IsProtected() bool { return p.visibility == Protected }
func (p *Property) IsPrivate() bool   { return p.visibility == Private }
func (p *Property) IsStatic() bool    { return p.static }

// Type returns the declared type of the property when it is a model type.
func (p *Property) Type() *Type { return p.typ }

// Position returns the source location.
func (p *Property) Position() Position { return p.pos }

// Accept implements Node.
func (p *Property) Accept(v Visitor) { v.VisitProperty(p) }

// Function is a package-level function.
type Function struct {
	id           string
	name         string
	pkg          *Package
	body         *ASTNode
	dependencies []*Type
	pos          Position
}

func (f *Function) ID() string     { return f.id }
func (f *Function) Name() string   { return f.name }
func (f *Function) Kind() NodeKind { return KindFunction }

// Package returns the declaring package.
func (f *Function) Package() *Package { return f.pkg }

// Body returns the root syntax node of the function body, or nil.
func (f *Function) Body() *ASTNode { return f.body }

// Dependencies returns types referenced by the signature and body.
func (f *Function) Dependencies() []*Type { return f.dependencies }

// Position returns the source location.
func (f *Function) Position() Position { return f.pos }

// Accept implements Node.
func (f *Function) Accept(v Visitor) { v.VisitFunction(f) }

// Callable is implemented by methods and functions.
type Callable interface {
	Node
	Body() *ASTNode
	Dependencies() []*Type
}

// GenerateID creates a node ID from kind, package path and qualified name.
// Format: {kind}:{package path}[:{name}]
func GenerateID(kind NodeKind, pkgPath, name string) string {
	if name == "" {
		return string(kind) + ":" + pkgPath
	}
	return string(kind) + ":" + pkgPath + ":" + name
}
