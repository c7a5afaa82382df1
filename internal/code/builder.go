package code

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
)

// ErrDuplicateID is returned when a node would reuse an existing ID.
var ErrDuplicateID = errors.New("duplicate node id")

// ErrBodyAssigned is returned when a body is attached twice.
var ErrBodyAssigned = errors.New("body already assigned")

// ErrInheritanceCycle is returned when a parent link would form a cycle.
var ErrInheritanceCycle = errors.New("inheritance cycle")

// MethodSpec holds the flags of a method under construction.
type MethodSpec struct {
	Visibility  Visibility
	Static      bool
	Abstract    bool
	Constructor bool
	Position    Position
}

// PropertySpec holds the flags of a property under construction.
type PropertySpec struct {
	Visibility Visibility
	Static     bool
	Type       *Type
	Position   Position
}

// Builder assembles a code model and assigns node identities.
//
// IDs are assigned exactly once and never reused; the builder keeps a
// registry keyed by ID plus secondary indexes by kind and qualified type
// name so that lookups are O(result).
type Builder struct {
	mu       sync.RWMutex
	nodes    map[string]Node
	byKind   map[NodeKind]map[string]Node
	packages map[string]*Package
	types    map[string]*Type
	syntax   map[string]*ASTNode
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:    make(map[string]Node),
		byKind:   make(map[NodeKind]map[string]Node),
		packages: make(map[string]*Package),
		types:    make(map[string]*Type),
		syntax:   make(map[string]*ASTNode),
	}
}

func (b *Builder) register(n Node) error {
	id := n.ID()
	if _, ok := b.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if _, ok := b.syntax[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	b.nodes[id] = n
	idx, ok := b.byKind[n.Kind()]
	if !ok {
		idx = make(map[string]Node)
		b.byKind[n.Kind()] = idx
	}
	idx[id] = n
	return nil
}

// Package returns the analyzed package with the given path, creating it on
// first use. A package previously created as external becomes analyzed.
func (b *Builder) Package(pkgPath string) *Package {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.packageLocked(pkgPath)
	p.external = false
	return p
}

// ExternalPackage returns the package with the given path, creating it as
// an external (reference-only) package on first use.
func (b *Builder) ExternalPackage(pkgPath string) *Package {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.packages[pkgPath]; ok {
		return p
	}
	p := b.packageLocked(pkgPath)
	p.external = true
	return p
}

func (b *Builder) packageLocked(pkgPath string) *Package {
	if p, ok := b.packages[pkgPath]; ok {
		return p
	}
	p := &Package{
		id:   GenerateID(KindPackage, pkgPath, ""),
		name: path.Base(pkgPath),
		path: pkgPath,
	}
	b.packages[pkgPath] = p
	_ = b.register(p)
	return p
}

// Class declares a class type in pkg.
func (b *Builder) Class(pkg *Package, name string, pos Position) (*Type, error) {
	return b.declareType(pkg, name, false, pos)
}

// Interface declares an interface type in pkg.
func (b *Builder) Interface(pkg *Package, name string, pos Position) (*Type, error) {
	return b.declareType(pkg, name, true, pos)
}

func (b *Builder) declareType(pkg *Package, name string, iface bool, pos Position) (*Type, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kind := KindClass
	if iface {
		kind = KindInterface
	}
	t := &Type{
		id:            GenerateID(kind, pkg.path, name),
		name:          name,
		pkg:           pkg,
		interfaceType: iface,
		pos:           pos,
	}
	qn := t.QualifiedName()
	if _, ok := b.types[qn]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, qn)
	}
	if err := b.register(t); err != nil {
		return nil, err
	}
	b.types[qn] = t
	pkg.types = append(pkg.types, t)
	return t, nil
}

// LookupType returns the declared type with the given package path and
// name, or nil.
func (b *Builder) LookupType(pkgPath, name string) *Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.types[pkgPath+"."+name]
}

// ExternalType returns the type with the given qualified name, creating a
// reference-only placeholder when it was never declared. Placeholders are
// not listed in their package's Types.
func (b *Builder) ExternalType(pkgPath, name string) *Type {
	if t := b.LookupType(pkgPath, name); t != nil {
		return t
	}
	pkg := b.ExternalPackage(pkgPath)

	b.mu.Lock()
	defer b.mu.Unlock()
	qn := pkgPath + "." + name
	if t, ok := b.types[qn]; ok {
		return t
	}
	t := &Type{
		id:   GenerateID(KindClass, pkgPath, name),
		name: name,
		pkg:  pkg,
	}
	b.types[qn] = t
	return t
}

// SetParent sets the single parent type of t. A parent that would close an
// inheritance cycle is rejected.
func (b *Builder) SetParent(t, parent *Type) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := parent; p != nil; p = p.parent {
		if p == t {
			return fmt.Errorf("%w: %s extends %s", ErrInheritanceCycle, t.id, parent.id)
		}
	}
	t.parent = parent
	return nil
}

// SetAbstract marks a class as abstract.
func (b *Builder) SetAbstract(t *Type, abstract bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.abstract = abstract
}

// AddInterface records that t implements (or extends) iface.
func (b *Builder) AddInterface(t, iface *Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range t.interfaces {
		if existing == iface {
			return
		}
	}
	t.interfaces = append(t.interfaces, iface)
}

// AddDependency records that n references dep. n must be a type, method or
// function; other nodes are ignored.
func (b *Builder) AddDependency(n Node, dep *Type) {
	if dep == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch x := n.(type) {
	case *Type:
		if dep != x {
			x.dependencies = appendUnique(x.dependencies, dep)
		}
	case *Method:
		x.dependencies = appendUnique(x.dependencies, dep)
	case *Function:
		x.dependencies = appendUnique(x.dependencies, dep)
	}
}

func appendUnique(list []*Type, t *Type) []*Type {
	for _, existing := range list {
		if existing == t {
			return list
		}
	}
	return append(list, t)
}

// Method declares a method on t.
func (b *Builder) Method(t *Type, name string, spec MethodSpec) (*Method, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := &Method{
		id:          GenerateID(KindMethod, t.pkg.path, t.name+"."+name),
		name:        name,
		parent:      t,
		visibility:  spec.Visibility,
		static:      spec.Static,
		abstract:    spec.Abstract || t.interfaceType,
		constructor: spec.Constructor,
		pos:         spec.Position,
	}
	if err := b.register(m); err != nil {
		return nil, err
	}
	t.methods = append(t.methods, m)
	return m, nil
}

// Property declares a property on t.
func (b *Builder) Property(t *Type, name string, spec PropertySpec) (*Property, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := &Property{
		id:         GenerateID(KindProperty, t.pkg.path, t.name+"."+name),
		name:       name,
		parent:     t,
		visibility: spec.Visibility,
		static:     spec.Static,
		typ:        spec.Type,
		pos:        spec.Position,
	}
	if err := b.register(p); err != nil {
		return nil, err
	}
	t.properties = append(t.properties, p)
	return p, nil
}

// Function declares a package-level function.
func (b *Builder) Function(pkg *Package, name string, pos Position) (*Function, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := &Function{
		id:   GenerateID(KindFunction, pkg.path, name),
		name: name,
		pkg:  pkg,
		pos:  pos,
	}
	if err := b.register(f); err != nil {
		return nil, err
	}
	pkg.functions = append(pkg.functions, f)
	return f, nil
}

// SetBody attaches a syntax tree to a method or function and assigns IDs
// of the form {owner id}#{n} in depth-first order.
func (b *Builder) SetBody(owner Callable, root *ASTNode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch x := owner.(type) {
	case *Method:
		if x.body != nil {
			return fmt.Errorf("%w: %s", ErrBodyAssigned, x.id)
		}
		x.body = root
	case *Function:
		if x.body != nil {
			return fmt.Errorf("%w: %s", ErrBodyAssigned, x.id)
		}
		x.body = root
	default:
		return fmt.Errorf("unsupported body owner %T", owner)
	}

	seq := 0
	var assign func(n *ASTNode) error
	assign = func(n *ASTNode) error {
		seq++
		n.id = fmt.Sprintf("%s#%d", owner.ID(), seq)
		if _, ok := b.syntax[n.id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, n.id)
		}
		b.syntax[n.id] = n
		for _, c := range n.children {
			if err := assign(c); err != nil {
				return err
			}
		}
		return nil
	}
	if root == nil {
		return nil
	}
	return assign(root)
}

// NewASTNode creates a syntax node and adopts children.
func NewASTNode(kind ASTKind, image string, line int, children ...*ASTNode) *ASTNode {
	n := &ASTNode{kind: kind, image: image, line: line}
	for _, c := range children {
		n.AddChild(c)
	}
	return n
}

// AddChild appends c to n and sets its parent link.
func (n *ASTNode) AddChild(c *ASTNode) {
	if c == nil {
		return
	}
	c.parent = n
	n.children = append(n.children, c)
}

// Node returns the structural node with the given ID, or nil.
func (b *Builder) Node(id string) Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodes[id]
}

// SyntaxNode returns the syntax node with the given ID, or nil.
func (b *Builder) SyntaxNode(id string) *ASTNode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.syntax[id]
}

// NodesByKind returns all structural nodes of a kind, sorted by ID.
func (b *Builder) NodesByKind(kind NodeKind) []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.byKind[kind]
	out := make([]Node, 0, len(idx))
	for _, n := range idx {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// NodeCount returns the number of structural nodes.
func (b *Builder) NodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// Packages returns the analyzed (non-external) packages sorted by path.
func (b *Builder) Packages() []*Package {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Package, 0, len(b.packages))
	for _, p := range b.packages {
		if !p.external {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// AllPackages returns every package, external ones included, sorted by path.
func (b *Builder) AllPackages() []*Package {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Package, 0, len(b.packages))
	for _, p := range b.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
