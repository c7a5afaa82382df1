package code

// Visitor has one handler per structural node kind. The protocol never
// descends on its own: a handler that wants to see children calls
// VisitTypes, VisitFunctions or VisitMembers explicitly, in the order it
// needs.
type Visitor interface {
	VisitPackage(p *Package)
	VisitClass(t *Type)
	VisitInterface(t *Type)
	VisitFunction(f *Function)
	VisitMethod(m *Method)
	VisitProperty(p *Property)
}

// NopVisitor implements Visitor with no-op handlers. Embed it to handle
// only the kinds an analyzer cares about.
type NopVisitor struct{}

func (NopVisitor) VisitPackage(*Package)   {}
func (NopVisitor) VisitClass(*Type)        {}
func (NopVisitor) VisitInterface(*Type)    {}
func (NopVisitor) VisitFunction(*Function) {}
func (NopVisitor) VisitMethod(*Method)     {}
func (NopVisitor) VisitProperty(*Property) {}

// Walk is the traversal entry point: it hands every package to v.
func Walk(v Visitor, pkgs []*Package) {
	for _, p := range pkgs {
		p.Accept(v)
	}
}

// VisitTypes hands every type of p to v.
func VisitTypes(v Visitor, p *Package) {
	for _, t := range p.types {
		t.Accept(v)
	}
}

// VisitFunctions hands every function of p to v.
func VisitFunctions(v Visitor, p *Package) {
	for _, f := range p.functions {
		f.Accept(v)
	}
}

// VisitMembers hands the properties and then the methods of t to v.
func VisitMembers(v Visitor, t *Type) {
	for _, p := range t.properties {
		p.Accept(v)
	}
	for _, m := range t.methods {
		m.Accept(v)
	}
}

// SyntaxVisitor receives member-access syntax nodes found in bodies.
type SyntaxVisitor interface {
	VisitSelfReference(n *ASTNode)
	VisitPropertyPostfix(n *ASTNode)
	VisitMethodPostfix(n *ASTNode)
}

// WalkSyntax visits root and all of its descendants depth first.
func WalkSyntax(v SyntaxVisitor, root *ASTNode) {
	if root == nil {
		return
	}
	root.Accept(v)
	for _, c := range root.children {
		WalkSyntax(v, c)
	}
}
