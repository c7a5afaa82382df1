package code

// ASTKind identifies the kind of a syntax node.
type ASTKind string

const (
	ASTBlock               ASTKind = "block"
	ASTSelfReference       ASTKind = "self_reference"
	ASTPropertyPostfix     ASTKind = "property_postfix"
	ASTMethodPostfix       ASTKind = "method_postfix"
	ASTMemberPrimaryPrefix ASTKind = "member_primary_prefix"
	ASTIfStatement         ASTKind = "if_statement"
	ASTForStatement        ASTKind = "for_statement"
	ASTSwitchCase          ASTKind = "switch_case"
	ASTCommClause          ASTKind = "comm_clause"
	ASTLogicalAnd          ASTKind = "logical_and"
	ASTLogicalOr           ASTKind = "logical_or"
	ASTFunctionCall        ASTKind = "function_call"
	ASTIdentifier          ASTKind = "identifier"
	ASTExpression          ASTKind = "expression"
)

// ASTNode is a statement or expression node inside a method or function
// body. The parent link is navigational only.
type ASTNode struct {
	id       string
	kind     ASTKind
	image    string
	parent   *ASTNode
	children []*ASTNode
	line     int
}

// ID returns the stable identity of the node.
func (n *ASTNode) ID() string { return n.id }

// Kind returns the syntax node kind.
func (n *ASTNode) Kind() ASTKind { return n.kind }

// Image returns the textual image, e.g. an accessed member name.
func (n *ASTNode) Image() string { return n.image }

// Line returns the source line of the node.
func (n *ASTNode) Line() int { return n.line }

// Parent returns the enclosing node, or nil for a body root.
func (n *ASTNode) Parent() *ASTNode { return n.parent }

// Children returns the direct children in source order.
func (n *ASTNode) Children() []*ASTNode { return n.children }

// FindChildrenOfKind returns all descendants of the given kind, depth first.
func (n *ASTNode) FindChildrenOfKind(kind ASTKind) []*ASTNode {
	var out []*ASTNode
	n.findChildren(kind, &out)
	return out
}

func (n *ASTNode) findChildren(kind ASTKind, out *[]*ASTNode) {
	for _, c := range n.children {
		if c.kind == kind {
			*out = append(*out, c)
		}
		c.findChildren(kind, out)
	}
}

// DirectChildrenOfKind returns the direct children of the given kind.
func (n *ASTNode) DirectChildrenOfKind(kind ASTKind) []*ASTNode {
	var out []*ASTNode
	for _, c := range n.children {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// CountKinds counts descendants (and the node itself) per kind.
func (n *ASTNode) CountKinds() map[ASTKind]int {
	counts := make(map[ASTKind]int)
	var walk func(*ASTNode)
	walk = func(x *ASTNode) {
		counts[x.kind]++
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return counts
}

// Accept dispatches self-reference and member postfix nodes to v. Other
// kinds are ignored.
func (n *ASTNode) Accept(v SyntaxVisitor) {
	switch n.kind {
	case ASTSelfReference:
		v.VisitSelfReference(n)
	case ASTPropertyPostfix:
		v.VisitPropertyPostfix(n)
	case ASTMethodPostfix:
		v.VisitMethodPostfix(n)
	}
}
