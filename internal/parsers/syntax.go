package parsers

import (
	"go/ast"
	"go/token"

	"github.com/Benny93/axon-metrics/internal/code"
)

// syntaxConverter maps a go/ast body onto code syntax nodes.
//
// Selector expressions on the receiver become a member primary prefix
// holding a self reference and a property or method postfix. Nodes that no
// analyzer distinguishes are kept as generic expressions so the tree shape
// follows the source.
type syntaxConverter struct {
	fset     *token.FileSet
	receiver string
}

func (c *syntaxConverter) line(n ast.Node) int {
	return c.fset.Position(n.Pos()).Line
}

func (c *syntaxConverter) convert(n ast.Node) *code.ASTNode {
	switch x := n.(type) {
	case *ast.BlockStmt:
		return c.withChildren(code.NewASTNode(code.ASTBlock, "", c.line(x)), x)
	case *ast.IfStmt:
		return c.withChildren(code.NewASTNode(code.ASTIfStatement, "if", c.line(x)), x)
	case *ast.ForStmt:
		return c.withChildren(code.NewASTNode(code.ASTForStatement, "for", c.line(x)), x)
	case *ast.RangeStmt:
		return c.withChildren(code.NewASTNode(code.ASTForStatement, "range", c.line(x)), x)
	case *ast.CaseClause:
		image := "case"
		if x.List == nil {
			image = "default"
		}
		return c.withChildren(code.NewASTNode(code.ASTSwitchCase, image, c.line(x)), x)
	case *ast.CommClause:
		image := "case"
		if x.Comm == nil {
			image = "default"
		}
		return c.withChildren(code.NewASTNode(code.ASTCommClause, image, c.line(x)), x)
	case *ast.BinaryExpr:
		switch x.Op {
		case token.LAND:
			return c.withChildren(code.NewASTNode(code.ASTLogicalAnd, "&&", c.line(x)), x)
		case token.LOR:
			return c.withChildren(code.NewASTNode(code.ASTLogicalOr, "||", c.line(x)), x)
		}
		return c.withChildren(code.NewASTNode(code.ASTExpression, x.Op.String(), c.line(x)), x)
	case *ast.CallExpr:
		call := code.NewASTNode(code.ASTFunctionCall, "", c.line(x))
		if sel, ok := x.Fun.(*ast.SelectorExpr); ok && c.isReceiver(sel.X) {
			call.AddChild(c.member(sel, code.ASTMethodPostfix))
		} else {
			call.AddChild(c.convert(x.Fun))
		}
		for _, arg := range x.Args {
			call.AddChild(c.convert(arg))
		}
		return call
	case *ast.SelectorExpr:
		if c.isReceiver(x.X) {
			return c.member(x, code.ASTPropertyPostfix)
		}
		return c.withChildren(code.NewASTNode(code.ASTExpression, x.Sel.Name, c.line(x)), x)
	case *ast.Ident:
		return code.NewASTNode(code.ASTIdentifier, x.Name, c.line(x))
	default:
		return c.withChildren(code.NewASTNode(code.ASTExpression, "", c.line(n)), n)
	}
}

func (c *syntaxConverter) isReceiver(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && c.receiver != "" && c.receiver != "_" && id.Name == c.receiver
}

func (c *syntaxConverter) member(sel *ast.SelectorExpr, kind code.ASTKind) *code.ASTNode {
	line := c.line(sel)
	return code.NewASTNode(code.ASTMemberPrimaryPrefix, "", line,
		code.NewASTNode(code.ASTSelfReference, c.receiver, line),
		code.NewASTNode(kind, sel.Sel.Name, c.fset.Position(sel.Sel.Pos()).Line))
}

// withChildren converts the direct children of src and appends them to dst.
func (c *syntaxConverter) withChildren(dst *code.ASTNode, src ast.Node) *code.ASTNode {
	ast.Inspect(src, func(child ast.Node) bool {
		if child == nil {
			return false
		}
		if child == src {
			return true
		}
		dst.AddChild(c.convert(child))
		return false
	})
	return dst
}
