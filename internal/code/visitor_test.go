package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingVisitor records handler calls and descends into everything.
type recordingVisitor struct {
	calls []string
}

func (r *recordingVisitor) VisitPackage(p *Package) {
	r.calls = append(r.calls, "package:"+p.Name())
	VisitTypes(r, p)
	VisitFunctions(r, p)
}

func (r *recordingVisitor) VisitClass(t *Type) {
	r.calls = append(r.calls, "class:"+t.Name())
	VisitMembers(r, t)
}

func (r *recordingVisitor) VisitInterface(t *Type) {
	r.calls = append(r.calls, "interface:"+t.Name())
}

func (r *recordingVisitor) VisitFunction(f *Function) {
	r.calls = append(r.calls, "function:"+f.Name())
}

func (r *recordingVisitor) VisitMethod(m *Method) {
	r.calls = append(r.calls, "method:"+m.Name())
}

func (r *recordingVisitor) VisitProperty(p *Property) {
	r.calls = append(r.calls, "property:"+p.Name())
}

// classOnly handles only classes; everything else is a no-op.
type classOnly struct {
	NopVisitor
	classes []string
}

func (c *classOnly) VisitPackage(p *Package) { VisitTypes(c, p) }
func (c *classOnly) VisitClass(t *Type)      { c.classes = append(c.classes, t.Name()) }

func buildVisitorFixture() []*Package {
	b := NewBuilder()
	pkg := b.Package("shop")
	cart, _ := b.Class(pkg, "Cart", Position{})
	_, _ = b.Property(cart, "items", PropertySpec{})
	_, _ = b.Method(cart, "Add", MethodSpec{})
	_, _ = b.Interface(pkg, "Pricer", Position{})
	_, _ = b.Function(pkg, "NewCart", Position{})
	return b.Packages()
}

func TestWalk_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("PerKindHandlers", func(t *testing.T) {
		t.Parallel()
		v := &recordingVisitor{}
		Walk(v, buildVisitorFixture())

		assert.Equal(t, []string{
			"package:shop",
			"class:Cart",
			"property:items",
			"method:Add",
			"interface:Pricer",
			"function:NewCart",
		}, v.calls)
	})

	t.Run("UnhandledKindsAreNoOps", func(t *testing.T) {
		t.Parallel()
		v := &classOnly{}
		Walk(v, buildVisitorFixture())

		assert.Equal(t, []string{"Cart"}, v.classes)
	})

	t.Run("NoAutoRecursion", func(t *testing.T) {
		t.Parallel()
		v := &recordingVisitor{}
		pkgs := buildVisitorFixture()
		// A bare class visit does not reach into the package's other types.
		pkgs[0].Types()[0].Accept(v)
		assert.Equal(t, []string{"class:Cart", "property:items", "method:Add"}, v.calls)
	})
}

type syntaxRecorder struct {
	selfRefs   int
	properties []string
	methods    []string
}

func (s *syntaxRecorder) VisitSelfReference(*ASTNode) { s.selfRefs++ }
func (s *syntaxRecorder) VisitPropertyPostfix(n *ASTNode) {
	s.properties = append(s.properties, n.Image())
}
func (s *syntaxRecorder) VisitMethodPostfix(n *ASTNode) {
	s.methods = append(s.methods, n.Image())
}

func TestWalkSyntax(t *testing.T) {
	t.Parallel()

	root := NewASTNode(ASTBlock, "", 1,
		NewASTNode(ASTIfStatement, "", 2,
			NewASTNode(ASTMemberPrimaryPrefix, "", 2,
				NewASTNode(ASTSelfReference, "c", 2),
				NewASTNode(ASTPropertyPostfix, "items", 2),
			),
		),
		NewASTNode(ASTMemberPrimaryPrefix, "", 3,
			NewASTNode(ASTSelfReference, "c", 3),
			NewASTNode(ASTMethodPostfix, "reset", 3),
		),
	)

	rec := &syntaxRecorder{}
	WalkSyntax(rec, root)

	assert.Equal(t, 2, rec.selfRefs)
	assert.Equal(t, []string{"items"}, rec.properties)
	assert.Equal(t, []string{"reset"}, rec.methods)
	assert.Len(t, root.FindChildrenOfKind(ASTSelfReference), 2)
	assert.Len(t, root.DirectChildrenOfKind(ASTMemberPrimaryPrefix), 1)
	assert.Equal(t, 1, root.CountKinds()[ASTIfStatement])

	WalkSyntax(rec, nil)
	assert.Equal(t, 2, rec.selfRefs)
}
