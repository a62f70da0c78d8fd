package member

import (
	"reflect"
	"slices"

	"github.com/Konsultn-Engineering/accessorcache/ast"
)

// Extract identifies the member read by l when its body is a pure member
// chain rooted at the parameter (x => x.A.B). Any other shape, or a chain
// that does not resolve on T, yields Absent.
func Extract[T, P any](l *ast.Lambda[T, P]) Ref {
	if l == nil {
		return Absent()
	}
	return ExtractNode(reflect.TypeFor[T](), l.Param, l.Body)
}

// ExtractExpr is Extract for a type-erased expression.
func ExtractExpr(e ast.Expr) Ref {
	if e == nil {
		return Absent()
	}
	return ExtractNode(e.ParamType(), e.ParamNode(), e.BodyNode())
}

// ExtractNode walks body from the outside in. Every step must be a member
// access; the innermost node must be param itself.
func ExtractNode(root reflect.Type, param *ast.Param, body ast.Node) Ref {
	if root == nil || param == nil {
		return Absent()
	}

	var names []string
	n := body
walk:
	for {
		switch cur := n.(type) {
		case *ast.Member:
			names = append(names, cur.Name)
			n = cur.Target
		case *ast.Param:
			if cur.Name != param.Name || len(names) == 0 {
				return Absent()
			}
			break walk
		default:
			// calls, constants, index steps and nil all end here
			return Absent()
		}
	}

	slices.Reverse(names)
	d, err := Lookup(root, names...)
	if err != nil {
		return Absent()
	}
	return Present(d)
}
