package compiler

import (
	"reflect"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/oklog/ulid/v2"
)

// Accessor is a compiled lambda. Every compilation produces a new Accessor
// with its own ID, so two accessors are the same only if they are the same
// pointer.
type Accessor[T, P any] struct {
	id   ulid.ULID
	expr *ast.Lambda[T, P]
	fn   step
}

// Get evaluates the accessor against model.
func (a *Accessor[T, P]) Get(model T) (P, error) {
	var zero P
	out, err := a.fn(reflect.ValueOf(&model).Elem())
	if err != nil {
		return zero, err
	}
	if !out.IsValid() {
		return zero, nil
	}
	p, _ := out.Interface().(P)
	return p, nil
}

// Func returns Get as a plain function value.
func (a *Accessor[T, P]) Func() func(T) (P, error) {
	return a.Get
}

// ID is unique per compilation and sorts by creation time.
func (a *Accessor[T, P]) ID() ulid.ULID { return a.id }

// Expr returns the lambda this accessor was compiled from.
func (a *Accessor[T, P]) Expr() *ast.Lambda[T, P] { return a.expr }

func (a *Accessor[T, P]) String() string {
	return a.expr.String() + " #" + a.id.String()
}
