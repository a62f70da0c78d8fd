package ast

import (
	"reflect"

	"github.com/Konsultn-Engineering/accessorcache/utils"
)

// Expr is the type-erased view of a Lambda, handed to collaborators that do
// not know T and P (display name resolvers, loggers).
type Expr interface {
	ParamNode() *Param
	BodyNode() Node
	ParamType() reflect.Type
	ResultType() reflect.Type
	Fingerprint() uint64
	String() string
}

// Lambda is an accessor expression of one parameter of type T producing P,
// e.g. x => x.Address.Line1.
type Lambda[T, P any] struct {
	Param *Param
	Body  Node
}

// New builds a lambda over the parameter named param.
func New[T, P any](param string, body Node) *Lambda[T, P] {
	return &Lambda[T, P]{Param: &Param{Name: param}, Body: body}
}

// Path builds the pure member chain param => param.names[0].names[1]...
func Path[T, P any](param string, names ...string) *Lambda[T, P] {
	p := &Param{Name: param}
	var body Node = p
	for _, name := range names {
		body = &Member{Target: body, Name: name}
	}
	return &Lambda[T, P]{Param: p, Body: body}
}

func (l *Lambda[T, P]) ParamNode() *Param        { return l.Param }
func (l *Lambda[T, P]) BodyNode() Node           { return l.Body }
func (l *Lambda[T, P]) ParamType() reflect.Type  { return reflect.TypeFor[T]() }
func (l *Lambda[T, P]) ResultType() reflect.Type { return reflect.TypeFor[P]() }

// Fingerprint hashes the body structure and the result type. Renaming the
// parameter does not change it.
func (l *Lambda[T, P]) Fingerprint() uint64 {
	f := utils.NewFingerprint("lambda").Tag(l.ResultType().String())
	if l != nil && l.Body != nil {
		f.Child(l.Body.Fingerprint())
	}
	return f.Sum()
}

func (l *Lambda[T, P]) String() string {
	name := "_"
	if l.Param != nil {
		name = l.Param.Name
	}
	if l.Body == nil {
		return name + " => <nil>"
	}
	return name + " => " + Format(l.Body)
}

var _ Expr = (*Lambda[struct{}, int])(nil)
