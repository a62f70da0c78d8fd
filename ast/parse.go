package ast

import (
	"errors"
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

var (
	// ErrMalformedLambda is returned when the source is not of the form "x => expr".
	ErrMalformedLambda = errors.New("ast: malformed lambda")
	// ErrUnsupportedSyntax is returned for Go syntax outside the accessor subset.
	ErrUnsupportedSyntax = errors.New("ast: unsupported syntax")
)

// reserved names cannot be used as the parameter: the parameter would
// shadow the literal of the same name.
var reserved = map[string]bool{"_": true, "nil": true, "true": true, "false": true}

type parseConfig struct {
	funcs map[string]any
}

type ParseOption func(*parseConfig)

// WithFunc makes fn callable as name(...) inside parsed expressions.
func WithFunc(name string, fn any) ParseOption {
	return func(c *parseConfig) { c.funcs[name] = fn }
}

// Parse reads a lambda written as "x => <expr>" where <expr> is a Go
// expression built from the parameter, selectors, calls to registered
// functions, method calls, index expressions and literals.
func Parse[T, P any](src string, opts ...ParseOption) (*Lambda[T, P], error) {
	cfg := &parseConfig{funcs: map[string]any{}}
	for _, opt := range opts {
		opt(cfg)
	}

	head, body, ok := strings.Cut(src, "=>")
	if !ok {
		return nil, fmt.Errorf("%w: missing \"=>\" in %q", ErrMalformedLambda, src)
	}
	name := strings.TrimSpace(head)
	if !token.IsIdentifier(name) || reserved[name] {
		return nil, fmt.Errorf("%w: invalid parameter %q", ErrMalformedLambda, name)
	}

	expr, err := parser.ParseExpr(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLambda, err)
	}

	c := &converter{param: &Param{Name: name}, funcs: cfg.funcs}
	node, err := c.convert(expr)
	if err != nil {
		return nil, err
	}
	return &Lambda[T, P]{Param: c.param, Body: node}, nil
}

// MustParse is Parse that panics on error. Intended for package-level rule
// declarations and tests.
func MustParse[T, P any](src string, opts ...ParseOption) *Lambda[T, P] {
	l, err := Parse[T, P](src, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

type converter struct {
	param *Param
	funcs map[string]any
}

func (c *converter) convert(e goast.Expr) (Node, error) {
	switch e := e.(type) {
	case *goast.ParenExpr:
		return c.convert(e.X)

	case *goast.Ident:
		switch e.Name {
		case c.param.Name:
			return c.param, nil
		case "nil":
			return &Const{Value: nil}, nil
		case "true":
			return &Const{Value: true}, nil
		case "false":
			return &Const{Value: false}, nil
		}
		return nil, fmt.Errorf("%w: unknown identifier %q", ErrUnsupportedSyntax, e.Name)

	case *goast.SelectorExpr:
		target, err := c.convert(e.X)
		if err != nil {
			return nil, err
		}
		return &Member{Target: target, Name: e.Sel.Name}, nil

	case *goast.CallExpr:
		return c.call(e)

	case *goast.IndexExpr:
		target, err := c.convert(e.X)
		if err != nil {
			return nil, err
		}
		key, err := c.convert(e.Index)
		if err != nil {
			return nil, err
		}
		return &Index{Target: target, Key: key}, nil

	case *goast.BasicLit:
		return literal(e.Kind, e.Value, false)

	case *goast.UnaryExpr:
		if lit, ok := e.X.(*goast.BasicLit); ok && e.Op == token.SUB {
			return literal(lit.Kind, lit.Value, true)
		}
		return nil, fmt.Errorf("%w: unary %s", ErrUnsupportedSyntax, e.Op)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedSyntax, e)
}

func (c *converter) call(e *goast.CallExpr) (Node, error) {
	if e.Ellipsis.IsValid() {
		return nil, fmt.Errorf("%w: variadic call", ErrUnsupportedSyntax)
	}
	args := make([]Node, 0, len(e.Args))
	for _, a := range e.Args {
		n, err := c.convert(a)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}

	switch fun := e.Fun.(type) {
	case *goast.Ident:
		fn, ok := c.funcs[fun.Name]
		if !ok {
			return nil, fmt.Errorf("%w: unregistered function %q", ErrUnsupportedSyntax, fun.Name)
		}
		return &Call{Name: fun.Name, Fn: fn, Args: args}, nil
	case *goast.SelectorExpr:
		recv, err := c.convert(fun.X)
		if err != nil {
			return nil, err
		}
		return &Call{Name: fun.Sel.Name, Recv: recv, Args: args}, nil
	}
	return nil, fmt.Errorf("%w: call of %T", ErrUnsupportedSyntax, e.Fun)
}

func literal(kind token.Token, raw string, negate bool) (Node, error) {
	switch kind {
	case token.INT:
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSyntax, err)
		}
		if negate {
			v = -v
		}
		return &Const{Value: int(v)}, nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSyntax, err)
		}
		if negate {
			v = -v
		}
		return &Const{Value: v}, nil
	}
	if negate {
		return nil, fmt.Errorf("%w: negated %s literal", ErrUnsupportedSyntax, kind)
	}
	switch kind {
	case token.STRING:
		v, err := strconv.Unquote(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSyntax, err)
		}
		return &Const{Value: v}, nil
	case token.CHAR:
		v, _, _, err := strconv.UnquoteChar(raw[1:len(raw)-1], '\'')
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSyntax, err)
		}
		return &Const{Value: v}, nil
	}
	return nil, fmt.Errorf("%w: %s literal", ErrUnsupportedSyntax, kind)
}
