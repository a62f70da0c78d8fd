package compiler

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/oklog/ulid/v2"
)

// step evaluates one node against the model value.
type step func(root reflect.Value) (reflect.Value, error)

var errorType = reflect.TypeFor[error]()

// Compile type-checks l against T and P and turns it into an Accessor.
// Each call does the full analysis and returns a distinct Accessor.
func Compile[T, P any](l *ast.Lambda[T, P]) (*Accessor[T, P], error) {
	if l == nil || l.Param == nil || l.Body == nil {
		return nil, ErrNilLambda
	}

	b := &builder{param: l.Param, root: reflect.TypeFor[T]()}
	fn, typ, err := b.build(l.Body)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", l, err)
	}

	fn, err = coerce(fn, typ, l.Body, reflect.TypeFor[P](), ErrResultType)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", l, err)
	}

	return &Accessor[T, P]{id: ulid.Make(), expr: l, fn: fn}, nil
}

// builder is an ast.Visitor that leaves the step and static type of the
// last visited node in fn and typ. A nil typ means the untyped nil constant.
type builder struct {
	param *ast.Param
	root  reflect.Type

	fn  step
	typ reflect.Type
}

func (b *builder) build(n ast.Node) (step, reflect.Type, error) {
	if n == nil {
		return nil, nil, ErrNilLambda
	}
	if err := n.Accept(b); err != nil {
		return nil, nil, err
	}
	return b.fn, b.typ, nil
}

func (b *builder) VisitParam(n *ast.Param) error {
	if n.Name != b.param.Name {
		return fmt.Errorf("%w: %q", ErrUnboundParameter, n.Name)
	}
	b.fn = func(root reflect.Value) (reflect.Value, error) { return root, nil }
	b.typ = b.root
	return nil
}

func (b *builder) VisitMember(n *ast.Member) error {
	target, t, err := b.build(n.Target)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: nil.%s", ErrNotStruct, n.Name)
	}

	deref := t.Kind() == reflect.Ptr
	if deref {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s.%s on %s", ErrNotStruct, ast.Format(n.Target), n.Name, t)
	}
	sf, ok := t.FieldByName(n.Name)
	if !ok || !sf.IsExported() {
		return fmt.Errorf("%w: %s has no exported field %q", ErrUnknownMember, t, n.Name)
	}

	index := sf.Index
	where := ast.Format(n)
	b.fn = func(root reflect.Value) (reflect.Value, error) {
		v, err := target(root)
		if err != nil {
			return reflect.Value{}, err
		}
		if deref {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilReference, where)
			}
			v = v.Elem()
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil {
			// nil embedded pointer on a promoted field
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilReference, where)
		}
		return f, nil
	}
	b.typ = sf.Type
	return nil
}

func (b *builder) VisitCall(n *ast.Call) error {
	var (
		recv   step
		ft     reflect.Type
		fv     reflect.Value
		offset int
		method = -1
	)

	if n.IsMethod() {
		r, rt, err := b.build(n.Recv)
		if err != nil {
			return err
		}
		if rt == nil {
			return fmt.Errorf("%w: method %s on nil", ErrBadCall, n.Name)
		}
		m, ok := rt.MethodByName(n.Name)
		if !ok {
			return fmt.Errorf("%w: %s has no method %q", ErrBadCall, rt, n.Name)
		}
		recv, ft, method = r, m.Type, m.Index
		if rt.Kind() != reflect.Interface {
			offset = 1 // receiver is the first input of a concrete method type
		}
	} else {
		fv = reflect.ValueOf(n.Fn)
		if fv.Kind() != reflect.Func || fv.IsNil() {
			return fmt.Errorf("%w: %s is not a function", ErrBadCall, n.Name)
		}
		ft = fv.Type()
	}

	if ft.IsVariadic() {
		return fmt.Errorf("%w: %s is variadic", ErrBadCall, n.Name)
	}
	if ft.NumIn()-offset != len(n.Args) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadCall, n.Name, ft.NumIn()-offset, len(n.Args))
	}
	withErr := ft.NumOut() == 2 && ft.Out(1) == errorType
	if ft.NumOut() != 1 && !withErr {
		return fmt.Errorf("%w: %s must return T or (T, error)", ErrBadCall, n.Name)
	}

	args := make([]step, len(n.Args))
	for i, a := range n.Args {
		fn, typ, err := b.build(a)
		if err != nil {
			return err
		}
		if args[i], err = coerce(fn, typ, a, ft.In(i+offset), ErrBadCall); err != nil {
			return fmt.Errorf("%s argument %d: %w", n.Name, i, err)
		}
	}

	where := ast.Format(n)
	name := n.Name
	b.fn = func(root reflect.Value) (reflect.Value, error) {
		callee := fv
		if recv != nil {
			v, err := recv(root)
			if err != nil {
				return reflect.Value{}, err
			}
			if nillable(v.Kind()) && v.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilReference, where)
			}
			callee = v.Method(method)
		}

		in := make([]reflect.Value, len(args))
		for i, arg := range args {
			v, err := arg(root)
			if err != nil {
				return reflect.Value{}, err
			}
			in[i] = v
		}

		out := callee.Call(in)
		if withErr && !out[1].IsNil() {
			return reflect.Value{}, fmt.Errorf("%s: %w", name, out[1].Interface().(error))
		}
		return out[0], nil
	}
	b.typ = ft.Out(0)
	return nil
}

func (b *builder) VisitConst(n *ast.Const) error {
	v := reflect.ValueOf(n.Value)
	b.fn = func(reflect.Value) (reflect.Value, error) { return v, nil }
	b.typ = nil
	if v.IsValid() {
		b.typ = v.Type()
	}
	return nil
}

func (b *builder) VisitIndex(n *ast.Index) error {
	target, tt, err := b.build(n.Target)
	if err != nil {
		return err
	}
	key, kt, err := b.build(n.Key)
	if err != nil {
		return err
	}
	if tt == nil {
		return fmt.Errorf("%w: index of nil", ErrNotIndexable)
	}

	where := ast.Format(n)
	switch tt.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if kt == nil || !isInteger(kt.Kind()) {
			return fmt.Errorf("%w: %s needs an integer index", ErrNotIndexable, where)
		}
		b.fn = func(root reflect.Value) (reflect.Value, error) {
			v, err := target(root)
			if err != nil {
				return reflect.Value{}, err
			}
			k, err := key(root)
			if err != nil {
				return reflect.Value{}, err
			}
			i, ok := toInt(k)
			if !ok || i < 0 || i >= v.Len() {
				return reflect.Value{}, fmt.Errorf("%w: %s", ErrIndexOutOfRange, where)
			}
			return v.Index(i), nil
		}
		if tt.Kind() == reflect.String {
			b.typ = reflect.TypeFor[byte]()
		} else {
			b.typ = tt.Elem()
		}

	case reflect.Map:
		key, err = coerce(key, kt, n.Key, tt.Key(), ErrNotIndexable)
		if err != nil {
			return err
		}
		elem := tt.Elem()
		b.fn = func(root reflect.Value) (reflect.Value, error) {
			v, err := target(root)
			if err != nil {
				return reflect.Value{}, err
			}
			k, err := key(root)
			if err != nil {
				return reflect.Value{}, err
			}
			if r := v.MapIndex(k); r.IsValid() {
				return r, nil
			}
			return reflect.Zero(elem), nil
		}
		b.typ = elem

	default:
		return fmt.Errorf("%w: cannot index %s", ErrNotIndexable, tt)
	}
	return nil
}

// coerce adapts a step of static type from to the type want, failing with
// kind when no implicit conversion exists. Constants may also be converted
// between numeric types, the way untyped Go constants are.
func coerce(fn step, from reflect.Type, n ast.Node, want reflect.Type, kind error) (step, error) {
	switch {
	case from == nil:
		if !nillable(want.Kind()) {
			return nil, fmt.Errorf("%w: nil is not a %s", kind, want)
		}
		zero := reflect.Zero(want)
		return func(reflect.Value) (reflect.Value, error) { return zero, nil }, nil

	case from == want:
		return fn, nil

	case from.AssignableTo(want):
		return func(root reflect.Value) (reflect.Value, error) {
			v, err := fn(root)
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(want).Elem()
			out.Set(v)
			return out, nil
		}, nil
	}

	if c, ok := n.(*ast.Const); ok && isNumeric(from.Kind()) && isNumeric(want.Kind()) {
		v := reflect.ValueOf(c.Value).Convert(want)
		return func(reflect.Value) (reflect.Value, error) { return v, nil }, nil
	}
	return nil, fmt.Errorf("%w: %s is %s, want %s", kind, ast.Format(n), from, want)
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Int64) || (k >= reflect.Uint && k <= reflect.Uintptr)
}

func isNumeric(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func toInt(v reflect.Value) (int, bool) {
	switch {
	case v.CanInt():
		return int(v.Int()), true
	case v.CanUint():
		u := v.Uint()
		return int(u), u <= uint64(^uint(0)>>1)
	}
	return 0, false
}
