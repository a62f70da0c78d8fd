package ast

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/accessorcache/utils"
)

// Param references the single lambda parameter (the model).
type Param struct {
	Name string
}

func (p *Param) Type() NodeType         { return NodeParam }
func (p *Param) Accept(v Visitor) error { return v.VisitParam(p) }

// Fingerprint ignores the parameter name so that x => x.Name and
// m => m.Name hash the same.
func (p *Param) Fingerprint() uint64 {
	return fingerprint(p).Sum()
}

// Member reads the field Name off the value produced by Target.
type Member struct {
	Target Node
	Name   string
}

func (m *Member) Type() NodeType         { return NodeMember }
func (m *Member) Accept(v Visitor) error { return v.VisitMember(m) }
func (m *Member) Fingerprint() uint64 {
	f := fingerprint(m).Tag(m.Name)
	return child(f, m.Target).Sum()
}

// Call invokes a function, or a method when Recv is set.
//
// For plain calls Fn holds the Go func value and Name is only used for
// printing. For method calls Fn is nil and Name is the method name looked
// up on Recv's type.
type Call struct {
	Name string
	Fn   any
	Recv Node
	Args []Node
}

func (c *Call) Type() NodeType         { return NodeCall }
func (c *Call) Accept(v Visitor) error { return v.VisitCall(c) }
func (c *Call) Fingerprint() uint64 {
	f := fingerprint(c).Tag(c.Name)
	if c.IsMethod() {
		child(f.Tag("recv"), c.Recv)
	} else if fv := reflect.ValueOf(c.Fn); fv.Kind() == reflect.Func {
		// same name, different func value: different expression
		f.Child(uint64(fv.Pointer()))
	}
	for _, arg := range c.Args {
		child(f, arg)
	}
	return f.Sum()
}

// IsMethod reports whether the call dispatches on a receiver.
func (c *Call) IsMethod() bool { return c.Recv != nil }

// Const is a literal value.
type Const struct {
	Value any
}

func (c *Const) Type() NodeType         { return NodeConst }
func (c *Const) Accept(v Visitor) error { return v.VisitConst(c) }
func (c *Const) Fingerprint() uint64 {
	return fingerprint(c).Tag(fmt.Sprintf("%T:%v", c.Value, c.Value)).Sum()
}

// Index reads Target[Key] from a slice, array, string or map.
type Index struct {
	Target Node
	Key    Node
}

func (i *Index) Type() NodeType         { return NodeIndex }
func (i *Index) Accept(v Visitor) error { return v.VisitIndex(i) }
func (i *Index) Fingerprint() uint64 {
	f := fingerprint(i)
	return child(child(f, i.Target), i.Key).Sum()
}

func fingerprint(n Node) *utils.Fingerprint {
	return utils.NewFingerprint(n.Type().String())
}

// child folds n in; a missing child hashes as zero.
func child(f *utils.Fingerprint, n Node) *utils.Fingerprint {
	if n == nil {
		return f.Child(0)
	}
	return f.Child(n.Fingerprint())
}
