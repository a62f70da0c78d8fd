package ast

import (
	"fmt"
	"strconv"
	"strings"
)

type printer struct {
	sb strings.Builder
}

// Format renders n in Go expression syntax.
func Format(n Node) string {
	if n == nil {
		return "<nil>"
	}
	p := &printer{}
	_ = n.Accept(p)
	return p.sb.String()
}

func (p *printer) VisitParam(n *Param) error {
	p.sb.WriteString(n.Name)
	return nil
}

func (p *printer) VisitMember(n *Member) error {
	p.node(n.Target)
	p.sb.WriteByte('.')
	p.sb.WriteString(n.Name)
	return nil
}

func (p *printer) VisitCall(n *Call) error {
	if n.IsMethod() {
		p.node(n.Recv)
		p.sb.WriteByte('.')
	}
	p.sb.WriteString(n.Name)
	p.sb.WriteByte('(')
	for i, arg := range n.Args {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		p.node(arg)
	}
	p.sb.WriteByte(')')
	return nil
}

func (p *printer) VisitConst(n *Const) error {
	switch v := n.Value.(type) {
	case nil:
		p.sb.WriteString("nil")
	case string:
		p.sb.WriteString(strconv.Quote(v))
	case rune:
		p.sb.WriteString(strconv.QuoteRune(v))
	default:
		p.sb.WriteString(fmt.Sprint(v))
	}
	return nil
}

func (p *printer) VisitIndex(n *Index) error {
	p.node(n.Target)
	p.sb.WriteByte('[')
	p.node(n.Key)
	p.sb.WriteByte(']')
	return nil
}

func (p *printer) node(n Node) {
	if n == nil {
		p.sb.WriteString("<nil>")
		return
	}
	_ = n.Accept(p)
}
