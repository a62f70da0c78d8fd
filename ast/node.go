package ast

type NodeType int

const (
	NodeParam NodeType = iota
	NodeMember
	NodeCall
	NodeConst
	NodeIndex
)

func (t NodeType) String() string {
	switch t {
	case NodeParam:
		return "param"
	case NodeMember:
		return "member"
	case NodeCall:
		return "call"
	case NodeConst:
		return "const"
	case NodeIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Node is one step of an accessor expression. The set of implementations is
// closed: *Param, *Member, *Call, *Const and *Index.
type Node interface {
	Type() NodeType
	Accept(v Visitor) error
	Fingerprint() uint64
}
