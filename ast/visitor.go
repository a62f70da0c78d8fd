package ast

type Visitor interface {
	VisitParam(*Param) error
	VisitMember(*Member) error
	VisitCall(*Call) error
	VisitConst(*Const) error
	VisitIndex(*Index) error
}
