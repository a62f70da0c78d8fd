package compiler

import "errors"

// Static errors, returned by Compile.
var (
	ErrNilLambda        = errors.New("compiler: nil lambda")
	ErrUnboundParameter = errors.New("compiler: unbound parameter")
	ErrNotStruct        = errors.New("compiler: member access on non-struct")
	ErrUnknownMember    = errors.New("compiler: unknown member")
	ErrBadCall          = errors.New("compiler: invalid call")
	ErrNotIndexable     = errors.New("compiler: invalid index")
	ErrResultType       = errors.New("compiler: result type mismatch")
)

// Runtime errors, returned by Accessor.Get.
var (
	ErrNilReference    = errors.New("compiler: nil reference")
	ErrIndexOutOfRange = errors.New("compiler: index out of range")
)
