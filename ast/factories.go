package ast

func P(name string) *Param {
	return &Param{Name: name}
}

func Field(target Node, name string) *Member {
	return &Member{Target: target, Name: name}
}

// Fields chains several member reads: Fields(P("x"), "A", "B") is x.A.B.
func Fields(target Node, names ...string) Node {
	for _, name := range names {
		target = &Member{Target: target, Name: name}
	}
	return target
}

func Fn(name string, fn any, args ...Node) *Call {
	return &Call{Name: name, Fn: fn, Args: args}
}

func MethodOf(recv Node, name string, args ...Node) *Call {
	return &Call{Name: name, Recv: recv, Args: args}
}

func Value(v any) *Const {
	return &Const{Value: v}
}

func At(target, key Node) *Index {
	return &Index{Target: target, Key: key}
}
