package displayname

// Name is a resolved display name or the absent outcome. An absent Name is
// a real answer ("no name for this member"), distinct from "not resolved yet".
type Name struct {
	value   string
	present bool
}

func Of(s string) Name {
	return Name{value: s, present: true}
}

func None() Name {
	return Name{}
}

func (n Name) Get() (string, bool) {
	return n.value, n.present
}

func (n Name) IsNone() bool {
	return !n.present
}

// String returns the name, or "" when absent.
func (n Name) String() string {
	return n.value
}
