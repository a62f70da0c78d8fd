package member

// Ref is either a Descriptor or the explicit absent outcome. Absent means the
// member could not be identified and the expression is not cacheable by
// member identity.
type Ref struct {
	desc    Descriptor
	present bool
}

// Present wraps d.
func Present(d Descriptor) Ref {
	return Ref{desc: d, present: true}
}

// Absent is the "not extractable" outcome.
func Absent() Ref {
	return Ref{}
}

// Get returns the descriptor and whether it is present.
func (r Ref) Get() (Descriptor, bool) {
	return r.desc, r.present
}

func (r Ref) IsAbsent() bool {
	return !r.present
}

func (r Ref) String() string {
	if !r.present {
		return "<absent>"
	}
	return r.desc.String()
}
