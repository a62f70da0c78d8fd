package member

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrEmptyPath is returned when no member names are given.
	ErrEmptyPath = errors.New("member: empty path")
	// ErrNotStruct is returned when a path step is taken on a non-struct type.
	ErrNotStruct = errors.New("member: not a struct")
	// ErrUnknownMember is returned when a step names no exported field.
	ErrUnknownMember = errors.New("member: unknown member")
)

// Descriptor identifies a field reached from a model type.
//
// Descriptors are comparable with ==; two descriptors are equal exactly when
// they denote the same member path from the same root.
type Descriptor struct {
	// Root is the model type the path starts at.
	Root reflect.Type
	// Declaring is the struct type that declares the field. For promoted
	// fields this is the embedded type, not the outer struct.
	Declaring reflect.Type
	// Name is the field name.
	Name string
	// Type is the field's type.
	Type reflect.Type
	// Path is the dotted member chain from Root, e.g. "Address.Line1".
	// Promoted fields are spelled through their embedded structs, so
	// CreatedBy and Audit.CreatedBy give the same Path.
	Path string
}

func (d Descriptor) String() string {
	if d.Root == nil {
		return "<invalid>"
	}
	return d.Root.String() + "." + d.Path
}

// IsZero reports whether d is the zero Descriptor.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// Lookup resolves path from root. Pointers are followed at every step the
// same way a Go selector expression follows them.
func Lookup(root reflect.Type, path ...string) (Descriptor, error) {
	if root == nil {
		return Descriptor{}, fmt.Errorf("%w: nil root type", ErrNotStruct)
	}
	if len(path) == 0 {
		return Descriptor{}, ErrEmptyPath
	}

	t := root
	var (
		d     Descriptor
		steps []string
	)
	for i, name := range path {
		sf, declaring, spelled, err := field(t, name)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%s: %w", strings.Join(path[:i+1], "."), err)
		}
		d = Descriptor{
			Root:      root,
			Declaring: declaring,
			Name:      sf.Name,
			Type:      sf.Type,
		}
		steps = append(steps, spelled...)
		t = sf.Type
	}
	d.Path = strings.Join(steps, ".")
	return d, nil
}

// Of is Lookup for a statically known root type.
func Of[T any](path ...string) (Descriptor, error) {
	return Lookup(reflect.TypeFor[T](), path...)
}

// MustOf is Of that panics on error.
func MustOf[T any](path ...string) Descriptor {
	d, err := Of[T](path...)
	if err != nil {
		panic(err)
	}
	return d
}

// field finds the exported field name on t (auto-dereferencing one pointer),
// the struct type that declares it and the field names along its index, so
// a promoted field is spelled through its embedded structs.
func field(t reflect.Type, name string) (reflect.StructField, reflect.Type, []string, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, nil, nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}
	sf, ok := t.FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.StructField{}, nil, nil, fmt.Errorf("%w: %s has no exported field %q", ErrUnknownMember, t, name)
	}

	names := make([]string, 0, len(sf.Index))
	declaring := t
	for _, i := range sf.Index[:len(sf.Index)-1] {
		embedded := declaring.Field(i)
		names = append(names, embedded.Name)
		declaring = embedded.Type
		if declaring.Kind() == reflect.Ptr {
			declaring = declaring.Elem()
		}
	}
	return sf, declaring, append(names, sf.Name), nil
}
