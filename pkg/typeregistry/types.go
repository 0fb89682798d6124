package typeregistry

import (
	"reflect"
)

// QualifiedName returns the import-path qualified name of a named type,
// eg "github.com/apache/thrift/lib/go/thrift.TBinaryProtocolFactory".
// Pointer types are dereferenced first.
func QualifiedName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// TypeFor returns a descriptor for T named by its qualified name. The
// constructor returns a pointer to a new zero value, so pointer-receiver
// interfaces (thrift.TStruct, protocol factories) are satisfied.
func TypeFor[T any]() Descriptor {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Descriptor{
		Name: QualifiedName(t),
		Type: t,
		New: func() (any, error) {
			return reflect.New(t).Interface(), nil
		},
	}
}

// TypeWithConstructor returns a descriptor for T that instantiates through ctor
// instead of allocating a zero value.
func TypeWithConstructor[T any](ctor func() (T, error)) Descriptor {
	d := TypeFor[T]()
	d.New = func() (any, error) {
		return ctor()
	}
	return d
}
