package testutil

import (
	"errors"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/edgeflare/ktable/pkg/typeregistry"
)

var ErrFactoryBroken = errors.New("factory constructor failed")

// BrokenFactory is a protocol factory type whose constructor always fails.
type BrokenFactory struct{ thrift.TBinaryProtocolFactory }

// PanickingFactory is a protocol factory type whose constructor panics.
type PanickingFactory struct{ thrift.TBinaryProtocolFactory }

// NotAFactory resolves and instantiates but is not a protocol factory.
type NotAFactory struct{}

// NotAStruct resolves but does not implement thrift.TStruct.
type NotAStruct struct {
	ID int64
}

// Registered names of the fixture types.
const (
	BrokenFactoryName    = "test.BrokenFactory"
	PanickingFactoryName = "test.PanickingFactory"
	NotAFactoryName      = "test.NotAFactory"
	NotAStructName       = "test.NotAStruct"
	BinaryFactoryName    = "thrift.TBinaryProtocolFactory"
	CompactFactoryName   = "thrift.TCompactProtocolFactory"
)

// OrderThriftName is the qualified name of the Thrift Order fixture.
var OrderThriftName = typeregistry.TypeFor[Order]().Name

// Registry returns a registry seeded with every fixture type: the Thrift
// Order struct, binary and compact protocol factories, the misbehaving
// factory types and the dynamic protobuf Order message.
func Registry(opts ...typeregistry.Option) *typeregistry.Registry {
	r := typeregistry.New(append([]typeregistry.Option{typeregistry.WithProtoTypes(ProtoTypes())}, opts...)...)

	r.MustRegister(typeregistry.TypeFor[Order]())
	r.MustRegister(typeregistry.TypeFor[NotAFactory]())
	r.MustRegister(typeregistry.TypeFor[NotAStruct]())

	r.MustRegister(named(BinaryFactoryName, typeregistry.TypeWithConstructor(func() (*thrift.TBinaryProtocolFactory, error) {
		return thrift.NewTBinaryProtocolFactoryConf(nil), nil
	})))
	r.MustRegister(named(CompactFactoryName, typeregistry.TypeWithConstructor(func() (*thrift.TCompactProtocolFactory, error) {
		return thrift.NewTCompactProtocolFactoryConf(nil), nil
	})))
	r.MustRegister(named(BrokenFactoryName, typeregistry.TypeWithConstructor(func() (*BrokenFactory, error) {
		return nil, ErrFactoryBroken
	})))
	r.MustRegister(named(PanickingFactoryName, typeregistry.TypeWithConstructor(func() (*PanickingFactory, error) {
		panic("protocol factory exploded")
	})))

	mustAlias(r, NotAFactoryName, typeregistry.TypeFor[NotAFactory]().Name)
	mustAlias(r, NotAStructName, typeregistry.TypeFor[NotAStruct]().Name)
	return r
}

func named(name string, d typeregistry.Descriptor) typeregistry.Descriptor {
	d.Name = name
	return d
}

func mustAlias(r *typeregistry.Registry, alias, name string) {
	if err := r.RegisterAlias(alias, name); err != nil {
		panic(err)
	}
}
