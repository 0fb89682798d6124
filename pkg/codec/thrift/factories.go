package thrift

import (
	"errors"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/edgeflare/ktable/pkg/typeregistry"
)

// Short names accepted for the protocol factories shipped with the Thrift
// library, in addition to their qualified Go type names.
const (
	BinaryProtocolFactory  = "thrift.TBinaryProtocolFactory"
	CompactProtocolFactory = "thrift.TCompactProtocolFactory"
	JSONProtocolFactory    = "thrift.TJSONProtocolFactory"
)

// ErrWriteOnlyProtocol is returned for protocol factories whose protocols
// cannot read back what they write.
var ErrWriteOnlyProtocol = errors.New("protocol cannot decode its own output")

func init() {
	RegisterProtocolFactories(typeregistry.Default)
}

// RegisterProtocolFactories registers the library protocol factories with r
// under both their qualified and short names. The simple JSON protocol is
// write-only and left out.
func RegisterProtocolFactories(r *typeregistry.Registry) {
	register(r, BinaryProtocolFactory, typeregistry.TypeWithConstructor(func() (*thrift.TBinaryProtocolFactory, error) {
		return thrift.NewTBinaryProtocolFactoryConf(&thrift.TConfiguration{}), nil
	}))
	register(r, CompactProtocolFactory, typeregistry.TypeWithConstructor(func() (*thrift.TCompactProtocolFactory, error) {
		return thrift.NewTCompactProtocolFactoryConf(&thrift.TConfiguration{}), nil
	}))
	register(r, JSONProtocolFactory, typeregistry.TypeWithConstructor(func() (*thrift.TJSONProtocolFactory, error) {
		return thrift.NewTJSONProtocolFactory(), nil
	}))
}

func register(r *typeregistry.Registry, alias string, d typeregistry.Descriptor) {
	r.MustRegister(d)
	if err := r.RegisterAlias(alias, d.Name); err != nil {
		panic(err)
	}
}

// Readable reports whether protocols made by factory can decode payloads.
func Readable(factory thrift.TProtocolFactory) bool {
	switch factory.(type) {
	case *thrift.TSimpleJSONProtocolFactory:
		return false
	}
	return true
}
