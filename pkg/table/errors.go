package table

import (
	"errors"
	"fmt"

	thriftcodec "github.com/edgeflare/ktable/pkg/codec/thrift"
	"github.com/edgeflare/ktable/pkg/typeregistry"
)

var (
	ErrMissingProperty    = errors.New("missing required property")
	ErrInvalidProperty    = errors.New("invalid property value")
	ErrUnknownFormat      = errors.New("unknown payload format")
	ErrUnsupportedFormat  = errors.New("unsupported payload format")
	ErrSchemaMismatch     = errors.New("schema does not match record type")
	ErrNilSchema          = errors.New("schema is required")
	ErrNotProtoMessage    = errors.New("type is not a protobuf message")
	ErrNotThriftStruct    = errors.New("type does not implement thrift.TStruct")
	ErrNotProtocolFactory = errors.New("type is not a thrift.TProtocolFactory")
	ErrWriteOnlyProtocol  = thriftcodec.ErrWriteOnlyProtocol

	// Re-exported so callers can match every build failure from this package.
	ErrTypeNotFound      = typeregistry.ErrTypeNotFound
	ErrTypeInstantiation = typeregistry.ErrTypeInstantiation
)

// TypeNotFoundError and TypeInstantiationError are raised by the type registry.
type (
	TypeNotFoundError      = typeregistry.TypeNotFoundError
	TypeInstantiationError = typeregistry.TypeInstantiationError
)

// MissingPropertyError reports a required property that is absent or empty.
type MissingPropertyError struct {
	Key string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("missing required property: %s", e.Key)
}

func (e *MissingPropertyError) Is(target error) bool { return target == ErrMissingProperty }

// UnknownFormatError carries the format name as the user spelled it.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown payload format: %q", e.Name)
}

func (e *UnknownFormatError) Is(target error) bool { return target == ErrUnknownFormat }

// UnsupportedFormatError is returned for a PayloadFormat value with no
// construction rule.
type UnsupportedFormatError struct {
	Format PayloadFormat
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported payload format: %s", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// SchemaMismatchError reports a schema the codec for a format could not be
// bound to. Field is empty when the failure is not specific to one field.
type SchemaMismatchError struct {
	Format PayloadFormat
	Field  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch for %s: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("schema mismatch for %s: field %q: %s", e.Format, e.Field, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// InvalidPropertyError reports an optional property whose value cannot be used.
type InvalidPropertyError struct {
	Key   string
	Value any
	Cause error
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid value %v for property %s: %v", e.Value, e.Key, e.Cause)
}

func (e *InvalidPropertyError) Is(target error) bool { return target == ErrInvalidProperty }

func (e *InvalidPropertyError) Unwrap() error { return e.Cause }
