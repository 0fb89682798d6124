// Package thrift implements the Thrift payload format for a generated struct
// type and a protocol factory, both resolved at configuration time.
//
// Schema fields bind to struct fields through the `thrift:"name,id"` tags the
// Thrift compiler emits. Thrift has no single-precision float, so FLOAT fields
// bind to double and TIMESTAMP fields to i64 unix milliseconds. Nullable
// fields need an optional scalar, which the Go generator emits as a pointer.
// Binary fields are plain slices whose empty and unset states the binary
// protocol does not tell apart, so they only bind non-nullable fields.
package thrift

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
)

const (
	formatName = "thrift"
	bufferSize = 1024
)

var tstructType = reflect.TypeOf((*thrift.TStruct)(nil)).Elem()

// Codec serializes through pooled serializers and is safe for concurrent use.
type Codec struct {
	schema     *schema.Schema
	recordType reflect.Type
	factory    thrift.TProtocolFactory
	fields     [][]int
	ser        *thrift.TSerializerPool
	deser      *thrift.TDeserializerPool
}

var _ codec.Codec = (*Codec)(nil)

// New binds s to the struct type recordType, which may be given as the struct
// or a pointer to it. *recordType must implement thrift.TStruct.
func New(s *schema.Schema, recordType reflect.Type, factory thrift.TProtocolFactory) (*Codec, error) {
	if recordType == nil {
		return nil, fmt.Errorf("record type is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("protocol factory is required")
	}
	if !Readable(factory) {
		return nil, fmt.Errorf("%T: %w", factory, ErrWriteOnlyProtocol)
	}
	for recordType.Kind() == reflect.Pointer {
		recordType = recordType.Elem()
	}
	if recordType.Kind() != reflect.Struct || !reflect.PointerTo(recordType).Implements(tstructType) {
		return nil, fmt.Errorf("%s does not implement thrift.TStruct", recordType)
	}

	byName := structFields(recordType)
	c := &Codec{
		schema:     s,
		recordType: recordType,
		factory:    factory,
		fields:     make([][]int, s.Len()),
		ser:        thrift.NewTSerializerPoolSizeFactory(bufferSize, factory),
		deser:      thrift.NewTDeserializerPoolSizeFactory(bufferSize, factory),
	}

	for i, f := range s.Fields() {
		sf, ok := byName[strings.ToLower(f.Name)]
		if !ok {
			return nil, &codec.MismatchError{Field: f.Name, Reason: fmt.Sprintf("no such field in %s", recordType)}
		}
		if !compatible(f, sf.Type) {
			return nil, &codec.MismatchError{
				Field:  f.Name,
				Reason: fmt.Sprintf("%s field %s cannot hold %s values", recordType, sf.Type, f.Type),
			}
		}
		if f.Nullable && sf.Type.Kind() != reflect.Pointer {
			return nil, &codec.MismatchError{
				Field:  f.Name,
				Reason: fmt.Sprintf("%s field %s is not an optional scalar and cannot hold null", recordType, sf.Name),
			}
		}
		c.fields[i] = sf.Index
	}
	return c, nil
}

// NewRecord allocates a zero value of the bound struct type.
func (c *Codec) NewRecord() thrift.TStruct {
	return reflect.New(c.recordType).Interface().(thrift.TStruct)
}

func (c *Codec) Schema() *schema.Schema { return c.schema }

func (c *Codec) Encode(row schema.Row) ([]byte, error) {
	if err := c.schema.Validate(row); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}

	rec := reflect.New(c.recordType)
	for i, v := range row {
		if v == nil {
			continue
		}
		setField(rec.Elem().FieldByIndex(c.fields[i]), v)
	}

	data, err := c.ser.Write(context.Background(), rec.Interface().(thrift.TStruct))
	if err != nil {
		return nil, codec.EncodeError(formatName, err)
	}
	return data, nil
}

func (c *Codec) Decode(data []byte) (schema.Row, error) {
	rec := reflect.New(c.recordType)
	if err := c.deser.Read(context.Background(), rec.Interface().(thrift.TStruct), data); err != nil {
		return nil, codec.DecodeError(formatName, err)
	}

	row := make(schema.Row, c.schema.Len())
	for i, idx := range c.fields {
		f := c.schema.Field(i)
		v, err := f.Coerce(getField(f.Type, rec.Elem().FieldByIndex(idx)))
		if err != nil {
			return nil, codec.DecodeError(formatName, err)
		}
		row[i] = v
	}
	return row, nil
}

// structFields indexes exported fields by lower-cased thrift tag name and by
// lower-cased Go field name.
func structFields(t reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField)
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if _, ok := out[strings.ToLower(sf.Name)]; !ok {
			out[strings.ToLower(sf.Name)] = sf
		}
	}
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if tag, ok := sf.Tag.Lookup("thrift"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name != "" {
				out[strings.ToLower(name)] = sf
			}
		}
	}
	return out
}

func compatible(f schema.Field, t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch f.Type {
	case schema.TypeInt32:
		return t.Kind() == reflect.Int32
	case schema.TypeInt64, schema.TypeTimestamp:
		return t.Kind() == reflect.Int64
	case schema.TypeFloat, schema.TypeDouble:
		return t.Kind() == reflect.Float64
	case schema.TypeBoolean:
		return t.Kind() == reflect.Bool
	case schema.TypeString:
		return t.Kind() == reflect.String
	case schema.TypeBytes:
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func setField(dst reflect.Value, v any) {
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		setField(p.Elem(), v)
		dst.Set(p)
		return
	}

	switch x := v.(type) {
	case time.Time:
		dst.SetInt(x.UnixMilli())
	case float32:
		dst.SetFloat(float64(x))
	case []byte:
		dst.SetBytes(append([]byte{}, x...))
	default:
		dst.Set(reflect.ValueOf(v).Convert(dst.Type()))
	}
}

// getField returns nil for unset optional fields.
func getField(t schema.FieldType, src reflect.Value) any {
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return nil
		}
		src = src.Elem()
	}

	switch src.Kind() {
	case reflect.Int32:
		return int32(src.Int())
	case reflect.Int64:
		return src.Int()
	case reflect.Float64:
		if t == schema.TypeFloat {
			return float32(src.Float())
		}
		return src.Float()
	case reflect.Bool:
		return src.Bool()
	case reflect.String:
		return src.String()
	case reflect.Slice:
		if src.IsNil() {
			return []byte{}
		}
		return src.Bytes()
	}
	return src.Interface()
}
