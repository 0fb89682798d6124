// Package proto implements the Protocol Buffers payload format for a message
// type resolved at configuration time. Schema fields map to message fields by
// name; message fields the schema does not declare are ignored on decode and
// left unset on encode.
package proto

import (
	"fmt"
	"time"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	formatName    = "proto"
	timestampName = protoreflect.FullName("google.protobuf.Timestamp")
)

// Codec creates a fresh message per call and is safe for concurrent use.
type Codec struct {
	schema *schema.Schema
	mt     protoreflect.MessageType
	fields []protoreflect.FieldDescriptor
}

var _ codec.Codec = (*Codec)(nil)

// New binds s to the message type mt. Every schema field must exist in the
// message as a singular field of a compatible kind, and nullable fields need
// a message field with presence (proto3 optional, proto2 or message fields).
func New(s *schema.Schema, mt protoreflect.MessageType) (*Codec, error) {
	if mt == nil {
		return nil, fmt.Errorf("message type is required")
	}
	md := mt.Descriptor()
	c := &Codec{schema: s, mt: mt, fields: make([]protoreflect.FieldDescriptor, s.Len())}

	for i, f := range s.Fields() {
		fd := md.Fields().ByName(protoreflect.Name(f.Name))
		if fd == nil {
			fd = md.Fields().ByJSONName(f.Name)
		}
		if fd == nil {
			return nil, &codec.MismatchError{Field: f.Name, Reason: fmt.Sprintf("no such field in %s", md.FullName())}
		}
		if fd.IsList() || fd.IsMap() {
			return nil, &codec.MismatchError{Field: f.Name, Reason: "repeated and map fields are not supported"}
		}
		if !compatible(f.Type, fd) {
			return nil, &codec.MismatchError{
				Field:  f.Name,
				Reason: fmt.Sprintf("%s cannot hold %s values", describe(fd), f.Type),
			}
		}
		if f.Nullable && !fd.HasPresence() {
			return nil, &codec.MismatchError{Field: f.Name, Reason: fmt.Sprintf("%s has no presence and cannot hold null", describe(fd))}
		}
		c.fields[i] = fd
	}
	return c, nil
}

// MessageType returns the bound message type.
func (c *Codec) MessageType() protoreflect.MessageType { return c.mt }

func (c *Codec) Schema() *schema.Schema { return c.schema }

func (c *Codec) Encode(row schema.Row) ([]byte, error) {
	if err := c.schema.Validate(row); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}

	msg := c.mt.New()
	for i, v := range row {
		if v == nil {
			continue
		}
		fd := c.fields[i]
		if fd.Kind() == protoreflect.MessageKind {
			setTimestamp(msg.Mutable(fd).Message(), v.(time.Time))
			continue
		}
		pv, err := toProto(fd, v)
		if err != nil {
			return nil, codec.EncodeError(formatName, err)
		}
		msg.Set(fd, pv)
	}

	data, err := proto.Marshal(msg.Interface())
	if err != nil {
		return nil, codec.EncodeError(formatName, err)
	}
	return data, nil
}

// Decode unmarshals into a new message. Unset nullable fields decode as null;
// other unset fields take the proto default.
func (c *Codec) Decode(data []byte) (schema.Row, error) {
	msg := c.mt.New()
	if err := proto.Unmarshal(data, msg.Interface()); err != nil {
		return nil, codec.DecodeError(formatName, err)
	}

	row := make(schema.Row, c.schema.Len())
	for i, fd := range c.fields {
		f := c.schema.Field(i)
		if f.Nullable && !msg.Has(fd) {
			continue
		}
		v, err := f.Coerce(fromProto(fd, msg.Get(fd)))
		if err != nil {
			return nil, codec.DecodeError(formatName, err)
		}
		row[i] = v
	}
	return row, nil
}

func compatible(t schema.FieldType, fd protoreflect.FieldDescriptor) bool {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return t == schema.TypeInt32
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return t == schema.TypeInt64 || t == schema.TypeTimestamp
	case protoreflect.FloatKind:
		return t == schema.TypeFloat
	case protoreflect.DoubleKind:
		return t == schema.TypeDouble
	case protoreflect.BoolKind:
		return t == schema.TypeBoolean
	case protoreflect.StringKind, protoreflect.EnumKind:
		return t == schema.TypeString
	case protoreflect.BytesKind:
		return t == schema.TypeBytes
	case protoreflect.MessageKind:
		return t == schema.TypeTimestamp && fd.Message().FullName() == timestampName
	}
	return false
}

func describe(fd protoreflect.FieldDescriptor) string {
	if fd.Kind() == protoreflect.MessageKind {
		return fmt.Sprintf("message field of type %s", fd.Message().FullName())
	}
	return fmt.Sprintf("%s field", fd.Kind())
}

func toProto(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	switch x := v.(type) {
	case time.Time:
		return protoreflect.ValueOfInt64(x.UnixMilli()), nil
	case string:
		if fd.Kind() == protoreflect.EnumKind {
			ev := fd.Enum().Values().ByName(protoreflect.Name(x))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf("field %q: unknown %s value %q", fd.Name(), fd.Enum().FullName(), x)
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		}
	}
	return protoreflect.ValueOf(v), nil
}

func fromProto(fd protoreflect.FieldDescriptor, pv protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind:
		return timestamp(pv.Message())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(pv.Enum()); ev != nil {
			return string(ev.Name())
		}
		return fmt.Sprint(int32(pv.Enum()))
	}
	return pv.Interface()
}

// Timestamp messages are accessed by field name so both generated and
// dynamic google.protobuf.Timestamp implementations work.
func setTimestamp(m protoreflect.Message, ts time.Time) {
	fields := m.Descriptor().Fields()
	m.Set(fields.ByName("seconds"), protoreflect.ValueOfInt64(ts.Unix()))
	m.Set(fields.ByName("nanos"), protoreflect.ValueOfInt32(int32(ts.Nanosecond())))
}

func timestamp(m protoreflect.Message) time.Time {
	fields := m.Descriptor().Fields()
	secs := m.Get(fields.ByName("seconds")).Int()
	nanos := m.Get(fields.ByName("nanos")).Int()
	return time.Unix(secs, nanos).UTC()
}
