// Package avro implements the Avro payload format. The Avro record schema is
// derived from the table schema, so no schema registry is involved: producers
// and consumers of a topic must agree on the table definition.
package avro

import (
	"fmt"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	json "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

const (
	formatName        = "avro"
	defaultRecordName = "Row"
)

// Codec wraps a goavro codec, which is safe for concurrent use.
type Codec struct {
	schema *schema.Schema
	avro   *goavro.Codec
	// union branch name per field; empty for non-nullable fields
	branches []string
}

type Option func(*options)

type options struct {
	name      string
	namespace string
}

// WithRecordName sets the Avro record name. Defaults to "Row".
func WithRecordName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

var _ codec.Codec = (*Codec)(nil)

func New(s *schema.Schema, opts ...Option) (*Codec, error) {
	o := options{name: defaultRecordName}
	for _, opt := range opts {
		opt(&o)
	}

	def, branches, err := recordSchema(s, o)
	if err != nil {
		return nil, err
	}
	ac, err := goavro.NewCodec(def)
	if err != nil {
		return nil, fmt.Errorf("failed to compile avro schema: %w", err)
	}
	return &Codec{schema: s, avro: ac, branches: branches}, nil
}

// SchemaJSON returns the canonical Avro schema text the codec was compiled from.
func (c *Codec) SchemaJSON() string { return c.avro.CanonicalSchema() }

func (c *Codec) Schema() *schema.Schema { return c.schema }

func (c *Codec) Encode(row schema.Row) ([]byte, error) {
	if err := c.schema.Validate(row); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}

	native := make(map[string]any, len(row))
	for i, v := range row {
		name := c.schema.Field(i).Name
		if c.branches[i] != "" && v != nil {
			native[name] = goavro.Union(c.branches[i], v)
			continue
		}
		native[name] = v
	}

	data, err := c.avro.BinaryFromNative(nil, native)
	if err != nil {
		return nil, codec.EncodeError(formatName, err)
	}
	return data, nil
}

func (c *Codec) Decode(data []byte) (schema.Row, error) {
	native, _, err := c.avro.NativeFromBinary(data)
	if err != nil {
		return nil, codec.DecodeError(formatName, err)
	}
	record, ok := native.(map[string]any)
	if !ok {
		return nil, codec.DecodeError(formatName, fmt.Errorf("expected record, got %T", native))
	}

	row := make(schema.Row, c.schema.Len())
	for i, f := range c.schema.Fields() {
		v := record[f.Name]
		if union, ok := v.(map[string]any); ok {
			// single-entry map keyed by branch name
			for _, inner := range union {
				v = inner
			}
		}
		v, err = f.Coerce(v)
		if err != nil {
			return nil, codec.DecodeError(formatName, err)
		}
		row[i] = v
	}
	return row, nil
}

type avroField struct {
	Name string `json:"name"`
	Type any    `json:"type"`
}

type avroRecord struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace,omitempty"`
	Fields    []avroField `json:"fields"`
}

func recordSchema(s *schema.Schema, o options) (string, []string, error) {
	rec := avroRecord{
		Type:      "record",
		Name:      o.name,
		Namespace: o.namespace,
		Fields:    make([]avroField, 0, s.Len()),
	}
	branches := make([]string, s.Len())

	for i, f := range s.Fields() {
		t, branch, err := avroType(f.Type)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if f.Nullable {
			rec.Fields = append(rec.Fields, avroField{Name: f.Name, Type: []any{"null", t}})
			branches[i] = branch
			continue
		}
		rec.Fields = append(rec.Fields, avroField{Name: f.Name, Type: t})
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return "", nil, err
	}
	return string(b), branches, nil
}

// avroType returns the Avro type for a field type along with the name goavro
// uses for it as a union branch.
func avroType(t schema.FieldType) (any, string, error) {
	switch t {
	case schema.TypeInt32:
		return "int", "int", nil
	case schema.TypeInt64:
		return "long", "long", nil
	case schema.TypeFloat:
		return "float", "float", nil
	case schema.TypeDouble:
		return "double", "double", nil
	case schema.TypeBoolean:
		return "boolean", "boolean", nil
	case schema.TypeString:
		return "string", "string", nil
	case schema.TypeBytes:
		return "bytes", "bytes", nil
	case schema.TypeTimestamp:
		return map[string]string{"type": "long", "logicalType": "timestamp-millis"}, "long.timestamp-millis", nil
	}
	return nil, "", fmt.Errorf("unsupported field type %s", t)
}
