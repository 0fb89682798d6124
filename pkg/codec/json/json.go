// Package json implements the JSON payload format: one object per message,
// keyed by field name.
package json

import (
	"bytes"
	"fmt"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	json "github.com/goccy/go-json"
)

const formatName = "json"

// Codec holds no mutable state; decoders are created per call.
type Codec struct {
	schema *schema.Schema
	// pre-encoded object keys in field order
	keys [][]byte
	// reject objects carrying keys outside the schema
	strict bool
}

type Option func(*Codec)

// WithStrict makes Decode fail on object keys the schema does not declare.
func WithStrict() Option {
	return func(c *Codec) { c.strict = true }
}

var _ codec.Codec = (*Codec)(nil)

func New(s *schema.Schema, opts ...Option) (*Codec, error) {
	c := &Codec{schema: s, keys: make([][]byte, s.Len())}
	for i, name := range s.Names() {
		k, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		c.keys[i] = k
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Schema() *schema.Schema { return c.schema }

// Encode writes the row as an object whose keys follow schema field order.
// BYTES are base64 and TIMESTAMP values RFC 3339 strings.
func (c *Codec) Encode(row schema.Row) ([]byte, error) {
	if err := c.schema.Validate(row); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(c.keys[i])
		buf.WriteByte(':')
		b, err := json.Marshal(v)
		if err != nil {
			return nil, codec.EncodeError(formatName, fmt.Errorf("field %q: %w", c.schema.Field(i).Name, err))
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode accepts any JSON object. Missing keys decode as null; numbers keep
// full precision until coerced to the field type.
func (c *Codec) Decode(data []byte) (schema.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, codec.DecodeError(formatName, err)
	}
	if obj == nil {
		return nil, codec.DecodeError(formatName, fmt.Errorf("payload is not a JSON object"))
	}
	if c.strict {
		for k := range obj {
			if _, _, ok := c.schema.Lookup(k); !ok {
				return nil, codec.DecodeError(formatName, fmt.Errorf("unknown field %q", k))
			}
		}
	}

	row, err := c.schema.RowFromMap(obj)
	if err != nil {
		return nil, codec.DecodeError(formatName, err)
	}
	return row, nil
}
