// Package schema describes the ordered, typed fields of a table and the rows
// that conform to them.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateField = errors.New("duplicate field name")
	ErrEmptyFieldName = errors.New("empty field name")
	ErrRowMismatch    = errors.New("row does not match schema")
)

// FieldType is the logical type of a field
type FieldType int

const (
	TypeUnknown FieldType = iota
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeString
	TypeBytes
	TypeTimestamp
)

var fieldTypeNames = map[FieldType]string{
	TypeInt32:     "INT32",
	TypeInt64:     "INT64",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
	TypeBoolean:   "BOOLEAN",
	TypeString:    "STRING",
	TypeBytes:     "BYTES",
	TypeTimestamp: "TIMESTAMP",
}

// aliases accepted by ParseFieldType in addition to the canonical names
var fieldTypeAliases = map[string]FieldType{
	"INT":      TypeInt32,
	"INTEGER":  TypeInt32,
	"BIGINT":   TypeInt64,
	"LONG":     TypeInt64,
	"FLOAT32":  TypeFloat,
	"FLOAT64":  TypeDouble,
	"BOOL":     TypeBoolean,
	"VARCHAR":  TypeString,
	"TEXT":     TypeString,
	"BINARY":   TypeBytes,
	"DATETIME": TypeTimestamp,
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// ParseFieldType returns the FieldType for a case-insensitive type name.
func ParseFieldType(name string) (FieldType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range fieldTypeNames {
		if n == upper {
			return t, nil
		}
	}
	if t, ok := fieldTypeAliases[upper]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("unknown field type: %q", name)
}

// Field is a single named, typed column.
type Field struct {
	Name     string    `mapstructure:"name"`
	Type     FieldType `mapstructure:"type"`
	Nullable bool      `mapstructure:"nullable"`
}

// Schema is an immutable ordered sequence of fields with unique names.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New validates fields and returns a Schema.
func New(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: %w", i, ErrEmptyFieldName)
		}
		if _, ok := fieldTypeNames[f.Type]; !ok {
			return nil, fmt.Errorf("field %q: unknown type %s", f.Name, f.Type)
		}
		if _, exists := s.index[f.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and static schemas.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the schema fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Len() int { return len(s.fields) }

func (s *Schema) Field(i int) Field { return s.fields[i] }

// Lookup returns the field with the given name and its position.
func (s *Schema) Lookup(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.fields[i], i, true
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks that row has one value per field and that every value
// has the canonical Go type of its field.
func (s *Schema) Validate(row Row) error {
	if len(row) != len(s.fields) {
		return fmt.Errorf("%w: expected %d values, got %d", ErrRowMismatch, len(s.fields), len(row))
	}
	for i, f := range s.fields {
		if err := f.check(row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) check(v any) error {
	if v == nil {
		if f.Nullable {
			return nil
		}
		return fmt.Errorf("%w: field %q is not nullable", ErrRowMismatch, f.Name)
	}
	if !f.Type.accepts(v) {
		return fmt.Errorf("%w: field %q expects %s, got %T", ErrRowMismatch, f.Name, f.Type, v)
	}
	return nil
}
