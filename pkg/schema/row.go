package schema

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Row holds one value per schema field, in schema order.
type Row []any

// Map returns the row as a field name to value map.
func (s *Schema) Map(row Row) map[string]any {
	m := make(map[string]any, len(s.fields))
	for i, f := range s.fields {
		if i < len(row) {
			m[f.Name] = row[i]
		}
	}
	return m
}

// RowFromMap builds a row from a loosely typed map, coercing each value to the
// canonical type of its field. Missing keys become nil.
func (s *Schema) RowFromMap(m map[string]any) (Row, error) {
	row := make(Row, len(s.fields))
	for i, f := range s.fields {
		v, err := f.Coerce(m[f.Name])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// Coerce converts v to the canonical Go type of the field. Strings are
// parsed, numbers are converted when no precision is lost and timestamps
// accept RFC 3339 strings or unix milliseconds.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: field %q is not nullable", ErrRowMismatch, f.Name)
	}
	out, err := f.Type.coerce(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrRowMismatch, f.Name, err)
	}
	return out, nil
}

func (t FieldType) accepts(v any) bool {
	switch t {
	case TypeInt32:
		_, ok := v.(int32)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float32)
		return ok
	case TypeDouble:
		_, ok := v.(float64)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}

func (t FieldType) coerce(v any) (any, error) {
	if t.accepts(v) {
		if ts, ok := v.(time.Time); ok {
			return ts.UTC(), nil
		}
		return v, nil
	}

	switch t {
	case TypeInt32:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows INT32", n)
		}
		return int32(n), nil
	case TypeInt64:
		return toInt64(v)
	case TypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case TypeDouble:
		return toFloat64(v)
	case TypeBoolean:
		if s, ok := v.(string); ok {
			return strconv.ParseBool(strings.TrimSpace(s))
		}
	case TypeString:
		switch x := v.(type) {
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case TypeBytes:
		if s, ok := v.(string); ok {
			return base64.StdEncoding.DecodeString(s)
		}
	case TypeTimestamp:
		switch x := v.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
			if err != nil {
				return nil, err
			}
			return ts.UTC(), nil
		default:
			ms, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		return parseInt(x)
	case fmt.Stringer:
		// json.Number and similar
		return parseInt(x.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows INT64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return floatToInt(rv.Float())
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

// parseInt accepts integral decimal text such as "3" or "3.0".
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case fmt.Stringer:
		return strconv.ParseFloat(x.String(), 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

// FieldTypeHook is a mapstructure decode hook turning type names such as
// "int64" or "varchar" into FieldType values.
func FieldTypeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(TypeUnknown) {
			return data, nil
		}
		return ParseFieldType(reflect.ValueOf(data).String())
	}
}
