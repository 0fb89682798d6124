package schema

import (
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("ordered fields", func(t *testing.T) {
		s, err := New(
			Field{Name: "id", Type: TypeInt64},
			Field{Name: "name", Type: TypeString, Nullable: true},
		)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, []string{"id", "name"}, s.Names())

		f, i, ok := s.Lookup("name")
		require.True(t, ok)
		assert.Equal(t, 1, i)
		assert.True(t, f.Nullable)

		_, _, ok = s.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("duplicate names", func(t *testing.T) {
		_, err := New(
			Field{Name: "id", Type: TypeInt64},
			Field{Name: "id", Type: TypeString},
		)
		assert.ErrorIs(t, err, ErrDuplicateField)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := New(Field{Type: TypeInt64})
		assert.ErrorIs(t, err, ErrEmptyFieldName)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(Field{Name: "x"})
		assert.Error(t, err)
	})

	t.Run("fields are copied", func(t *testing.T) {
		s := MustNew(Field{Name: "id", Type: TypeInt64})
		fields := s.Fields()
		fields[0].Name = "changed"
		assert.Equal(t, "id", s.Field(0).Name)
	})
}

func TestParseFieldType(t *testing.T) {
	testCases := []struct {
		in   string
		want FieldType
	}{
		{"int32", TypeInt32},
		{"INT", TypeInt32},
		{"BigInt", TypeInt64},
		{"float", TypeFloat},
		{"double", TypeDouble},
		{"bool", TypeBoolean},
		{" varchar ", TypeString},
		{"bytes", TypeBytes},
		{"timestamp", TypeTimestamp},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFieldType(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseFieldType("decimal")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := MustNew(
		Field{Name: "id", Type: TypeInt64},
		Field{Name: "score", Type: TypeFloat, Nullable: true},
		Field{Name: "at", Type: TypeTimestamp},
	)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, s.Validate(Row{int64(1), float32(1.5), at}))
	assert.NoError(t, s.Validate(Row{int64(1), nil, at}))
	assert.ErrorIs(t, s.Validate(Row{int64(1), nil}), ErrRowMismatch)
	assert.ErrorIs(t, s.Validate(Row{nil, nil, at}), ErrRowMismatch)
	assert.ErrorIs(t, s.Validate(Row{1, nil, at}), ErrRowMismatch)
}

func TestRowFromMap(t *testing.T) {
	s := MustNew(
		Field{Name: "id", Type: TypeInt32},
		Field{Name: "total", Type: TypeInt64},
		Field{Name: "price", Type: TypeDouble},
		Field{Name: "ok", Type: TypeBoolean},
		Field{Name: "blob", Type: TypeBytes},
		Field{Name: "at", Type: TypeTimestamp},
		Field{Name: "note", Type: TypeString, Nullable: true},
	)

	row, err := s.RowFromMap(map[string]any{
		"id":    float64(7),
		"total": "42",
		"price": 3,
		"ok":    "true",
		"blob":  "aGk=",
		"at":    "2024-05-01T12:00:00.250Z",
	})
	require.NoError(t, err)
	assert.Equal(t, Row{
		int32(7),
		int64(42),
		float64(3),
		true,
		[]byte("hi"),
		time.Date(2024, 5, 1, 12, 0, 0, 250_000_000, time.UTC),
		nil,
	}, row)
	require.NoError(t, s.Validate(row))

	m := s.Map(row)
	assert.Equal(t, int64(42), m["total"])

	_, err = s.RowFromMap(map[string]any{"id": 1.5})
	assert.ErrorIs(t, err, ErrRowMismatch)

	_, err = s.RowFromMap(map[string]any{"id": int64(1) << 40})
	assert.ErrorIs(t, err, ErrRowMismatch)
}

func TestFieldTypeHook(t *testing.T) {
	var fields []Field
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: FieldTypeHook(),
		Result:     &fields,
	})
	require.NoError(t, err)

	err = decoder.Decode([]map[string]any{
		{"name": "id", "type": "bigint"},
		{"name": "name", "type": "string", "nullable": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []Field{
		{Name: "id", Type: TypeInt64},
		{Name: "name", Type: TypeString, Nullable: true},
	}, fields)
}
