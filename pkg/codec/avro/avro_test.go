package avro

import (
	"sync"
	"testing"
	"time"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderSchema() *schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "customer", Type: schema.TypeString},
		schema.Field{Name: "qty", Type: schema.TypeInt32},
		schema.Field{Name: "discount", Type: schema.TypeFloat},
		schema.Field{Name: "total", Type: schema.TypeDouble},
		schema.Field{Name: "paid", Type: schema.TypeBoolean},
		schema.Field{Name: "receipt", Type: schema.TypeBytes},
		schema.Field{Name: "created_at", Type: schema.TypeTimestamp},
		schema.Field{Name: "shipped_at", Type: schema.TypeTimestamp, Nullable: true},
		schema.Field{Name: "note", Type: schema.TypeString, Nullable: true},
	)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(orderSchema())
	require.NoError(t, err)

	created := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
	testCases := []struct {
		name string
		row  schema.Row
	}{
		{
			name: "nullable fields set",
			row: schema.Row{
				int64(10), "acme", int32(2), float32(0.5), 99.95, true,
				[]byte("pdf"), created, created.Add(time.Hour), "leave at door",
			},
		},
		{
			name: "nullable fields null",
			row: schema.Row{
				int64(11), "", int32(-1), float32(0), 0.0, false,
				[]byte{}, created, nil, nil,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := c.Encode(tc.row)
			require.NoError(t, err)

			got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tc.row, got)
		})
	}
}

func TestSchemaJSON(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "at", Type: schema.TypeTimestamp, Nullable: true},
	)
	c, err := New(s, WithRecordName("Order"), WithNamespace("shop"))
	require.NoError(t, err)

	def := c.SchemaJSON()
	assert.Contains(t, def, "shop.Order")
	assert.Contains(t, def, `"long"`)
	assert.Contains(t, def, `"null"`)
}

func TestNewRejectsInvalidFieldName(t *testing.T) {
	s := schema.MustNew(schema.Field{Name: "order-id", Type: schema.TypeInt64})
	_, err := New(s)
	assert.Error(t, err)
}

func TestEncodeErrors(t *testing.T) {
	c, err := New(orderSchema())
	require.NoError(t, err)

	_, err = c.Encode(schema.Row{int64(1), "short"})
	assert.ErrorIs(t, err, codec.ErrEncode)
	assert.ErrorIs(t, err, schema.ErrRowMismatch)
}

func TestDecodeTruncated(t *testing.T) {
	c, err := New(orderSchema())
	require.NoError(t, err)

	data, err := c.Encode(schema.Row{
		int64(10), "acme", int32(2), float32(0.5), 99.95, true,
		[]byte("pdf"), time.UnixMilli(0).UTC(), nil, nil,
	})
	require.NoError(t, err)

	_, err = c.Decode(data[:len(data)/2])
	assert.ErrorIs(t, err, codec.ErrDecode)
}

func TestConcurrentUse(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "label", Type: schema.TypeString, Nullable: true},
	)
	c, err := New(s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := schema.Row{int64(i), nil}
			if i%2 == 0 {
				row[1] = "even"
			}
			data, err := c.Encode(row)
			if !assert.NoError(t, err) {
				return
			}
			got, err := c.Decode(data)
			if assert.NoError(t, err) {
				assert.Equal(t, row, got)
			}
		}(i)
	}
	wg.Wait()
}
