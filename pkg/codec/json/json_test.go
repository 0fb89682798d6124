package json

import (
	"sync"
	"testing"
	"time"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventSchema() *schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "kind", Type: schema.TypeString},
		schema.Field{Name: "count", Type: schema.TypeInt32},
		schema.Field{Name: "score", Type: schema.TypeFloat},
		schema.Field{Name: "amount", Type: schema.TypeDouble},
		schema.Field{Name: "ok", Type: schema.TypeBoolean},
		schema.Field{Name: "payload", Type: schema.TypeBytes},
		schema.Field{Name: "at", Type: schema.TypeTimestamp},
		schema.Field{Name: "ref", Type: schema.TypeString, Nullable: true},
	)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(eventSchema())
	require.NoError(t, err)

	row := schema.Row{
		int64(9007199254740993), "click", int32(4), float32(1.25), 12.5, true,
		[]byte{1, 2, 3}, time.Date(2023, 3, 4, 5, 6, 7, 890, time.UTC), nil,
	}

	data, err := c.Encode(row)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"id":9007199254740993,"kind":"click"`)
	assert.Contains(t, string(data), `"ref":null}`)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestDecodeLooseInput(t *testing.T) {
	c, err := New(eventSchema())
	require.NoError(t, err)

	got, err := c.Decode([]byte(`{
		"id": "42",
		"kind": "view",
		"count": 3.0,
		"score": 0.5,
		"amount": 7,
		"ok": "true",
		"payload": "AQI=",
		"at": 1700000000000,
		"extra": {"ignored": true}
	}`))
	require.NoError(t, err)
	assert.Equal(t, schema.Row{
		int64(42), "view", int32(3), float32(0.5), float64(7), true,
		[]byte{1, 2}, time.UnixMilli(1700000000000).UTC(), nil,
	}, got)
}

func TestDecodeErrors(t *testing.T) {
	c, err := New(eventSchema())
	require.NoError(t, err)

	testCases := []struct {
		name string
		data string
	}{
		{"malformed", `{"id":`},
		{"not an object", `[1,2]`},
		{"null", `null`},
		{"missing required field", `{"id":1}`},
		{"overflow", `{"id":1,"kind":"k","count":3000000000,"score":1,"amount":1,"ok":true,"payload":"","at":0}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decode([]byte(tc.data))
			assert.ErrorIs(t, err, codec.ErrDecode)
		})
	}
}

func TestStrict(t *testing.T) {
	s := schema.MustNew(schema.Field{Name: "id", Type: schema.TypeInt64})

	lenient, err := New(s)
	require.NoError(t, err)
	_, err = lenient.Decode([]byte(`{"id":1,"other":2}`))
	assert.NoError(t, err)

	strict, err := New(s, WithStrict())
	require.NoError(t, err)
	_, err = strict.Decode([]byte(`{"id":1,"other":2}`))
	assert.ErrorIs(t, err, codec.ErrDecode)
}

func TestConcurrentUse(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt32},
		schema.Field{Name: "name", Type: schema.TypeString},
	)
	c, err := New(s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := schema.Row{int32(i), "n"}
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
