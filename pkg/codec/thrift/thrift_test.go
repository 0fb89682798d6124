package thrift

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/edgeflare/ktable/internal/testutil"
	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/edgeflare/ktable/pkg/typeregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderType = reflect.TypeOf(testutil.Order{})

func TestRoundTrip(t *testing.T) {
	factories := map[string]thrift.TProtocolFactory{
		"binary":  thrift.NewTBinaryProtocolFactoryConf(nil),
		"compact": thrift.NewTCompactProtocolFactoryConf(nil),
		"json":    thrift.NewTJSONProtocolFactory(),
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			c, err := New(testutil.OrderSchema(), orderType, factory)
			require.NoError(t, err)

			for _, row := range []schema.Row{testutil.OrderRow(1, "fragile"), testutil.OrderRow(2, nil)} {
				data, err := c.Encode(row)
				require.NoError(t, err)

				got, err := c.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, row, got)
			}
		})
	}
}

func TestEncodeWireCompatible(t *testing.T) {
	factory := thrift.NewTCompactProtocolFactoryConf(nil)
	c, err := New(testutil.OrderSchema(), reflect.TypeOf(&testutil.Order{}), factory)
	require.NoError(t, err)

	row := testutil.OrderRow(5, "ring twice")
	data, err := c.Encode(row)
	require.NoError(t, err)

	var order testutil.Order
	require.NoError(t, thrift.NewTDeserializerPoolSizeFactory(bufferSize, factory).Read(context.Background(), &order, data))
	assert.Equal(t, int64(5), order.ID)
	assert.Equal(t, "acme", order.Customer)
	assert.Equal(t, 0.25, order.Discount)
	assert.Equal(t, int64(1717237800125), order.CreatedAt)
	require.NotNil(t, order.Note)
	assert.Equal(t, "ring twice", *order.Note)
}

func TestWriteOnlyProtocolRejected(t *testing.T) {
	_, err := New(testutil.OrderSchema(), orderType, thrift.NewTSimpleJSONProtocolFactoryConf(nil))
	assert.ErrorIs(t, err, ErrWriteOnlyProtocol)

	assert.False(t, Readable(thrift.NewTSimpleJSONProtocolFactoryConf(nil)))
	assert.True(t, Readable(thrift.NewTJSONProtocolFactory()))
}

func TestFieldBinding(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "ID", Type: schema.TypeInt64},
		schema.Field{Name: "CreatedAt", Type: schema.TypeTimestamp},
	)
	c, err := New(s, orderType, thrift.NewTBinaryProtocolFactoryConf(nil))
	require.NoError(t, err)
	assert.IsType(t, &testutil.Order{}, c.NewRecord())
}

func TestNewErrors(t *testing.T) {
	factory := thrift.NewTBinaryProtocolFactoryConf(nil)

	testCases := []struct {
		name  string
		field schema.Field
	}{
		{"missing field", schema.Field{Name: "sku", Type: schema.TypeString}},
		{"width mismatch", schema.Field{Name: "qty", Type: schema.TypeInt64}},
		{"kind mismatch", schema.Field{Name: "paid", Type: schema.TypeString}},
		{"nullable on default field", schema.Field{Name: "discount", Type: schema.TypeFloat, Nullable: true}},
		{"nullable on required-style string", schema.Field{Name: "customer", Type: schema.TypeString, Nullable: true}},
		{"nullable on optional binary", schema.Field{Name: "attachment", Type: schema.TypeBytes, Nullable: true}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(schema.MustNew(tc.field), orderType, factory)
			var mismatch *codec.MismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			assert.Equal(t, tc.field.Name, mismatch.Field)
		})
	}

	_, err := New(testutil.OrderSchema(), reflect.TypeOf(testutil.NotAStruct{}), factory)
	assert.ErrorContains(t, err, "thrift.TStruct")

	_, err = New(testutil.OrderSchema(), nil, factory)
	assert.Error(t, err)

	_, err = New(testutil.OrderSchema(), orderType, nil)
	assert.Error(t, err)
}

func TestOptionalBinary(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "attachment", Type: schema.TypeBytes},
		schema.Field{Name: "note", Type: schema.TypeString, Nullable: true},
	)

	for name, factory := range map[string]thrift.TProtocolFactory{
		"binary":  thrift.NewTBinaryProtocolFactoryConf(nil),
		"compact": thrift.NewTCompactProtocolFactoryConf(nil),
	} {
		t.Run(name, func(t *testing.T) {
			c, err := New(s, orderType, factory)
			require.NoError(t, err)

			for _, row := range []schema.Row{
				{int64(1), []byte{}, ""},
				{int64(2), []byte{0x01, 0x02}, nil},
			} {
				data, err := c.Encode(row)
				require.NoError(t, err)
				got, err := c.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, row, got)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	c, err := New(testutil.OrderSchema(), orderType, thrift.NewTBinaryProtocolFactoryConf(nil))
	require.NoError(t, err)

	_, err = c.Decode([]byte{0x0a, 0x00})
	assert.ErrorIs(t, err, codec.ErrDecode)
}

func TestRegisterProtocolFactories(t *testing.T) {
	r := typeregistry.New()
	RegisterProtocolFactories(r)

	for _, name := range []string{
		BinaryProtocolFactory,
		CompactProtocolFactory,
		JSONProtocolFactory,
		"github.com/apache/thrift/lib/go/thrift.TCompactProtocolFactory",
	} {
		d, err := r.FindType(name)
		require.NoError(t, err, name)
		v, err := r.Instantiate(d)
		require.NoError(t, err, name)
		assert.Implements(t, (*thrift.TProtocolFactory)(nil), v, name)
	}

	_, err := r.FindType("thrift.TSimpleJSONProtocolFactory")
	assert.ErrorIs(t, err, typeregistry.ErrTypeNotFound)

	_, err = typeregistry.Default.FindType(BinaryProtocolFactory)
	assert.NoError(t, err)
}

// Every registered factory must produce a codec that reads what it writes.
func TestRegisteredFactoriesRoundTrip(t *testing.T) {
	r := typeregistry.New()
	RegisterProtocolFactories(r)

	names := r.Names()
	require.NotEmpty(t, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			d, err := r.FindType(name)
			require.NoError(t, err)
			v, err := r.Instantiate(d)
			require.NoError(t, err)

			c, err := New(testutil.OrderSchema(), orderType, v.(thrift.TProtocolFactory))
			require.NoError(t, err)
			for _, row := range []schema.Row{testutil.OrderRow(1, "fragile"), testutil.OrderRow(2, nil)} {
				data, err := c.Encode(row)
				require.NoError(t, err)
				got, err := c.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, row, got)
			}
		})
	}
}

func TestConcurrentUse(t *testing.T) {
	c, err := New(testutil.OrderSchema(), orderType, thrift.NewTCompactProtocolFactoryConf(nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := testutil.OrderRow(int64(i), nil)
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
