package testutil

import (
	"time"

	"github.com/edgeflare/ktable/pkg/schema"
)

// OrderSchema matches the field set of both the protobuf and Thrift Order
// fixtures.
func OrderSchema() *schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "customer", Type: schema.TypeString},
		schema.Field{Name: "qty", Type: schema.TypeInt32},
		schema.Field{Name: "discount", Type: schema.TypeFloat},
		schema.Field{Name: "total", Type: schema.TypeDouble},
		schema.Field{Name: "paid", Type: schema.TypeBoolean},
		schema.Field{Name: "receipt", Type: schema.TypeBytes},
		schema.Field{Name: "created_at", Type: schema.TypeTimestamp},
		schema.Field{Name: "note", Type: schema.TypeString, Nullable: true},
	)
}

// OrderRow returns a row conforming to OrderSchema. Timestamps have
// millisecond precision so every format round-trips them exactly.
func OrderRow(id int64, note any) schema.Row {
	return schema.Row{
		id,
		"acme",
		int32(3),
		float32(0.25),
		149.5,
		true,
		[]byte("receipt-" + string(rune('a'+id%26))),
		time.Date(2024, 6, 1, 10, 30, 0, 125_000_000, time.UTC),
		note,
	}
}
