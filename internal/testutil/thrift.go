package testutil

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Order is written the way the Thrift compiler generates Go structs for
//
//	struct Order {
//	  1: i64 id
//	  2: string customer
//	  3: i32 qty
//	  4: double discount
//	  5: double total
//	  6: bool paid
//	  7: binary receipt
//	  8: i64 created_at
//	  9: optional string note
//	  10: optional binary attachment
//	}
type Order struct {
	ID         int64   `thrift:"id,1" db:"id" json:"id"`
	Customer   string  `thrift:"customer,2" db:"customer" json:"customer"`
	Qty        int32   `thrift:"qty,3" db:"qty" json:"qty"`
	Discount   float64 `thrift:"discount,4" db:"discount" json:"discount"`
	Total      float64 `thrift:"total,5" db:"total" json:"total"`
	Paid       bool    `thrift:"paid,6" db:"paid" json:"paid"`
	Receipt    []byte  `thrift:"receipt,7" db:"receipt" json:"receipt"`
	CreatedAt  int64   `thrift:"created_at,8" db:"created_at" json:"created_at"`
	Note       *string `thrift:"note,9" db:"note" json:"note,omitempty"`
	Attachment []byte  `thrift:"attachment,10" db:"attachment" json:"attachment,omitempty"`
}

var _ thrift.TStruct = (*Order)(nil)

func NewOrder() *Order { return &Order{} }

func (p *Order) IsSetNote() bool { return p.Note != nil }

func (p *Order) IsSetAttachment() bool { return p.Attachment != nil }

func (p *Order) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read error: ", p), err)
	}

	for {
		_, fieldTypeID, fieldID, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldID), err)
		}
		if fieldTypeID == thrift.STOP {
			break
		}
		if err := p.readField(ctx, iprot, fieldTypeID, fieldID); err != nil {
			return err
		}
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}

	if err := iprot.ReadStructEnd(ctx); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct end error: ", p), err)
	}
	return nil
}

func (p *Order) readField(ctx context.Context, iprot thrift.TProtocol, typ thrift.TType, id int16) error {
	var err error
	switch {
	case id == 1 && typ == thrift.I64:
		p.ID, err = iprot.ReadI64(ctx)
	case id == 2 && typ == thrift.STRING:
		p.Customer, err = iprot.ReadString(ctx)
	case id == 3 && typ == thrift.I32:
		p.Qty, err = iprot.ReadI32(ctx)
	case id == 4 && typ == thrift.DOUBLE:
		p.Discount, err = iprot.ReadDouble(ctx)
	case id == 5 && typ == thrift.DOUBLE:
		p.Total, err = iprot.ReadDouble(ctx)
	case id == 6 && typ == thrift.BOOL:
		p.Paid, err = iprot.ReadBool(ctx)
	case id == 7 && typ == thrift.STRING:
		p.Receipt, err = iprot.ReadBinary(ctx)
	case id == 8 && typ == thrift.I64:
		p.CreatedAt, err = iprot.ReadI64(ctx)
	case id == 9 && typ == thrift.STRING:
		var v string
		if v, err = iprot.ReadString(ctx); err == nil {
			p.Note = &v
		}
	case id == 10 && typ == thrift.STRING:
		p.Attachment, err = iprot.ReadBinary(ctx)
	default:
		err = iprot.Skip(ctx, typ)
	}
	if err != nil {
		return thrift.PrependError(fmt.Sprintf("error reading field %d: ", id), err)
	}
	return nil
}

func (p *Order) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "Order"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}

	fields := []struct {
		name  string
		typ   thrift.TType
		id    int16
		skip  bool
		write func() error
	}{
		{"id", thrift.I64, 1, false, func() error { return oprot.WriteI64(ctx, p.ID) }},
		{"customer", thrift.STRING, 2, false, func() error { return oprot.WriteString(ctx, p.Customer) }},
		{"qty", thrift.I32, 3, false, func() error { return oprot.WriteI32(ctx, p.Qty) }},
		{"discount", thrift.DOUBLE, 4, false, func() error { return oprot.WriteDouble(ctx, p.Discount) }},
		{"total", thrift.DOUBLE, 5, false, func() error { return oprot.WriteDouble(ctx, p.Total) }},
		{"paid", thrift.BOOL, 6, false, func() error { return oprot.WriteBool(ctx, p.Paid) }},
		{"receipt", thrift.STRING, 7, false, func() error { return oprot.WriteBinary(ctx, p.Receipt) }},
		{"created_at", thrift.I64, 8, false, func() error { return oprot.WriteI64(ctx, p.CreatedAt) }},
		{"note", thrift.STRING, 9, !p.IsSetNote(), func() error { return oprot.WriteString(ctx, *p.Note) }},
		{"attachment", thrift.STRING, 10, !p.IsSetAttachment(), func() error { return oprot.WriteBinary(ctx, p.Attachment) }},
	}

	for _, f := range fields {
		if f.skip {
			continue
		}
		if err := oprot.WriteFieldBegin(ctx, f.name, f.typ, f.id); err != nil {
			return thrift.PrependError(fmt.Sprintf("%T write field begin error %d:%s: ", p, f.id, f.name), err)
		}
		if err := f.write(); err != nil {
			return thrift.PrependError(fmt.Sprintf("%T.%s (%d) field write error: ", p, f.name, f.id), err)
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return thrift.PrependError(fmt.Sprintf("%T write field end error %d:%s: ", p, f.id, f.name), err)
		}
	}

	if err := oprot.WriteFieldStop(ctx); err != nil {
		return thrift.PrependError("write field stop error: ", err)
	}
	if err := oprot.WriteStructEnd(ctx); err != nil {
		return thrift.PrependError("write struct stop error: ", err)
	}
	return nil
}

func (p *Order) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Order(%+v)", *p)
}
