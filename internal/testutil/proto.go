package testutil

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	// registers google/protobuf/timestamp.proto in protoregistry.GlobalFiles
	_ "google.golang.org/protobuf/types/known/timestamppb"
)

// OrderProtoName is the full name of the dynamic Order message.
const OrderProtoName = "ktable.test.Order"

var (
	protoOnce  sync.Once
	orderType  protoreflect.MessageType
	protoTypes *protoregistry.Types
)

// OrderMessageType returns a dynamic message type equivalent to
//
//	syntax = "proto3";
//	package ktable.test;
//	enum Status { PENDING = 0; SHIPPED = 1; }
//	message Order {
//	  int64 id = 1;
//	  string customer = 2;
//	  int32 qty = 3;
//	  float discount = 4;
//	  double total = 5;
//	  bool paid = 6;
//	  bytes receipt = 7;
//	  google.protobuf.Timestamp created_at = 8;
//	  optional string note = 9;
//	  Status status = 10;
//	  int64 created_ms = 11;
//	  repeated string tags = 12;
//	}
func OrderMessageType() protoreflect.MessageType {
	protoOnce.Do(buildProto)
	return orderType
}

// ProtoTypes returns a type registry holding only the Order message.
func ProtoTypes() *protoregistry.Types {
	protoOnce.Do(buildProto)
	return protoTypes
}

func buildProto() {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	field := func(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
			Label:  optional,
			Type:   typ.Enum(),
		}
	}

	createdAt := field("created_at", 8, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	createdAt.TypeName = proto.String(".google.protobuf.Timestamp")

	note := field("note", 9, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	note.OneofIndex = proto.Int32(0)
	note.Proto3Optional = proto.Bool(true)

	status := field("status", 10, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	status.TypeName = proto.String(".ktable.test.Status")

	tags := field("tags", 12, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	tags.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("ktable/test/order.proto"),
		Package:    proto.String("ktable.test"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Status"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("PENDING"), Number: proto.Int32(0)},
				{Name: proto.String("SHIPPED"), Number: proto.Int32(1)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Order"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				field("customer", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				field("qty", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				field("discount", 4, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				field("total", 5, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				field("paid", 6, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				field("receipt", 7, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				createdAt,
				note,
				status,
				field("created_ms", 11, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				tags,
			},
			OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("_note")}},
		}},
	}

	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	orderType = dynamicpb.NewMessageType(fd.Messages().ByName("Order"))

	protoTypes = new(protoregistry.Types)
	if err := protoTypes.RegisterMessage(orderType); err != nil {
		panic(err)
	}
}
