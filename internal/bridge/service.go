// Package bridge carries solve lifecycle events from the external process
// into the daemon over gRPC. Events travel as google.protobuf.Struct values
// holding the JSON form of gateway.Event.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/cluely/internal/gateway"
)

const (
	serviceName   = "cluely.gateway.v1.Gateway"
	publishMethod = "/" + serviceName + "/Publish"
)

type publisher interface {
	publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*publisher)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cluely/gateway/v1/gateway.proto",
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(publisher).publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(publisher).publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// encodeEvent converts ev to its wire form.
func encodeEvent(ev gateway.Event) (*structpb.Struct, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return out, nil
}

// decodeEvent converts a wire struct back to an event and validates its kind.
func decodeEvent(in *structpb.Struct) (gateway.Event, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return gateway.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return gateway.DecodeEvent(raw)
}
