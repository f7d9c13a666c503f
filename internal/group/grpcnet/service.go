package grpcnet

import (
	"context"

	"google.golang.org/grpc"
)

const deliverMethod = "/pkd.Exchange/Deliver"

// Envelope carries one message between world ranks.
type Envelope struct {
	Context string
	From    int32
	To      int32
	Tag     int32
	Payload []byte
}

type Ack struct {
	Delivered bool
}

// ExchangeServer accepts messages addressed to the local rank.
type ExchangeServer interface {
	Deliver(ctx context.Context, in *Envelope) (*Ack, error)
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: deliverMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExchangeServer).Deliver(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "pkd.Exchange",
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deliver",
			Handler:    deliverHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkd/exchange",
}

// RegisterExchangeServer attaches srv to a gRPC server.
func RegisterExchangeServer(s *grpc.Server, srv ExchangeServer) {
	s.RegisterService(&serviceDesc, srv)
}
