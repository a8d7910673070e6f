package grpc

import (
	"context"

	"google.golang.org/grpc"

	"confesapp/backend/internal/transport/wire"
)

const serviceName = "confessions.v1.ConfessionBands"

// ConfessionBandsServer is the RPC surface of the scheduling service. Messages
// are the wire package's JSON types.
type ConfessionBandsServer interface {
	CreateBand(context.Context, *wire.CreateBandRequest) (*wire.CreateBandResponse, error)
	ListPriestBands(context.Context, *wire.RangeRequest) (*wire.BandList, error)
	GetBand(context.Context, *wire.BandIDRequest) (*wire.Band, error)
	UpdateBand(context.Context, *wire.UpdateBandRequest) (*wire.Band, error)
	DeleteBand(context.Context, *wire.BandIDRequest) (*wire.DeleteBandResponse, error)
	SetBandStatus(context.Context, *wire.SetBandStatusRequest) (*wire.Band, error)
	SetBookingOutcome(context.Context, *wire.SetBookingOutcomeRequest) (*wire.Booking, error)
	ListAvailableBands(context.Context, *wire.RangeRequest) (*wire.BandList, error)
	BookBand(context.Context, *wire.BookBandRequest) (*wire.Booking, error)
	ListFaithfulBookings(context.Context, *wire.Empty) (*wire.BookingList, error)
	CancelBooking(context.Context, *wire.BookingIDRequest) (*wire.CancelBookingResponse, error)
}

var ConfessionBandsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ConfessionBandsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateBand", ConfessionBandsServer.CreateBand),
		unary("ListPriestBands", ConfessionBandsServer.ListPriestBands),
		unary("GetBand", ConfessionBandsServer.GetBand),
		unary("UpdateBand", ConfessionBandsServer.UpdateBand),
		unary("DeleteBand", ConfessionBandsServer.DeleteBand),
		unary("SetBandStatus", ConfessionBandsServer.SetBandStatus),
		unary("SetBookingOutcome", ConfessionBandsServer.SetBookingOutcome),
		unary("ListAvailableBands", ConfessionBandsServer.ListAvailableBands),
		unary("BookBand", ConfessionBandsServer.BookBand),
		unary("ListFaithfulBookings", ConfessionBandsServer.ListFaithfulBookings),
		unary("CancelBooking", ConfessionBandsServer.CancelBooking),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "confessions/v1/confessions.json",
}

func RegisterConfessionBandsServer(s grpc.ServiceRegistrar, srv ConfessionBandsServer) {
	s.RegisterService(&ConfessionBandsServiceDesc, srv)
}

// FullMethod returns the "/service/method" name used in interceptors and
// client invocations.
func FullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unary[Req, Resp any](name string, call func(ConfessionBandsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConfessionBandsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ConfessionBandsServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
