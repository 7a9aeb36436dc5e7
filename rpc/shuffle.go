// Package rpc defines the Shuffle gRPC service through which reducers pull
// intermediate partitions from the process that produced them.
//
// Messages are protobuf well-known wrapper types, so the service needs no
// generated code. GetIMDData takes the intermediate filename and streams
// the file back in chunks of at most ChunkSize bytes, which keeps every
// message under the default 4 MB gRPC limit whatever the partition size.
package rpc

import (
	"bytes"
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ShuffleServiceName = "yelpdp.Shuffle"

// ChunkSize bounds one GetIMDData message.
const ChunkSize = 1 << 20

// WorkerState is reported by Health.
type WorkerState int32

const (
	WorkerState_IDLE WorkerState = 0
	WorkerState_BUSY WorkerState = 1
)

func (s WorkerState) String() string {
	switch s {
	case WorkerState_IDLE:
		return "IDLE"
	case WorkerState_BUSY:
		return "BUSY"
	}
	return "UNKNOWN"
}

// IMDLoc names an intermediate file.
type IMDLoc = wrapperspb.StringValue

// IMDChunk carries a slice of an encoded intermediate partition.
type IMDChunk = wrapperspb.BytesValue

// ShuffleServer is implemented by the engine.
type ShuffleServer interface {
	GetIMDData(*IMDLoc, Shuffle_GetIMDDataServer) error
	Health(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error)
}

type Shuffle_GetIMDDataServer interface {
	Send(*IMDChunk) error
	grpc.ServerStream
}

type shuffleGetIMDDataServer struct {
	grpc.ServerStream
}

func (x *shuffleGetIMDDataServer) Send(m *IMDChunk) error {
	return x.ServerStream.SendMsg(m)
}

// UnimplementedShuffleServer can be embedded for forward compatibility.
type UnimplementedShuffleServer struct{}

func (UnimplementedShuffleServer) GetIMDData(*IMDLoc, Shuffle_GetIMDDataServer) error {
	return status.Errorf(codes.Unimplemented, "method GetIMDData not implemented")
}

func (UnimplementedShuffleServer) Health(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Health not implemented")
}

func RegisterShuffleServer(s grpc.ServiceRegistrar, srv ShuffleServer) {
	s.RegisterService(&Shuffle_ServiceDesc, srv)
}

func _Shuffle_GetIMDData_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(IMDLoc)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ShuffleServer).GetIMDData(m, &shuffleGetIMDDataServer{stream})
}

func _Shuffle_Health_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShuffleServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ShuffleServiceName + "/Health",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShuffleServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var Shuffle_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ShuffleServiceName,
	HandlerType: (*ShuffleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: _Shuffle_Health_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "GetIMDData", Handler: _Shuffle_GetIMDData_Handler, ServerStreams: true},
	},
	Metadata: "shuffle",
}

// ShuffleClient is the client side of the Shuffle service.
type ShuffleClient interface {
	GetIMDData(ctx context.Context, in *IMDLoc, opts ...grpc.CallOption) (Shuffle_GetIMDDataClient, error)
	Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.Int32Value, error)
}

type shuffleClient struct {
	cc grpc.ClientConnInterface
}

func NewShuffleClient(cc grpc.ClientConnInterface) ShuffleClient {
	return &shuffleClient{cc}
}

func (c *shuffleClient) GetIMDData(ctx context.Context, in *IMDLoc, opts ...grpc.CallOption) (Shuffle_GetIMDDataClient, error) {
	stream, err := c.cc.NewStream(ctx, &Shuffle_ServiceDesc.Streams[0], "/"+ShuffleServiceName+"/GetIMDData", opts...)
	if err != nil {
		return nil, err
	}
	x := &shuffleGetIMDDataClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type Shuffle_GetIMDDataClient interface {
	Recv() (*IMDChunk, error)
	grpc.ClientStream
}

type shuffleGetIMDDataClient struct {
	grpc.ClientStream
}

func (x *shuffleGetIMDDataClient) Recv() (*IMDChunk, error) {
	m := new(IMDChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadIMDData drains a GetIMDData stream into one payload.
func ReadIMDData(stream Shuffle_GetIMDDataClient) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk.GetValue())
	}
}

// SendIMDData streams data in chunks of at most ChunkSize bytes. Empty data
// sends nothing.
func SendIMDData(stream Shuffle_GetIMDDataServer, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > ChunkSize {
			n = ChunkSize
		}
		if err := stream.Send(wrapperspb.Bytes(data[:n])); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (c *shuffleClient) Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.Int32Value, error) {
	out := new(wrapperspb.Int32Value)
	if err := c.cc.Invoke(ctx, "/"+ShuffleServiceName+"/Health", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
