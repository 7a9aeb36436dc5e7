package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/emptyOVO/yelpdp-go/rpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// IMDFetcher loads one intermediate partition file for a reducer.
type IMDFetcher interface {
	GetIMDData(ctx context.Context, filename string) ([]KV, error)
}

type localFetcher struct{}

func (localFetcher) GetIMDData(ctx context.Context, filename string) ([]KV, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return decodeIMDKVs(string(b))
}

type remoteFetcher struct {
	client rpc.ShuffleClient
	conn   *grpc.ClientConn
}

// Connect dials a shuffle server.
func Connect(ip string) (*grpc.ClientConn, rpc.ShuffleClient, error) {
	conn, err := grpc.Dial(ip, grpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	return conn, rpc.NewShuffleClient(conn), nil
}

func newRemoteFetcher(ip string) (*remoteFetcher, error) {
	conn, client, err := Connect(ip)
	if err != nil {
		return nil, err
	}
	return &remoteFetcher{client: client, conn: conn}, nil
}

func (f *remoteFetcher) GetIMDData(ctx context.Context, filename string) ([]KV, error) {
	const (
		maxAttempts = 10
		backoff     = 200 * time.Millisecond
	)
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		data, err := f.fetch(ctx, filename)
		if err == nil {
			return decodeIMDKVs(string(data))
		}
		respErr, ok := status.FromError(err)
		if !ok {
			return nil, err
		}
		lastErr = fmt.Errorf("get intermediate data rpc failed: %s", respErr.Message())
		if respErr.Code() != codes.Unavailable && respErr.Code() != codes.DeadlineExceeded {
			return nil, lastErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Trace("[Engine] shuffle server unavailable, retrying")
		time.Sleep(backoff)
	}
	return nil, lastErr
}

// fetch reads one whole partition. A stream broken midway is discarded.
func (f *remoteFetcher) fetch(ctx context.Context, filename string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	stream, err := f.client.GetIMDData(callCtx, wrapperspb.String(filename))
	if err != nil {
		return nil, err
	}
	return rpc.ReadIMDData(stream)
}

// Health asks the shuffle server for its worker state.
func (f *remoteFetcher) Health(ctx context.Context) (rpc.WorkerState, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r, err := f.client.Health(callCtx, &emptypb.Empty{})
	if err != nil {
		return rpc.WorkerState_IDLE, err
	}
	return rpc.WorkerState(r.GetValue()), nil
}

func (f *remoteFetcher) Close() error {
	return f.conn.Close()
}
