package worker

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/emptyOVO/yelpdp-go/rpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// gRPC functions

func (e *Engine) GetIMDData(in *rpc.IMDLoc, stream rpc.Shuffle_GetIMDDataServer) error {
	log.Trace("[Engine] RPC Get intermediate file")
	name := filepath.Clean(in.GetValue())
	if !e.ownsIMDFile(name) {
		return status.Errorf(codes.PermissionDenied, "%s is not an intermediate file of this engine", name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return status.Errorf(codes.NotFound, "%v", err)
		}
		return status.Errorf(codes.Internal, "%v", err)
	}
	return rpc.SendIMDData(stream, b)
}

func (e *Engine) Health(ctx context.Context, in *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	log.Trace("[Engine] Health Check")
	return wrapperspb.Int32(int32(e.workerState())), nil
}

func (e *Engine) ownsIMDFile(name string) bool {
	e.mux.Lock()
	defer e.mux.Unlock()
	for dir := range e.dirs {
		rel, err := filepath.Rel(dir, name)
		if err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
			return true
		}
	}
	return false
}

// Serve exposes the engine's intermediate files on lis until ctx is done.
func (e *Engine) Serve(ctx context.Context, lis net.Listener) error {
	baseServer := grpc.NewServer()
	rpc.RegisterShuffleServer(baseServer, e)
	go func() {
		<-ctx.Done()
		baseServer.GracefulStop()
	}()
	log.Infof("[Engine] Shuffle gRPC server listening on %s", lis.Addr())
	return baseServer.Serve(lis)
}

// fetcher picks local reads, or a gRPC client against a shuffle server
// started for the duration of the reduce phase.
func (e *Engine) fetcher(ctx context.Context) (IMDFetcher, func(), error) {
	if e.cfg.ShuffleAddr == "" {
		return localFetcher{}, func() {}, nil
	}
	lis, err := net.Listen("tcp", e.cfg.ShuffleAddr)
	if err != nil {
		return nil, nil, err
	}
	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Serve(serveCtx, lis); err != nil {
			log.Error(err)
		}
	}()

	f, err := newRemoteFetcher(lis.Addr().String())
	if err != nil {
		stop()
		<-done
		return nil, nil, err
	}
	return f, func() {
		f.Close()
		stop()
		<-done
	}, nil
}
