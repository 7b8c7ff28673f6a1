package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/query/aggregator"
)

// Querier answers segment average queries.
type Querier interface {
	AverageQuantityForSegment(segment string) (aggregator.Result, error)
}

// Server implements SegmentAverageServer on top of a Querier.
type Server struct {
	querier Querier
	logger  *zap.Logger
}

// NewServer creates a new gRPC segment average server.
func NewServer(q Querier, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{querier: q, logger: logger}
}

// Average handles the Average RPC.
func (s *Server) Average(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	requestID := extractRequestID(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID))

	segment := req.GetValue()
	if segment == "" {
		return nil, status.Error(codes.InvalidArgument, "segment is required")
	}

	start := time.Now()
	res, err := s.querier.AverageQuantityForSegment(segment)
	if err != nil {
		s.logger.Error("average failed",
			zap.String("segment", segment),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, status.Error(codeFor(err), err.Error())
	}

	v, ok := res.Value()
	if !ok {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("segment %q: %s", segment, res.Reason))
	}

	s.logger.Debug("average served",
		zap.String("segment", segment),
		zap.Int64("average", v),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID),
	)
	return wrapperspb.Int64(v), nil
}

// codeFor maps engine errors to gRPC status codes.
func codeFor(err error) codes.Code {
	switch engerrors.GetCode(err) {
	case engerrors.CodeEngineClosed:
		return codes.Unavailable
	case engerrors.CodeBarrierTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// extractRequestID extracts the request ID from metadata or generates one.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}
