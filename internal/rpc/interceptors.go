package rpc

import (
	"context"
	"crypto/subtle"
	"path"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/RowanDark/scrdec/internal/logging"
	"github.com/RowanDark/scrdec/internal/observability/metrics"
)

func (s *Server) authorize(ctx context.Context, fullMethod string) error {
	if s.authToken == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	token := bearerToken(md.Get("authorization"))
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		s.audit.Record(logging.EventRPCDenied, fullMethod, logging.DecisionDeny, map[string]any{"reason": "invalid auth token"})
		s.logger.Warn().Str("method", fullMethod).Msg("rejected unauthenticated call")
		return status.Error(codes.Unauthenticated, "invalid auth token")
	}
	return nil
}

func bearerToken(values []string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	return ""
}

func (s *Server) authUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := s.authorize(ctx, info.FullMethod); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *Server) authStream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := s.authorize(ss.Context(), info.FullMethod); err != nil {
		return err
	}
	metrics.RecordRPCRequest(path.Base(info.FullMethod))
	return handler(srv, ss)
}

func (s *Server) observeUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	method := path.Base(info.FullMethod)
	metrics.RecordRPCRequest(method)
	start := time.Now()

	resp, err := handler(ctx, req)

	code := status.Code(err)
	elapsed := time.Since(start)
	metrics.ObserveRPCLatency(ctx, method, code.String(), elapsed)
	if err != nil {
		metrics.RecordRPCError(method, code.String())
	}
	s.audit.Record(logging.EventRPCCall, info.FullMethod, logging.DecisionInfo, map[string]any{
		"code":        code.String(),
		"duration_ms": elapsed.Milliseconds(),
	})
	s.logger.Debug().Str("method", method).Str("code", code.String()).Dur("elapsed", elapsed).Msg("rpc")
	return resp, err
}
