package rpc

import (
	"context"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every agent call with its caller and duration.
// Failed calls are logged at warn level.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		caller := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			caller = p.Addr.String()
		}
		logger := log.WithMethod(info.FullMethod)
		if err != nil {
			logger.Warn().
				Str("peer", caller).
				Str("code", status.Code(err).String()).
				Err(err).
				Msg("Agent call failed")
			return nil, err
		}
		logger.Debug().
			Str("peer", caller).
			Dur("duration", time.Since(start)).
			Msg("Agent call served")
		return resp, nil
	}
}

// NewAgentServer creates a gRPC server serving agent with the logging
// interceptor installed. opts may add credentials.
func NewAgentServer(agent AgentServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(LoggingInterceptor()))
	s := grpc.NewServer(opts...)
	RegisterAgentServer(s, agent)
	return s
}
