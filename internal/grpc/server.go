package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is what orchestrators pass to grpc.health.v1.Health/Check.
const ServiceName = "storefront"

// Server exposes the standard gRPC health protocol for the storefront
// process. The public API is HTTP only.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		log:    log,
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.logInterceptor))
	healthpb.RegisterHealthServer(s.srv, s.health)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(s.srv)

	s.SetServing(false)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc health server listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// SetServing flips both the overall and the named service status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch runs check every interval and mirrors the result into the health
// status until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	probe := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := check(checkCtx); err != nil {
			s.log.WarnContext(ctx, "dependency check failed", "error", err)
			s.SetServing(false)
			return
		}
		s.SetServing(true)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Stop marks the process as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.DebugContext(ctx, "grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "grpc handler panic",
				"method", info.FullMethod,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
