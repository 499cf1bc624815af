package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatServiceName: имя сервиса в grpc.health.v1.
const ChatServiceName = "cwrk.chat.v1.ChatService"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	}, opts...)

	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ChatServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) GRPC() *grpc.Server { return s.grpc }

func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ChatServiceName, st)
}

// WatchDependency периодически дёргает check (например, ping postgres) и выставляет статус чата.
func (s *Server) WatchDependency(ctx context.Context, every time.Duration, check func(context.Context) error) {
	tick := func() {
		cctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()
		err := check(cctx)
		if err != nil {
			logger.FromCtx(ctx).Warn("grpc health: dependency check failed", slog.Any("err", err))
		}
		s.SetServing(err == nil)
	}

	tick()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// Shutdown: сначала NOT_SERVING для всех, потом GracefulStop.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
