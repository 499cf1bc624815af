package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// для вызовов без deadline со стороны клиента
const defaultDeadline = 10 * time.Second

// callLogger кладёт в контекст логгер вызова: метод и адрес клиента.
func callLogger(ctx context.Context, method string) context.Context {
	args := []any{slog.String("grpc_method", method)}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		args = append(args, slog.String("peer", p.Addr.String()))
	}
	return logger.With(ctx, args...)
}

// finish вызывается через defer: паника превращается в codes.Internal, вызов логируется по коду ответа.
func finish(ctx context.Context, kind string, start time.Time, errp *error) {
	log := logger.FromCtx(ctx)
	if r := recover(); r != nil {
		log.Error("grpc "+kind+" panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		*errp = status.Error(codes.Internal, "internal server error")
	}

	code := status.Code(*errp)
	level := slog.LevelDebug
	switch code {
	case codes.OK, codes.Canceled, codes.NotFound, codes.InvalidArgument:
	case codes.Internal, codes.Unknown, codes.DataLoss:
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	log.LogAttrs(ctx, level, "grpc "+kind,
		slog.String("code", code.String()),
		slog.Duration("duration", time.Since(start)),
	)
}

func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultDeadline)
			defer cancel()
		}
		ctx = callLogger(ctx, info.FullMethod)
		defer finish(ctx, "unary", time.Now(), &err)

		return handler(ctx, req)
	}
}

// loggedStream подменяет Context() у стрима, чтобы хендлер видел логгер вызова.
type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }

// StreamServerInterceptor: health Watch живёт долго, deadline не навязываем.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx := callLogger(ss.Context(), info.FullMethod)
		defer finish(ctx, "stream", time.Now(), &err)

		return handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
	}
}
