package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	def    atomic.Pointer[slog.Logger]
	initMu sync.Mutex
)

// Init настраивает slog в зависимости от среды и делает его логгером по умолчанию.
func Init(cfg Config) *slog.Logger {
	initMu.Lock()
	defer initMu.Unlock()

	return initLocked(cfg)
}

func initLocked(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "chat-service"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	base := slog.New(h.WithAttrs(commonAttrs(cfg)))
	slog.SetDefault(base)
	def.Store(base)

	return base
}

// L возвращает глобальный логгер; без явного Init собирает дефолтный ровно один раз.
func L() *slog.Logger {
	if l := def.Load(); l != nil {
		return l
	}

	initMu.Lock()
	defer initMu.Unlock()
	if l := def.Load(); l != nil {
		return l
	}
	return initLocked(Config{})
}

type ctxKey struct{}

// WithLogger кладёт логгер в контекст (например, с conn_id/req_id).
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func raw(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return L()
}

// With дописывает атрибуты к логгеру контекста (без trace-атрибутов, их добавит FromCtx).
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, raw(ctx).With(args...))
}

// FromCtx возвращает логгер из контекста (или глобальный) с trace_id/span_id, если они есть.
func FromCtx(ctx context.Context) *slog.Logger {
	l := raw(ctx)
	if attrs := AttrsFromCtx(ctx); len(attrs) > 0 {
		args := make([]any, 0, len(attrs))
		for _, a := range attrs {
			args = append(args, a)
		}
		l = l.With(args...)
	}

	return l
}
