package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultSampleInitial    = 100
	defaultSampleThereafter = 10
)

func zapEncoderConfig(withCaller bool) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	if withCaller {
		ec.EncodeCaller = zapcore.ShortCallerEncoder
	} else {
		ec.CallerKey = zapcore.OmitKey
	}
	return ec
}

// zapLevel: шаг slog-уровней 4, у zap 1 (Debug -4 -> -1, Info 0 -> 0, Warn 4 -> 1, Error 8 -> 2).
func zapLevel(l slog.Level) zapcore.Level {
	zl := zapcore.Level(l / 4)
	if zl > zapcore.ErrorLevel {
		return zapcore.ErrorLevel
	}
	return zl
}

func newZapHandler(cfg Config) slog.Handler {
	lvl := cfg.level()

	var core zapcore.Core = zapcore.NewCore(
		zapcore.NewJSONEncoder(zapEncoderConfig(cfg.AddSource)),
		zapcore.Lock(zapcore.AddSync(cfg.Output)),
		zapLevel(lvl),
	)

	// массовый дисконнект даёт лавину одинаковых ws-записей
	core = zapcore.NewSamplerWithOptions(core, time.Second,
		positiveOr(cfg.SampleInitial, defaultSampleInitial),
		positiveOr(cfg.SampleThereafter, defaultSampleThereafter),
	)

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.Debug {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return slogzap.Option{Level: lvl, Logger: zap.New(core, opts...)}.NewZapHandler()
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
