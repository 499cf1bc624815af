package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string

	// statement_timeout на каждое соединение; 0: серверный дефолт
	StatementTimeout time.Duration
	// сколько раз пробуем достучаться до базы при старте (postgres в compose поднимается дольше нас)
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// Pinger: *pgxpool.Pool или pgxmock.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}
	if err := WaitReady(ctx, pool, cfg.ConnectAttempts, cfg.ConnectBackoff); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ParseConfig: DSN задаёт базу, ненулевые поля Config перекрывают его параметры.
func ParseConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, errors.New("pg: empty dsn")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}

	pc.MaxConns = positiveOr(cfg.MaxConns, pc.MaxConns)
	pc.MinConns = positiveOr(cfg.MinConns, pc.MinConns)
	pc.MaxConnLifetime = positiveOr(cfg.MaxConnLifetime, pc.MaxConnLifetime)
	pc.MaxConnIdleTime = positiveOr(cfg.MaxConnIdleTime, pc.MaxConnIdleTime)
	pc.HealthCheckPeriod = positiveOr(cfg.HealthCheckPeriod, pc.HealthCheckPeriod)

	params := pc.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string)
		pc.ConnConfig.RuntimeParams = params
	}
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	return pc, nil
}

func positiveOr[T int32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

func Ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return p.Ping(ctx)
}

// WaitReady пингует базу до attempts раз, между попытками ждёт backoff (удваивая).
func WaitReady(ctx context.Context, p Pinger, attempts int, backoff time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = Ping(ctx, p); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		logger.FromCtx(ctx).Warn("pg: not ready, retrying",
			slog.Int("attempt", i),
			slog.Duration("backoff", backoff),
			slog.Any("err", err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("pg: ping: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("pg: ping after %d attempts: %w", attempts, err)
}
