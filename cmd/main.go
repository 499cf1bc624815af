package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/pg"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		slog.String("env", cfg.Logging.Env),
		slog.String("version", cfg.Logging.Version),
		slog.String("auth_mode", cfg.Auth.Mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	pool, err := pg.NewPool(ctx, pg.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
		StatementTimeout:  cfg.Postgres.StatementTimeout,
		ConnectAttempts:   cfg.Postgres.ConnectAttempts,
		ConnectBackoff:    cfg.Postgres.ConnectBackoff,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- repos ---
	chatRepo := postgres.NewChatRepoFromPool(pool)
	msgRepo := postgres.NewMessageRepoFromPool(pool)
	store := postgres.NewStore(pool)

	// --- session validator ---
	var sessions ws.SessionValidator
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.JWTPublicKeyPath)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		sessions = security.NewJWTValidator(pub, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.ClockSkew)
	default:
		sessions = postgres.NewSessionRepoFromPool(pool)
	}

	// --- services ---
	chatSvc := service.NewChatService(chatRepo, msgRepo, store)
	chatSvc.SetMaxMessageLen(cfg.WS.MaxMessageLen)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, sessions, chatSvc, chatSvc, ws.Options{
		PingEvery:      cfg.WS.PingEvery,
		InitTimeout:    cfg.WS.InitTimeout,
		WriteTimeout:   cfg.WS.WriteTimeout,
		PersistTimeout: cfg.WS.PersistTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
		OutboxLimit:    cfg.WS.OutboxLimit,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})
	chatSvc.SetEvictor(wsServer)

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        httpx.NewHandler(chatSvc),
		Sessions:       sessions,
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC (health) ---
	grpcSrv := grpcx.NewServer()
	go grpcSrv.WatchDependency(ctx, 15*time.Second, func(ctx context.Context) error {
		return pg.Ping(ctx, pool)
	})

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", slog.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", slog.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.GRPC().Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", slog.Any("err", err))
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.Shutdown()
	// hijacked ws-соединения Shutdown не ждёт, они закроются вместе с процессом
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Error("http shutdown", slog.Any("err", err))
	}
	chats, conns := hub.Stats()
	slog.Info("stopped", slog.Int("live_chats", chats), slog.Int("live_conns", conns))
}
