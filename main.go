package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/palm-check/internal/auth"
	"github.com/example/palm-check/internal/config"
	"github.com/example/palm-check/internal/grpchealth"
	"github.com/example/palm-check/internal/handlers"
	"github.com/example/palm-check/internal/logging"
	"github.com/example/palm-check/internal/palm"
	"github.com/example/palm-check/internal/repository"
	"github.com/example/palm-check/internal/telegram"
	"github.com/example/palm-check/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer initCancel()

	var repo usecase.AnalysisRepository
	if cfg.DatabaseDSN != "" {
		r := repository.NewAnalysisRepository(initDatabase(initCtx, cfg.DatabaseDSN, cfg.Debug, logger), logger)
		if err := r.AutoMigrate(initCtx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		repo = r
	} else {
		logger.Info("DATABASE_DSN not set, analysis logs are kept in the cache only")
	}

	var cache usecase.Cache = usecase.NewMemoryCache()
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(initCtx, 5*time.Second)
		cache = usecase.NewRedisCache(initRedis(redisCtx, cfg.RedisAddr, logger))
		redisCancel()
	}

	uc := usecase.NewAnalysisUseCase(palm.NewClassifier(logger), repo, cache, logger)

	router := handlers.NewRouter(uc, handlers.Options{
		IndexFile: cfg.IndexFile,
		Auth:      auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience),
		Logger:    logger,
	})

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	onShutdown := func() {}
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("failed to listen for gRPC", zap.Error(err), zap.String("addr", cfg.GRPCAddr))
		}
		healthSrv := grpchealth.New(logger)
		go func() {
			if err := healthSrv.Serve(lis); err != nil {
				logger.Error("gRPC health server stopped", zap.Error(err))
			}
		}()
		healthSrv.MarkServing()
		onShutdown = healthSrv.MarkNotServing
		defer healthSrv.Stop()
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, uc, logger)
		if err != nil {
			logger.Fatal("failed to start telegram bot", zap.Error(err))
		}
		go func() {
			if err := bot.Run(runCtx); err != nil {
				logger.Error("telegram bot stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("palm-check listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("classifier_backend", palm.Backend))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger, onShutdown); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, dsn string, debug bool, zapLogger *zap.Logger) *gorm.DB {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}
	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", addr))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, onShutdown func()) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil, onShutdown)
}

// serveHTTPServerWithOptions runs server until it fails or a signal arrives,
// then calls onShutdown and shuts down gracefully. Nil listener means
// ListenAndServe; nil signalCh means SIGINT/SIGTERM.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, onShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if onShutdown != nil {
			onShutdown()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
